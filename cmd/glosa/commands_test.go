package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpedienteDirs(t *testing.T) {
	inbox := t.TempDir()
	for _, d := range []string{"exp-2", "exp-1", ".tmp"} {
		require.NoError(t, os.Mkdir(filepath.Join(inbox, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notas.txt"), nil, 0o644))

	dirs, err := expedienteDirs(inbox)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(inbox, "exp-1"), filepath.Join(inbox, "exp-2")}, dirs)
}

func TestSetupHonorsFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, logger, err := setup(&rootFlags{manifest: "m.json", logLevel: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, "manifest", cfg.Review.ClassifyBy)
	assert.Equal(t, "debug", cfg.Log.Level)
}
