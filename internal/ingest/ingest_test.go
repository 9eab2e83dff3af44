package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
)

type fixedPages int

func (f fixedPages) PageCount([]byte) (int, error) {
	if f < 0 {
		return 0, errors.New("corrupt pdf")
	}
	return int(f), nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b_pedimento.pdf"), "%PDF pedimento")
	write(t, filepath.Join(root, "a_factura.xml"), "<cfdi/>")
	write(t, filepath.Join(root, "sub", "copia.pdf"), "%PDF pedimento")
	write(t, filepath.Join(root, "notas.txt"), "ignored")
	write(t, filepath.Join(root, ".oculto", "x.pdf"), "%PDF hidden")
	write(t, filepath.Join(root, ReadyMarker), "")

	docs, results, stats, err := NewLoader(fixedPages(4), nil).LoadDirectory(context.Background(), root, true)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "a_factura.xml", docs[0].Name)
	assert.Equal(t, constants.XML, docs[0].Format)
	assert.Equal(t, 0, docs[0].PageCount)
	assert.Equal(t, "b_pedimento.pdf", docs[1].Name)
	assert.Equal(t, 4, docs[1].PageCount)
	assert.Equal(t, "application/pdf", docs[1].MediaType)
	assert.Len(t, docs[1].HashHex, 64)

	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 1, stats.Deduplicated)
	require.Len(t, results, 3)
	assert.True(t, results[2].Deduplicated)
	assert.Equal(t, filepath.Join(root, "sub", "copia.pdf"), results[2].Path)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "x.docx"), "x")
	write(t, filepath.Join(dir, "bad.pdf"), "x")

	_, err := NewLoader(fixedPages(1), nil).LoadFile(context.Background(), filepath.Join(dir, "x.docx"))
	assert.ErrorIs(t, err, ErrUnsupportedExt)

	_, err = NewLoader(fixedPages(-1), nil).LoadFile(context.Background(), filepath.Join(dir, "bad.pdf"))
	assert.ErrorContains(t, err, "corrupt pdf")

	docs, _, stats, err := NewLoader(fixedPages(-1), nil).LoadDirectory(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.EqualValues(t, 1, stats.Failed)
}

func TestWatcherEmitsReadyDirectories(t *testing.T) {
	inbox := t.TempDir()
	already := filepath.Join(inbox, "exp-0")
	write(t, filepath.Join(already, ReadyMarker), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Inbox: inbox, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case dir := <-events:
			return dir
		case <-time.After(5 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, already, next())

	fresh := filepath.Join(inbox, "exp-1")
	write(t, filepath.Join(fresh, "pedimento.pdf"), "%PDF")
	time.Sleep(50 * time.Millisecond)
	write(t, filepath.Join(fresh, ReadyMarker), "")
	assert.Equal(t, fresh, next())

	_, _, err = StartWatcher(ctx, WatchConfig{})
	assert.Error(t, err)
}
