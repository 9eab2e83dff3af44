package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	_, err := f.NewSheet("identificadores")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("identificadores", "A1", &[]any{"clave", "descripcion", "complemento1", "complemento2"}))
	require.NoError(t, f.SetSheetRow("identificadores", "A2", &[]any{"EC", "Encargo conferido", "RFC del importador", ""}))
	require.NoError(t, f.SetSheetRow("identificadores", "A3", &[]any{"TL", "Tratado de libre comercio", "Clave del tratado", "País"}))
	require.NoError(t, f.SetDocProps(&excelize.DocProperties{Version: "2024.2"}))

	path := filepath.Join(dir, "catalogos.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeWorkbook(t, t.TempDir())

	cats, err := LoadXLSX(path)
	require.NoError(t, err)
	require.Len(t, cats, 1, "empty default sheet is skipped")

	c := cats[0]
	assert.Equal(t, Identifiers, c.Name)
	assert.Equal(t, "2024.2", c.Version)
	assert.Equal(t, "Catálogo identificadores (v2024.2)", c.Label())

	e, ok := c.Lookup(" tl ")
	require.True(t, ok)
	assert.Equal(t, "Tratado de libre comercio", e.Description)
	assert.Equal(t, "País", e.Attributes["complemento2"])

	ec, ok := c.Lookup("EC")
	require.True(t, ok)
	assert.NotContains(t, ec.Attributes, "complemento2")

	_, ok = c.Lookup("ZZ")
	assert.False(t, ok)
}

func TestLoadJSONAcceptsObjectOrArray(t *testing.T) {
	one := `{"nombre":"paises","version":"1","entradas":[{"clave":"USA","descripcion":"Estados Unidos"}]}`
	cats, err := LoadJSON(strings.NewReader(one))
	require.NoError(t, err)
	require.Len(t, cats, 1)
	_, ok := cats[0].Lookup("usa")
	assert.True(t, ok)

	many := `[{"nombre":"monedas","entradas":[{"clave":"USD"}]},{"nombre":"incoterms","entradas":[{"clave":"FOB"}]}]`
	cats, err = LoadJSON(strings.NewReader(many))
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	_, err = LoadJSON(strings.NewReader(`{"entradas":[]}`))
	assert.Error(t, err)
}

func TestLoadMergesFiles(t *testing.T) {
	dir := t.TempDir()
	xlsx := writeWorkbook(t, dir)
	js := filepath.Join(dir, "paises.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"nombre":"paises","entradas":[{"clave":"CHN","descripcion":"China"}]}`), 0o644))

	set, err := Load([]string{xlsx, js}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{Identifiers, Countries}, set.Names())
	assert.NotNil(t, set.Get(Countries))
	assert.Nil(t, set.Get(Units))

	_, err = Load([]string{filepath.Join(dir, "x.csv")}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
