package file

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "export.zip")
	writeZip(t, archive, map[string]string{
		"layer.tif":         "tiff",
		"meta/readme.txt":   "readme",
		"layer.tif.aux.xml": "<xml/>",
	})

	dest := filepath.Join(dir, "out")
	files, err := ExtractZip(archive, dest)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	content, err := os.ReadFile(filepath.Join(dest, "meta", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "readme", string(content))
}

func TestExtractZipRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../evil.txt": "x"})

	_, err := ExtractZip(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))
}

func TestReadZipEntry(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "index.zip")
	writeZip(t, archive, map[string]string{"index.prj": "PROJCS[...]", "index.shp": "shp"})

	content, name, found, err := ReadZipEntry(archive, func(name string) bool {
		return strings.HasSuffix(name, ".prj")
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "index.prj", name)
	assert.Equal(t, "PROJCS[...]", string(content))

	_, _, found, err = ReadZipEntry(archive, func(name string) bool { return false })
	require.NoError(t, err)
	assert.False(t, found)
}

func TestZipEntries(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "index.zip")
	writeZip(t, archive, map[string]string{"index.shp": "shp", "index.dbf": "dbf", "meta/": ""})

	names, err := ZipEntries(archive)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.shp", "index.dbf"}, names)
}

func TestIsZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	writeZip(t, archive, map[string]string{"a.txt": "a"})

	ok, err := IsZip(archive)
	require.NoError(t, err)
	assert.True(t, ok)

	plain := filepath.Join(dir, "error.zip")
	require.NoError(t, os.WriteFile(plain, []byte(`{"error":"gone"}`), 0o600))
	ok, err = IsZip(plain)
	require.NoError(t, err)
	assert.False(t, ok)
}
