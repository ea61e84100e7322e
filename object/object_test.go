package object

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromURL(t *testing.T) {
	obj, err := FromURL("/cache", "https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/CL2_BQ31_2019_1000_4213.laz")
	require.NoError(t, err)
	assert.Equal(t, "NZ19_Wellington/CL2_BQ31_2019_1000_4213.laz", obj.Key)
	assert.Equal(t, filepath.Join("/cache", "NZ19_Wellington", "CL2_BQ31_2019_1000_4213.laz"), obj.Path)

	obj, err = FromURL("/cache", "https://opentopography.s3.sdsc.edu/pc-bulk/DS/sub/dir/tile.laz")
	require.NoError(t, err)
	assert.Equal(t, "DS/sub/dir/tile.laz", obj.Key)

	_, err = FromURL("/cache", "https://opentopography.s3.sdsc.edu/pc-bulk")
	require.Error(t, err)
}

func TestFromKeyStaysInCache(t *testing.T) {
	obj, err := FromKey("/cache", "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", obj.Key)
	assert.Equal(t, filepath.Join("/cache", "etc", "passwd"), obj.Path)

	_, err = FromKey("/cache", "/")
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	obj, err := FromKey(dir, "DS/a.laz")
	require.NoError(t, err)
	assert.False(t, obj.Exists())

	require.NoError(t, os.MkdirAll(filepath.Dir(obj.Path), 0o755))
	require.NoError(t, os.WriteFile(obj.Path, []byte("x"), 0o600))
	assert.True(t, obj.Exists())

	dirObj, err := FromKey(dir, "DS")
	require.NoError(t, err)
	assert.False(t, dirObj.Exists())
}
