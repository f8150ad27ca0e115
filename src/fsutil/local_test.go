package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/src/fsutil"
)

func TestLocalFileStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("first"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	fs := fsutil.NewLocalFileStore()

	files, err := fs.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.txt")}, files)

	files, err = fs.ListFiles(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.txt")}, files)

	data, err := fs.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = fs.ListFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
