package fsutil

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystemCreate(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_, err := m.Create("plots/run.png")
	require.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, m.MkdirAll("plots/a", 0o755))
	assert.True(t, m.Exists("plots"))
	assert.True(t, m.Exists("plots/a"))

	w, err := m.Create("plots/run.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("png"))
	require.NoError(t, err)

	data, err := m.ReadFile("plots/run.png")
	require.NoError(t, err)
	assert.Empty(t, data, "content appears on close")

	require.NoError(t, w.Close())
	data, err = m.ReadFile("./plots/run.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	assert.ErrorIs(t, w.Close(), fs.ErrClosed)
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, fs.ErrClosed)

	assert.Equal(t, []string{"plots/run.png"}, m.Files())
}

func TestMemoryFileSystemMissing(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_, err := m.ReadFile("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, m.Exists("nope"))

	w, err := m.Create("top.png")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, m.MkdirAll("top.png/sub", 0o755), fs.ErrExist)
}

func TestOSFileSystem(t *testing.T) {
	t.Parallel()

	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "plots")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))

	name := filepath.Join(dir, "a.png")
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
