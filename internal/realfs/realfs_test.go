package realfs

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndDelete(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	r := rand.New(rand.NewSource(1))

	path, hash, size, err := a.Store(7, r, bytes.NewBufferString("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
	assert.Len(t, hash, 64)
	assert.FileExists(t, path)
	assert.Equal(t, dir, filepath.Dir(filepath.Dir(path)))

	require.NoError(t, a.Delete(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDelete_AbsentIsNotAnError(t *testing.T) {
	a := New(t.TempDir())
	assert.NoError(t, a.Delete(""))
	assert.NoError(t, a.Delete(filepath.Join(t.TempDir(), "missing")))
}

func TestSynthesize_WritesRequestedSize(t *testing.T) {
	a := New(t.TempDir())
	r := rand.New(rand.NewSource(2))
	path, err := a.Synthesize(r, 1024)
	require.NoError(t, err)
	defer os.Remove(path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), info.Size())
}

func TestSeedFiles_CreatesDefaultsWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	seeds, err := SeedFiles(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(seeds), 15)
	for _, s := range seeds {
		assert.NotEmpty(t, s.Name)
		assert.FileExists(t, s.PhysicalPath)
	}
}
