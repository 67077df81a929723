package saveio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileCreatesTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sav")
	require.NoError(t, WriteFile(path, []byte{1, 2, 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "no temp file left behind")
	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err), "no backup left after a clean write")
}

func TestWriteFileReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sav")
	require.NoError(t, WriteFile(path, []byte("old")))
	require.NoError(t, WriteFile(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestReadFileFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.sav")
	// simulate a crash between the backup rename and the promote rename:
	// only the .bak exists.
	require.NoError(t, os.WriteFile(path+".bak", []byte("rescued"), 0644))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("rescued"), data)
}

func TestReadFilePrefersPrimary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.sav")
	require.NoError(t, os.WriteFile(path, []byte("primary"), 0644))
	require.NoError(t, os.WriteFile(path+".bak", []byte("stale"), 0644))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("primary"), data)
}

func TestReadFileMissingBoth(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "none.sav"))
	assert.Error(t, err)
}
