package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReadsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	want := []byte("mapped contents")
	require.NoError(t, os.WriteFile(path, want, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, want, m.Bytes())
	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
