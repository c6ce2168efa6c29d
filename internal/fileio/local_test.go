package fileio

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCreateExclusiveAtomicPublish(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(zerolog.Nop())
	target := filepath.Join(dir, "snapshot", "snapshot-1")

	w, err := l.CreateExclusive(target)
	require.NoError(t, err)
	_, err = w.Write([]byte("committed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := l.Open(target)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "committed", string(data))

	// A second exclusive create for the same path must lose the race.
	w2, err := l.CreateExclusive(target)
	require.NoError(t, err)
	_, err = w2.Write([]byte("loser"))
	require.NoError(t, err)
	err = w2.Close()
	assert.Error(t, err)
}

func TestLocalListAndExists(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(zerolog.Nop())

	w, err := l.Create(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := l.List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir)

	exists, err := l.Exists(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = l.Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}
