package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	off, err := s.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), off, "fresh store should report no checkpoint")

	require.NoError(t, s.SaveOffset(42))

	off, err = s.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(42), off)
}

func TestOffsetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveOffset(1337))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	off, err := s.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(1337), off)
}
