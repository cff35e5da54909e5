package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "presence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetFloat(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutFloat(KeyWanderThreshold, 0.0375))
	v, ok := s.GetFloat(KeyWanderThreshold)
	assert.True(t, ok)
	// Values round-trip through float32, so compare at that precision.
	assert.InDelta(t, 0.0375, v, 1e-7)

	require.NoError(t, s.PutFloat(KeyWanderThreshold, 0.5))
	v, ok = s.GetFloat(KeyWanderThreshold)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-7)
}

func TestGetFloatMissingKey(t *testing.T) {
	s := openTestStore(t)

	v, ok := s.GetFloat("no_such_key")
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.PutFloat(KeyJitterSens, 0.2))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok := s.GetFloat(KeyJitterSens)
	assert.True(t, ok)
	assert.InDelta(t, 0.2, v, 1e-7)
}

func TestLinkSensKeys(t *testing.T) {
	w, j := LinkSensKeys(1)
	assert.Equal(t, "link1_w_sens", w)
	assert.Equal(t, "link1_j_sens", j)
	w, j = LinkSensKeys(2)
	assert.Equal(t, "link2_w_sens", w)
	assert.Equal(t, "link2_j_sens", j)
}
