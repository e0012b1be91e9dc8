package session

import (
	"testing"

	"dessertcast/form"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	s, err := NewStore(4, nil, nil)
	require.NoError(t, err)

	id, sess := s.Create()
	require.NotEmpty(t, id)

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = s.Get("unknown")
	assert.False(t, ok)
	_, ok = s.Get("")
	assert.False(t, ok)
}

func TestSessionsAreIndependent(t *testing.T) {
	s, err := NewStore(4, nil, nil)
	require.NoError(t, err)

	_, a := s.Create()
	_, b := s.Create()
	require.NoError(t, a.SetSlot(0, "abc"))

	assert.Equal(t, "abc", a.Snapshot().Inputs[0])
	assert.Equal(t, "110.5", b.Snapshot().Inputs[0])
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s, err := NewStore(2, nil, nil)
	require.NoError(t, err)

	first, _ := s.Create()
	second, _ := s.Create()
	_, ok := s.Get(first) // first is now most recent
	require.True(t, ok)
	s.Create()

	assert.Equal(t, 2, s.Len())
	_, ok = s.Get(first)
	assert.True(t, ok)
	_, ok = s.Get(second)
	assert.False(t, ok)
}

func TestGetOrCreate(t *testing.T) {
	calls := 0
	s, err := NewStore(4, func() *form.Session {
		calls++
		return form.NewSession()
	}, nil)
	require.NoError(t, err)

	id, sess, created := s.GetOrCreate("stale-cookie")
	assert.True(t, created)
	assert.NotEqual(t, "stale-cookie", id)

	again, same, created := s.GetOrCreate(id)
	assert.False(t, created)
	assert.Equal(t, id, again)
	assert.Same(t, sess, same)
	assert.Equal(t, 1, calls)
}

func TestNewStoreRejectsZeroCapacity(t *testing.T) {
	_, err := NewStore(0, nil, nil)
	assert.Error(t, err)
}
