package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafegrp/cafegrp/coordination"
)

var _ coordination.Store = (*Store)(nil)

func TestPutGetRoundTrip(t *testing.T) {
	st := New()
	ctx := context.Background()
	sess, err := st.CreateSession(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "/g/members/a", []byte("hello"), sess))
	v, err := st.Get(ctx, "/g/members/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	st := New()
	_, err := st.Get(context.Background(), "/nope")
	assert.ErrorIs(t, err, coordination.ErrNotFound)
}

func TestAcquireLockBlocksSecondCaller(t *testing.T) {
	st := New()
	ctx := context.Background()
	sessA, _ := st.CreateSession(ctx, time.Second)
	sessB, _ := st.CreateSession(ctx, time.Second)

	lockA, err := st.AcquireLock(ctx, sessA, "/g/leader")
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = st.AcquireLock(ctx2, sessB, "/g/leader")
	assert.Error(t, err)

	require.NoError(t, st.ReleaseLock(ctx, lockA))
	lockB, err := st.AcquireLock(ctx, sessB, "/g/leader")
	require.NoError(t, err)
	assert.Equal(t, "/g/leader", lockB.Path())
}

func TestLockReleasedWhenSessionExpires(t *testing.T) {
	st := New()
	ctx := context.Background()
	sessA, _ := st.CreateSession(ctx, time.Second)
	sessB, _ := st.CreateSession(ctx, time.Second)

	_, err := st.AcquireLock(ctx, sessA, "/g/leader")
	require.NoError(t, err)

	st.ExpireSession(sessA)

	lockB, err := st.AcquireLock(ctx, sessB, "/g/leader")
	require.NoError(t, err)
	assert.Equal(t, "/g/leader", lockB.Path())
}

func TestWatchDeliversPutsAndDeletes(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess, _ := st.CreateSession(ctx, time.Second)

	notifications, err := st.Watch(ctx, "/g/members/a", 0)
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "/g/members/a", []byte("v1"), sess))
	n := <-notifications
	assert.Equal(t, []byte("v1"), n.Value)
	assert.False(t, n.Deleted)

	require.NoError(t, st.Delete(ctx, "/g/members/a"))
	n = <-notifications
	assert.True(t, n.Deleted)
}
