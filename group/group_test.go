package group

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafegrp/cafegrp/coordination"
	"github.com/cafegrp/cafegrp/coordination/memstore"
	"github.com/cafegrp/cafegrp/fetchworker"
)

func newTestCoordinator(store *memstore.Store, memberID string) *Coordinator {
	cfg := Config{
		Group:       "g1",
		Topic:       "t1",
		MemberID:    memberID,
		StorePrefix: "/cafegrp",
	}
	return New(cfg, nil, nil, store, func(ctx context.Context, m fetchworker.Message) fetchworker.Action { return fetchworker.Ack })
}

func TestJoinAddsMemberToRoster(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c := newTestCoordinator(store, "m1")
	sess, err := store.CreateSession(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.join(ctx, sess))
	roster, err := c.readRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, roster)
}

func TestJoinIsIdempotent(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c := newTestCoordinator(store, "m1")
	sess, _ := store.CreateSession(ctx, time.Second)

	require.NoError(t, c.join(ctx, sess))
	require.NoError(t, c.join(ctx, sess))
	roster, err := c.readRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, roster)
}

func TestLeaveRemovesMember(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c1 := newTestCoordinator(store, "m1")
	c2 := newTestCoordinator(store, "m2")
	sess, _ := store.CreateSession(ctx, time.Second)

	require.NoError(t, c1.join(ctx, sess))
	require.NoError(t, c2.join(ctx, sess))

	c1.leave(ctx, sess)
	roster, err := c1.readRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, roster)
}

func TestWaitForAssignmentReturnsOncePublished(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c := newTestCoordinator(store, "m1")

	raw, err := json.Marshal([]int32{0, 3})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, c.assignmentPath("m1"), raw, nil))

	parts, err := c.waitForAssignment(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3}, parts)
}

func TestWaitForAssignmentBlocksUntilPublishedThenReturns(t *testing.T) {
	store := memstore.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := newTestCoordinator(store, "m1")

	resultCh := make(chan []int32, 1)
	go func() {
		parts, err := c.waitForAssignment(ctx)
		if err == nil {
			resultCh <- parts
		}
	}()

	time.Sleep(20 * time.Millisecond)
	raw, _ := json.Marshal([]int32{2})
	require.NoError(t, store.Put(ctx, c.assignmentPath("m1"), raw, nil))

	select {
	case parts := <-resultCh:
		assert.Equal(t, []int32{2}, parts)
	case <-time.After(time.Second):
		t.Fatal("waitForAssignment did not return after assignment was published")
	}
}

func TestSameMembersIgnoresOrder(t *testing.T) {
	assert.True(t, sameMembers([]string{"a", "b", "c"}, []string{"c", "a", "b"}))
	assert.False(t, sameMembers([]string{"a", "b"}, []string{"a", "b", "c"}))
	assert.False(t, sameMembers([]string{"a", "b"}, []string{"a", "c"}))
}

func TestWithSessionClosesSessionAndLeavesRosterWhenFnReturns(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c := newTestCoordinator(store, "m1")

	err := c.withSession(ctx, func(sessCtx context.Context, sess coordination.Session) error {
		return c.join(sessCtx, sess)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.LiveSessionCount(), "withSession must close its session once fn returns")
	roster, err := c.readRoster(ctx)
	require.NoError(t, err)
	assert.Empty(t, roster, "withSession's deferred leave must run even though fn succeeded")
}

func TestWithSessionClosesSessionEvenWhenFnErrors(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	c := newTestCoordinator(store, "m1")

	err := c.withSession(ctx, func(sessCtx context.Context, sess coordination.Session) error {
		return fmt.Errorf("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.LiveSessionCount(), "withSession must still close its session when fn errors")
}

func TestElectMakesBoundedAttemptThenPursuesInBackground(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	cHolds := newTestCoordinator(store, "holder")
	cWaits := newTestCoordinator(store, "waiter")
	cWaits.cfg.LeaderLockWait = 20 * time.Millisecond

	sessHolder, _ := store.CreateSession(ctx, time.Second)
	sessWaiter, _ := store.CreateSession(ctx, time.Second)

	holderLock, err := store.AcquireLock(ctx, sessHolder, cHolds.leaderLockPath())
	require.NoError(t, err)

	start := time.Now()
	cWaits.elect(ctx, sessWaiter)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, cWaits.amLeader())

	require.NoError(t, store.ReleaseLock(ctx, holderLock))

	require.Eventually(t, func() bool { return cWaits.amLeader() }, time.Second, 5*time.Millisecond)
}
