package fetchworker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafegrp/cafegrp/recordset"
)

func entry(offset int64, value string) recordset.MessageSetEntry {
	return recordset.MessageSetEntry{Offset: offset, Message: &recordset.Message{Value: []byte(value)}}
}

func TestDeliverEntriesSkipsStaleOffsets(t *testing.T) {
	entries := []recordset.MessageSetEntry{entry(5, "a"), entry(6, "b"), entry(7, "c")}
	var seen []int64
	delivered, stopped, paused := deliverEntries(context.Background(), "t", 0, 6, entries, func(ctx context.Context, m Message) Action {
		seen = append(seen, m.Offset)
		return Ack
	})
	assert.Equal(t, []int64{6, 7}, seen)
	assert.Len(t, delivered, 2)
	assert.False(t, stopped)
	assert.False(t, paused)
}

func TestDeliverEntriesStopsOnStopAction(t *testing.T) {
	entries := []recordset.MessageSetEntry{entry(0, "a"), entry(1, "b"), entry(2, "c")}
	var seen []int64
	delivered, stopped, paused := deliverEntries(context.Background(), "t", 0, 0, entries, func(ctx context.Context, m Message) Action {
		seen = append(seen, m.Offset)
		if m.Offset == 1 {
			return Stop
		}
		return Ack
	})
	assert.Equal(t, []int64{0, 1}, seen)
	require.Len(t, delivered, 2)
	assert.Equal(t, int64(1), delivered[len(delivered)-1].Offset)
	assert.True(t, stopped)
	assert.False(t, paused)
}

func TestDeliverEntriesPausesAndStopsDelivering(t *testing.T) {
	entries := []recordset.MessageSetEntry{entry(0, "a"), entry(1, "b")}
	calls := 0
	delivered, stopped, paused := deliverEntries(context.Background(), "t", 0, 0, entries, func(ctx context.Context, m Message) Action {
		calls++
		return Pause
	})
	assert.Equal(t, 1, calls)
	assert.Empty(t, delivered, "the paused message must not be treated as delivered, so it is redelivered next fetch")
	assert.False(t, stopped)
	assert.True(t, paused)
}

func TestRunCommitReturnsErrorFromCommitFunc(t *testing.T) {
	w := New(Config{Topic: "t", Partition: 3}, nil, nil, func(ctx context.Context, m Message) Action { return Ack }, func(ctx context.Context, offset int64) error {
		return errors.New("NotCoordinatorForConsumer")
	})
	err := w.runCommit(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotCoordinatorForConsumer")
}

func TestRunCommitNoopWithoutCommitFunc(t *testing.T) {
	w := New(Config{Topic: "t", Partition: 3}, nil, nil, func(ctx context.Context, m Message) Action { return Ack }, nil)
	assert.NoError(t, w.runCommit(context.Background(), 42))
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{Topic: "t", Partition: 0}, nil, nil, func(ctx context.Context, m Message) Action { return Ack }, nil)
	assert.Equal(t, int32(1), w.cfg.MinBytes)
	assert.Equal(t, int32(1<<20), w.cfg.MaxBytes)
	assert.Equal(t, int32(5000), w.cfg.MaxWaitMs)
}
