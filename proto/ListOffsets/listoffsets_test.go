package ListOffsets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTimeSentinels pins the scenario: :latest encodes to -1, :earliest
// to -2.
func TestTimeSentinels(t *testing.T) {
	assert.Equal(t, int64(-1), LatestTime)
	assert.Equal(t, int64(-2), EarliestTime)
}

// TestExplicitDatetimeEncodesToUnixMillis pins the scenario: an explicit
// datetime of 2020-01-01 00:00:00 UTC encodes to 1577836800000, the
// millisecond epoch timestamp NewRequest's Time field expects for
// anything other than the :latest/:earliest sentinels.
func TestExplicitDatetimeEncodesToUnixMillis(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := ts.UnixNano() / int64(time.Millisecond)
	assert.Equal(t, int64(1577836800000), ms)

	req := NewRequest("foo", "bar", 0, ms, 1)
	body := req.Body.(Request)
	assert.Equal(t, int64(1577836800000), body.Topics[0].Partitions[0].Time)
}
