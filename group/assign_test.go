package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignRoundRobinScenarioS7(t *testing.T) {
	got := assign([]string{"m3", "m1", "m2"}, []int32{3, 1, 0, 2})
	assert.Equal(t, []int32{0, 3}, got["m1"])
	assert.Equal(t, []int32{1}, got["m2"])
	assert.Equal(t, []int32{2}, got["m3"])
}

func TestAssignIsDeterministic(t *testing.T) {
	a := assign([]string{"b", "a", "c"}, []int32{4, 2, 0, 1, 3})
	b := assign([]string{"a", "b", "c"}, []int32{0, 1, 2, 3, 4})
	assert.Equal(t, a, b)
}

func TestAssignEmptyMembersReturnsEmptyMap(t *testing.T) {
	got := assign(nil, []int32{0, 1})
	assert.Empty(t, got)
}

func TestAssignMorePartitionsThanMembersWrapsAround(t *testing.T) {
	got := assign([]string{"a", "b"}, []int32{0, 1, 2, 3, 4})
	assert.Equal(t, []int32{0, 2, 4}, got["a"])
	assert.Equal(t, []int32{1, 3}, got["b"])
}
