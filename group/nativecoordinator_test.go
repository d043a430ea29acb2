package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeAssignmentRoundTrip(t *testing.T) {
	want := []int32{0, 3, 7}
	assert.Equal(t, want, decodeAssignment(encodeAssignment(want)))
}

func TestDecodeAssignmentEmptyBytesReturnsNil(t *testing.T) {
	assert.Nil(t, decodeAssignment(nil))
}
