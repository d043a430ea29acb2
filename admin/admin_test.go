package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	errcodes "github.com/cafegrp/cafegrp/proto/errors"
)

func TestFirstTopicErrorReturnsNilWhenAllOK(t *testing.T) {
	err := firstTopicError("creating", []topicResult{
		{Topic: "a", Error: int16(errcodes.NONE)},
		{Topic: "b", Error: int16(errcodes.NONE)},
	})
	assert.NoError(t, err)
}

func TestFirstTopicErrorReturnsFirstFailure(t *testing.T) {
	err := firstTopicError("deleting", []topicResult{
		{Topic: "a", Error: int16(errcodes.NONE)},
		{Topic: "b", Error: int16(errcodes.TOPIC_ALREADY_EXISTS)},
		{Topic: "c", Error: int16(errcodes.UNKNOWN_TOPIC_OR_PARTITION)},
	})
	require := assert.New(t)
	require.Error(err)
	require.Contains(err.Error(), `"b"`)
	require.Contains(err.Error(), "deleting")
}
