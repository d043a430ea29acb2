package recordset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndUnmarshalRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add([]byte("k1"), []byte("v1"))
	b.Add(nil, []byte("v2"))
	set, err := b.Build()
	require.NoError(t, err)

	entries, err := Unmarshal(set)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].Offset)
	assert.Equal(t, []byte("k1"), entries[0].Message.Key)
	assert.Equal(t, []byte("v1"), entries[0].Message.Value)
	assert.Equal(t, int64(1), entries[1].Offset)
	assert.Nil(t, entries[1].Message.Key)
	assert.Equal(t, []byte("v2"), entries[1].Message.Value)
}

func TestBuildEmptyReturnsError(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCorruptMessageCrcDetected(t *testing.T) {
	b := NewBuilder()
	b.Add(nil, []byte("v"))
	set, err := b.Build()
	require.NoError(t, err)
	// flip a byte in the message value to break its crc
	set[len(set)-1] ^= 0xFF
	_, err = Unmarshal(set)
	assert.ErrorIs(t, err, ErrCorruptMessage)
}

func TestTruncatedTrailingMessageIsDropped(t *testing.T) {
	b := NewBuilder()
	b.Add(nil, []byte("v1"))
	b.Add(nil, []byte("v2"))
	set, err := b.Build()
	require.NoError(t, err)
	truncated := set[:len(set)-3] // cut into the second message

	entries, err := Unmarshal(truncated)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("v1"), entries[0].Message.Value)
}

func TestGzipCompressRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add([]byte("k"), []byte("hello"))
	b.Add(nil, []byte("world"))
	require.NoError(t, b.Compress(CodecGzip))
	set, err := b.Build()
	require.NoError(t, err)

	entries, err := Messages(set)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("hello"), entries[0].Message.Value)
	assert.Equal(t, []byte("world"), entries[1].Message.Value)
}

func TestSnappyCompressRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(nil, []byte("aaa"))
	require.NoError(t, b.Compress(CodecSnappy))
	set, err := b.Build()
	require.NoError(t, err)

	entries, err := Messages(set)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("aaa"), entries[0].Message.Value)
}
