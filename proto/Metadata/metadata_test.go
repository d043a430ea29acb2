package Metadata

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fromHexWords turns a space-separated hex dump like "00 03 66 6f 6f" into
// raw bytes, the same shape the protocol guide's literal examples use.
func fromHexWords(t *testing.T, words string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(words, " ", ""))
	require.NoError(t, err)
	return b
}

// TestNewRequestNoTopicsMatchesLiteralBytes pins the scenario: a
// Metadata request for no topics, client id "foo", correlation id 1,
// encodes to exactly 00 03 00 00 00 00 00 01 00 03 "foo" 00 00 00 00.
func TestNewRequestNoTopicsMatchesLiteralBytes(t *testing.T) {
	req := NewRequest("foo", nil)
	req.CorrelationId = 1

	want := fromHexWords(t, "00 03 00 00 00 00 00 01 00 03") // ApiKey, ApiVersion, CorrelationId, ClientId len
	want = append(want, []byte("foo")...)
	want = append(want, fromHexWords(t, "00 00 00 00")...) // zero topics

	got, err := req.Bytes()
	require.NoError(t, err)
	// got is frame-length-prefixed; strip the 4-byte length.
	require.Len(t, got, len(want)+4)
	assert.Equal(t, uint32(len(want)), binary.BigEndian.Uint32(got[:4]))
	assert.Equal(t, want, got[4:])
}

// TestNewRequestWithTopicsMatchesLiteralBytes pins the scenario: a
// Metadata request for topics ["bar","baz","food"], client id "foo",
// correlation id 1.
func TestNewRequestWithTopicsMatchesLiteralBytes(t *testing.T) {
	req := NewRequest("foo", []string{"bar", "baz", "food"})
	req.CorrelationId = 1

	want := fromHexWords(t, "00 03 00 00 00 00 00 01 00 03")
	want = append(want, []byte("foo")...)
	want = append(want, fromHexWords(t, "00 00 00 03 00 03")...)
	want = append(want, []byte("bar")...)
	want = append(want, fromHexWords(t, "00 03")...)
	want = append(want, []byte("baz")...)
	want = append(want, fromHexWords(t, "00 04")...)
	want = append(want, []byte("food")...)

	got, err := req.Bytes()
	require.NoError(t, err)
	require.Len(t, got, len(want)+4)
	assert.Equal(t, want, got[4:])
}
