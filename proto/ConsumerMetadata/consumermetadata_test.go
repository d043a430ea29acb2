package ConsumerMetadata

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafegrp/cafegrp/wire"
)

func fromHexWords(t *testing.T, words string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(words, " ", ""))
	require.NoError(t, err)
	return b
}

// TestNewRequestMatchesLiteralBytes pins the scenario: a ConsumerMetadata
// request for group "we", client id "foo", correlation id 1, encodes to
// exactly 00 0A 00 00 00 00 00 01 00 03 "foo" 00 02 "we".
func TestNewRequestMatchesLiteralBytes(t *testing.T) {
	req := NewRequest("foo", "we")
	req.CorrelationId = 1

	want := fromHexWords(t, "00 0A 00 00 00 00 00 01 00 03")
	want = append(want, []byte("foo")...)
	want = append(want, fromHexWords(t, "00 02")...)
	want = append(want, []byte("we")...)

	got, err := req.Bytes()
	require.NoError(t, err)
	require.Len(t, got, len(want)+4)
	assert.Equal(t, uint32(len(want)), binary.BigEndian.Uint32(got[:4]))
	assert.Equal(t, want, got[4:])
}

// TestResponseDecodesCoordinatorFields pins the scenario: a
// ConsumerMetadataResponse body (error=0, coordinator_id=40001,
// host="192.168.59.103", port=49158) decodes to that exact struct.
// 0x00009C41 == 40001, 0x0000C006 == 49158.
func TestResponseDecodesCoordinatorFields(t *testing.T) {
	body := fromHexWords(t, "00 00") // error=0
	body = append(body, fromHexWords(t, "00 00 9C 41")...) // coordinator_id=40001
	body = append(body, fromHexWords(t, "00 0E")...)       // host length=14
	body = append(body, []byte("192.168.59.103")...)
	body = append(body, fromHexWords(t, "00 00 C0 06")...) // port=49158

	got := &Response{}
	require.NoError(t, wire.Read(bytes.NewReader(body), reflect.ValueOf(got)))

	assert.Equal(t, &Response{
		Error:         0,
		CoordinatorId: 40001,
		Host:          "192.168.59.103",
		Port:          49158,
	}, got)
}
