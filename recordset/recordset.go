/*
Package recordset implements building, marshaling, and unmarshaling of
Kafka 0.8.x MessageSets: the wire format carried inside Produce request
partitions and Fetch response partitions.

Producing

Call NewBuilder, Add messages to it, then Build. Pass the returned bytes
as a Produce request's PartitionBatch.MessageSet. Call Compress before
Build to wrap the whole set in a single gzip- or snappy-compressed
wrapper message, the way real producers batch.

Fetching

A Fetch response partition's MessageSet may hold more than one message,
and the broker may truncate the last one to fit MaxBytes: Unmarshal
walks the set and silently drops a trailing message it can't fully
decode. Each decoded Message may itself be a compressed wrapper:
Messages, unlike Unmarshal, decompresses such wrappers and returns
their inner messages in place of them.
*/
package recordset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"reflect"

	"github.com/golang/snappy"

	"github.com/cafegrp/cafegrp/wire"
)

// Attribute bits packed into a Message's Attributes byte; the low 3 bits
// select the compression codec, the rest are reserved in v0.8.x.
const (
	CodecNone   int8 = 0
	CodecGzip   int8 = 1
	CodecSnappy int8 = 2

	codecMask int8 = 0x7
)

var crcTable = crc32.IEEETable

// Message is one key/value pair as it appears on the wire, either as a
// plain record or as a compressed wrapper around a nested MessageSet.
type Message struct {
	Crc        uint32
	Magic      int8
	Attributes int8
	Key        []byte
	Value      []byte
}

func (m *Message) Codec() int8 {
	return m.Attributes & codecMask
}

// Marshal returns the wire bytes for one message, with Crc computed over
// everything from Magic onward per the 0.8.x wire format.
func (m *Message) Marshal() []byte {
	buf := new(bytes.Buffer)
	if err := wire.Write(buf, reflect.ValueOf(m)); err != nil {
		panic(err)
	}
	b := buf.Bytes()
	crc := crc32.Checksum(b[4:], crcTable)
	binary.BigEndian.PutUint32(b[0:4], crc)
	return b
}

var ErrCorruptMessage = errors.New("recordset: message crc does not match bytes")

// UnmarshalMessage decodes a single message (the part of a MessageSet
// entry following offset and size) and verifies its crc.
func UnmarshalMessage(b []byte) (*Message, error) {
	m := &Message{}
	if err := wire.Read(bytes.NewReader(b), reflect.ValueOf(m)); err != nil {
		return nil, fmt.Errorf("recordset: error unmarshaling message: %w", err)
	}
	if crc32.Checksum(b[4:], crcTable) != m.Crc {
		return nil, ErrCorruptMessage
	}
	return m, nil
}

// Builder accumulates messages for a single MessageSet. Not safe for
// concurrent use.
type Builder struct {
	messages []*Message
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Add(key, value []byte) {
	b.messages = append(b.messages, &Message{
		Magic: 0,
		Key:   key,
		Value: value,
	})
}

func (b *Builder) NumMessages() int {
	return len(b.messages)
}

var ErrEmpty = errors.New("recordset: empty message set")

// Build marshals every added message into a MessageSet: each entry is
// its relative offset (0-based, the broker reassigns real offsets on
// append), the marshaled message's length, and the marshaled message.
func (b *Builder) Build() ([]byte, error) {
	if len(b.messages) == 0 {
		return nil, ErrEmpty
	}
	buf := new(bytes.Buffer)
	for i, m := range b.messages {
		mb := m.Marshal()
		binary.Write(buf, binary.BigEndian, int64(i))
		binary.Write(buf, binary.BigEndian, int32(len(mb)))
		buf.Write(mb)
	}
	return buf.Bytes(), nil
}

// Compress replaces every added message with a single message whose
// value is the gzip- or snappy-compressed bytes of the uncompressed
// MessageSet that Build would otherwise have produced.
func (b *Builder) Compress(codec int8) error {
	inner, err := (&Builder{messages: b.messages}).Build()
	if err != nil {
		return err
	}
	var compressed []byte
	switch codec {
	case CodecGzip:
		buf := new(bytes.Buffer)
		gz := gzip.NewWriter(buf)
		if _, err := gz.Write(inner); err != nil {
			return fmt.Errorf("recordset: error gzip-compressing message set: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("recordset: error closing gzip writer: %w", err)
		}
		compressed = buf.Bytes()
	case CodecSnappy:
		compressed = snappy.Encode(nil, inner)
	default:
		return fmt.Errorf("recordset: unsupported compression codec %d", codec)
	}
	b.messages = []*Message{{
		Magic:      0,
		Attributes: codec,
		Value:      compressed,
	}}
	return nil
}

// MessageSetEntry is one decoded (offset, message) pair from a
// MessageSet.
type MessageSetEntry struct {
	Offset  int64
	Message *Message
}

// Unmarshal walks a MessageSet and decodes each entry. A trailing entry
// whose declared size does not fit in the remaining bytes is a broker
// truncation (Fetch responses are cut off at MaxBytes) and is dropped,
// not an error.
func Unmarshal(b []byte) ([]MessageSetEntry, error) {
	var entries []MessageSetEntry
	for len(b) > 0 {
		if len(b) < 12 {
			break
		}
		offset := int64(binary.BigEndian.Uint64(b[0:8]))
		size := int32(binary.BigEndian.Uint32(b[8:12]))
		n := 12 + int(size)
		if size < 0 || len(b) < n {
			break
		}
		m, err := UnmarshalMessage(b[12:n])
		if err != nil {
			return entries, err
		}
		entries = append(entries, MessageSetEntry{Offset: offset, Message: m})
		b = b[n:]
	}
	return entries, nil
}

// Messages decodes a MessageSet and flattens any compressed wrapper
// messages into their inner, uncompressed entries. Inner entries'
// offsets are relative to the wrapper's base offset, matching how
// Kafka 0.8.x assigns offsets within a compressed batch.
func Messages(b []byte) ([]MessageSetEntry, error) {
	entries, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}
	var out []MessageSetEntry
	for _, e := range entries {
		codec := e.Message.Codec()
		if codec == CodecNone {
			out = append(out, e)
			continue
		}
		inner, err := decompress(codec, e.Message.Value)
		if err != nil {
			return nil, err
		}
		nested, err := Messages(inner)
		if err != nil {
			return nil, err
		}
		for _, ne := range nested {
			out = append(out, MessageSetEntry{
				Offset:  e.Offset + ne.Offset,
				Message: ne.Message,
			})
		}
	}
	return out, nil
}

func decompress(codec int8, b []byte) ([]byte, error) {
	switch codec {
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("recordset: error opening gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecSnappy:
		return snappy.Decode(nil, b)
	default:
		return nil, fmt.Errorf("recordset: unsupported compression codec %d", codec)
	}
}
