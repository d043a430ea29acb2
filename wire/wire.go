// Package wire implements big-endian marshaling and unmarshaling of Kafka
// protocol structs via reflection. Struct fields starting with a lowercase
// letter, and fields tagged `wire:"omit"`, are skipped. Strings are
// written/read as {length: int16, bytes}; this implementation treats an
// empty string the same as a nil one (length 0), which differs from the
// wire protocol's "-1 means nil" convention for strings but matches no
// struct this module needs to round-trip through a nil string. Byte slices
// and other slices use {length: int32, items...} with length -1 meaning a
// nil slice.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strings"
)

var ord = binary.BigEndian

// fieldCoder is one encode/decode pair keyed by reflect.Kind. Write and
// Read each dispatch through a table of these instead of a single big
// type switch, so adding a kind this module's proto/* structs start
// using is one map entry, not a change to both functions' control flow.
type fieldCoder struct {
	write func(w io.Writer, val reflect.Value) error
	read  func(r io.Reader, val reflect.Value) error
}

var coders map[reflect.Kind]fieldCoder

func init() {
	coders = map[reflect.Kind]fieldCoder{
		reflect.Ptr:       {writeIndirect, readIndirect},
		reflect.Interface: {writeIndirect, readIndirect},
		reflect.Struct:    {writeStruct, readStruct},
		reflect.Slice:     {writeSlice, readSlice},
		reflect.String:    {writeString, readString},
		reflect.Int8:      {writeInt8, readInt8},
		reflect.Int16:     {writeInt16, readInt16},
		reflect.Int32:     {writeInt32, readInt32},
		reflect.Uint32:    {writeUint32, readUint32},
		reflect.Int64:     {writeInt64, readInt64},
		reflect.Bool:      {writeBool, readBool},
	}
}

// Write marshals val onto w. Any reflect.Kind without an entry in
// coders (maps, funcs, floats — nothing this module's protocol structs
// declare) is silently skipped rather than erroring.
func Write(w io.Writer, val reflect.Value) error {
	c, ok := coders[val.Kind()]
	if !ok {
		return nil
	}
	return c.write(w, val)
}

// Read unmarshals from r into val, the inverse of Write.
func Read(r io.Reader, val reflect.Value) error {
	c, ok := coders[val.Kind()]
	if !ok {
		return nil
	}
	return c.read(r, val)
}

func writeIndirect(w io.Writer, val reflect.Value) error { return Write(w, val.Elem()) }
func readIndirect(r io.Reader, val reflect.Value) error  { return Read(r, val.Elem()) }

// skipField reports whether a struct field is part of the wire format:
// unexported fields (lowercase first letter) and anything tagged
// `wire:"omit"` are bookkeeping the protocol itself never carries.
func skipField(f reflect.StructField) bool {
	name := f.Name
	if name[0:1] == strings.ToLower(name[0:1]) {
		return true
	}
	return f.Tag.Get("wire") == "omit"
}

func writeStruct(w io.Writer, val reflect.Value) error {
	t := val.Type()
	for i := 0; i < val.NumField(); i++ {
		if skipField(t.Field(i)) {
			continue
		}
		if err := Write(w, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func readStruct(r io.Reader, val reflect.Value) error {
	t := val.Type()
	for i := 0; i < val.NumField(); i++ {
		if skipField(t.Field(i)) {
			continue
		}
		if err := Read(r, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func writeSlice(w io.Writer, val reflect.Value) error {
	if val.IsNil() {
		return binary.Write(w, ord, int32(-1))
	}
	elemTyp := val.Type().Elem()
	if elemTyp.Kind() == reflect.Uint8 { // []byte
		if err := binary.Write(w, ord, int32(val.Len())); err != nil {
			return err
		}
		_, err := w.Write(val.Bytes())
		return err
	}
	if err := binary.Write(w, ord, int32(val.Len())); err != nil {
		return err
	}
	for i := 0; i < val.Len(); i++ {
		if err := Write(w, val.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, val reflect.Value) error {
	var n int32
	if err := binary.Read(r, ord, &n); err != nil {
		return fmt.Errorf("error reading array length: %v", err)
	}
	if n == -1 {
		return nil // nil slice, covers both []byte and typed slices
	}
	elemTyp := val.Type().Elem()
	if elemTyp.Kind() == reflect.Uint8 { // []byte
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("error reading []byte body: %v", err)
		}
		val.SetBytes(b)
		return nil
	}
	out := reflect.MakeSlice(val.Type(), int(n), int(n))
	for i := 0; i < int(n); i++ {
		if err := Read(r, out.Index(i)); err != nil {
			return fmt.Errorf("error parsing array element: %v", err)
		}
	}
	val.Set(out)
	return nil
}

func writeString(w io.Writer, val reflect.Value) error {
	s := val.String()
	if len(s) == 0 {
		return binary.Write(w, ord, int16(0))
	}
	if err := binary.Write(w, ord, int16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader, val reflect.Value) error {
	var n int16
	if err := binary.Read(r, ord, &n); err != nil {
		return fmt.Errorf("error reading string length: %v", err)
	}
	if n < 0 {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("error reading string body: %v", err)
	}
	val.SetString(string(b))
	return nil
}

func writeInt8(w io.Writer, val reflect.Value) error  { return binary.Write(w, ord, int8(val.Int())) }
func writeInt16(w io.Writer, val reflect.Value) error { return binary.Write(w, ord, int16(val.Int())) }
func writeInt32(w io.Writer, val reflect.Value) error { return binary.Write(w, ord, int32(val.Int())) }
func writeInt64(w io.Writer, val reflect.Value) error { return binary.Write(w, ord, val.Int()) }
func writeUint32(w io.Writer, val reflect.Value) error {
	return binary.Write(w, ord, uint32(val.Uint()))
}

func readInt8(r io.Reader, val reflect.Value) error {
	var i int8
	if err := binary.Read(r, ord, &i); err != nil {
		return fmt.Errorf("error reading int8: %v", err)
	}
	val.SetInt(int64(i))
	return nil
}

func readInt16(r io.Reader, val reflect.Value) error {
	var i int16
	if err := binary.Read(r, ord, &i); err != nil {
		return fmt.Errorf("error reading int16: %v", err)
	}
	val.SetInt(int64(i))
	return nil
}

func readInt32(r io.Reader, val reflect.Value) error {
	var i int32
	if err := binary.Read(r, ord, &i); err != nil {
		return fmt.Errorf("error reading int32: %v", err)
	}
	val.SetInt(int64(i))
	return nil
}

func readUint32(r io.Reader, val reflect.Value) error {
	var i uint32
	if err := binary.Read(r, ord, &i); err != nil {
		return fmt.Errorf("error reading uint32: %v", err)
	}
	val.SetUint(uint64(i))
	return nil
}

func readInt64(r io.Reader, val reflect.Value) error {
	var i int64
	if err := binary.Read(r, ord, &i); err != nil {
		return fmt.Errorf("error reading int64: %v", err)
	}
	val.SetInt(i)
	return nil
}

func writeBool(w io.Writer, val reflect.Value) error {
	b := byte(0)
	if val.Bool() {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader, val reflect.Value) error {
	b := make([]byte, 1)
	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("error reading bool: %v", err)
	}
	val.SetBool(b[0] != 0)
	return nil
}

// FrameBytes prepends the 4-byte big-endian length prefix every Kafka
// request/response frame carries on the wire to an already-marshaled body.
func FrameBytes(body []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, ord, int32(len(body))); err != nil {
		return nil, fmt.Errorf("error writing frame length: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// WriteFrame marshals val and prepends the 4-byte big-endian length prefix
// every Kafka request/response frame carries on the wire.
func WriteFrame(w io.Writer, val reflect.Value) error {
	buf := new(bytes.Buffer)
	if err := Write(buf, val); err != nil {
		return err
	}
	if err := binary.Write(w, ord, int32(buf.Len())); err != nil {
		return fmt.Errorf("error writing frame length: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFrame reads a 4-byte length-prefixed frame and returns its payload,
// without interpreting it.
func ReadFrame(r io.Reader) ([]byte, error) {
	var size int32
	if err := binary.Read(r, ord, &size); err != nil {
		return nil, fmt.Errorf("error reading frame length: %w", err)
	}
	if size < 0 {
		return nil, fmt.Errorf("invalid frame length %d", size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading frame body (%d bytes): %w", size, err)
	}
	return b, nil
}
