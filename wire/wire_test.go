package wire

import (
	"bytes"
	"reflect"
	"testing"
)

type Outer struct {
	Int16       int16
	Int16Array  []int16
	Struct      Inner
	StructArray []Inner
}

type Inner struct {
	Int16 int16
}

func TestWriteRead(t *testing.T) {
	m := &Outer{
		Int16:       1,
		Int16Array:  []int16{2, 3},
		Struct:      Inner{4},
		StructArray: []Inner{Inner{5}, Inner{6}},
	}
	t.Logf("%+v", m)
	buf := new(bytes.Buffer)
	if err := Write(buf, reflect.ValueOf(m)); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	t.Log(b)
	n := &Outer{}
	if err := Read(bytes.NewReader(b), reflect.ValueOf(n)); err != nil {
		t.Fatal(err)
	}
	t.Logf("%+v", n)
}

type tagged struct {
	Keep   int32
	Hidden int32 `wire:"omit"`
	lower  int32
}

func TestWriteSkipsOmitTagAndLowercaseFields(t *testing.T) {
	m := &tagged{Keep: 1, Hidden: 2, lower: 3}
	buf := new(bytes.Buffer)
	if err := Write(buf, reflect.ValueOf(m)); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4 {
		t.Fatalf("expected only Keep to be written (4 bytes), got %d", buf.Len())
	}
}

type withSlice struct {
	Bytes []byte
	Ints  []int32
}

func TestWriteReadNilVsEmptySlice(t *testing.T) {
	cases := []withSlice{
		{Bytes: nil, Ints: nil},
		{Bytes: []byte{}, Ints: []int32{}},
		{Bytes: []byte("hi"), Ints: []int32{1, 2, 3}},
	}
	for _, c := range cases {
		buf := new(bytes.Buffer)
		if err := Write(buf, reflect.ValueOf(&c)); err != nil {
			t.Fatal(err)
		}
		out := &withSlice{}
		if err := Read(bytes.NewReader(buf.Bytes()), reflect.ValueOf(out)); err != nil {
			t.Fatal(err)
		}
		if (c.Bytes == nil) != (out.Bytes == nil) {
			t.Fatalf("Bytes nil-ness mismatch: in=%v out=%v", c.Bytes, out.Bytes)
		}
		if (c.Ints == nil) != (out.Ints == nil) {
			t.Fatalf("Ints nil-ness mismatch: in=%v out=%v", c.Ints, out.Ints)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	body := []byte("hello kafka")
	framed, err := FrameBytes(body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(bytes.NewReader(framed))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestReadFrameRejectsNegativeLength(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})); err == nil {
		t.Fatal("expected an error for a negative frame length")
	}
}
