package binary

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}
	if r.Position() != 3 || r.Len() != 2 {
		t.Errorf("position=%d len=%d, want 3 and 2", r.Position(), r.Len())
	}

	if _, err := r.ReadBytes(10); !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}

func TestReaderReadBytesZeroAtEnd(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.ReadByte(); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadRemaining()
	if err != nil {
		t.Fatalf("ReadRemaining at end: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := r.ReadU32(); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestReaderReadName(t *testing.T) {
	r := NewReader([]byte{0x06, '_', 's', 't', 'a', 'r', 't'})
	name, err := r.ReadName()
	if err != nil {
		t.Fatalf("ReadName: %v", err)
	}
	if name != "_start" {
		t.Errorf("got %q, want _start", name)
	}
}

func TestReaderReadNameInvalidUTF8(t *testing.T) {
	r := NewReader([]byte{0x02, 0xff, 0xfe})
	if _, err := r.ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x6D736100)
	w.WriteU32(624485)
	w.WriteS32(-129)
	w.WriteName("pointer")
	w.Byte(0x7f)

	r := NewReader(w.Bytes())
	magic, err := r.ReadU32LE()
	if err != nil || magic != 0x6D736100 {
		t.Fatalf("magic = %x, %v", magic, err)
	}
	u, err := r.ReadU32()
	if err != nil || u != 624485 {
		t.Fatalf("u32 = %d, %v", u, err)
	}
	s, err := r.ReadS32()
	if err != nil || s != -129 {
		t.Fatalf("s32 = %d, %v", s, err)
	}
	name, err := r.ReadName()
	if err != nil || name != "pointer" {
		t.Fatalf("name = %q, %v", name, err)
	}
	b, err := r.ReadByte()
	if err != nil || b != 0x7f {
		t.Fatalf("byte = %x, %v", b, err)
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left over", r.Len())
	}
}

func TestWriterWriteSized(t *testing.T) {
	sub := NewWriter()
	sub.WriteBytes([]byte{1, 2, 3})

	w := NewWriter()
	w.WriteSized(sub)
	if !bytes.Equal(w.Bytes(), []byte{3, 1, 2, 3}) {
		t.Errorf("got %v", w.Bytes())
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, _ = r.ReadByte()
	cause := errors.New("bad")
	err := r.WrapError("export section", cause)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 {
		t.Errorf("Position = %d, want 1", pe.Position)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap lost cause")
	}
	if !strings.Contains(err.Error(), "export section at position 1") {
		t.Errorf("message = %q", err.Error())
	}
	if got := (&ParseError{Err: cause, Position: 4}).Error(); got != "wasm: at position 4: bad" {
		t.Errorf("no-section message = %q", got)
	}
}
