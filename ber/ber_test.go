package ber

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeLength(t *testing.T) {
	tests := []struct {
		name    string
		buffer  []byte
		wantPos int
		wantLen Length
		wantErr error
	}{
		{
			name:    "short form length < 128",
			buffer:  []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantPos: 1,
			wantLen: 5,
		},
		{
			name:    "long form 1 byte",
			buffer:  []byte{0x81, 0xFF},
			wantPos: 2,
			wantLen: 0xFF,
		},
		{
			name:    "long form 2 bytes",
			buffer:  []byte{0x82, 0x01, 0x00},
			wantPos: 3,
			wantLen: 0x0100,
		},
		{
			name:    "long form 3 bytes",
			buffer:  []byte{0x83, 0x00, 0x01, 0x00},
			wantPos: 4,
			wantLen: 0x000100,
		},
		{
			name:    "long form 4 bytes",
			buffer:  []byte{0x84, 0x01, 0x00, 0x00, 0x00},
			wantPos: 5,
			wantLen: 0x01000000,
		},
		{
			name:    "indefinite",
			buffer:  []byte{0x80},
			wantPos: 1,
			wantLen: LengthIndefinite,
		},
		{
			name:    "five length octets",
			buffer:  []byte{0x85, 0x00, 0x00, 0x00, 0x00, 0x01},
			wantErr: ErrLengthTooLarge,
		},
		{
			name:    "value above int32",
			buffer:  []byte{0x84, 0xFF, 0xFF, 0xFF, 0xFF},
			wantErr: ErrLengthTooLarge,
		},
		{
			name:    "missing length octets",
			buffer:  []byte{0x82, 0x01},
			wantErr: ErrTruncated,
		},
		{
			name:    "empty buffer",
			buffer:  []byte{},
			wantErr: ErrTruncated,
		},
		{
			name:    "reserved 0xff",
			buffer:  []byte{0xFF},
			wantErr: ErrInvalidEncoding,
		},
		{
			name:    "zero length",
			buffer:  []byte{0x00},
			wantPos: 1,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLen, gotPos, err := DecodeLength(NewCursor(tt.buffer))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr != nil {
				return
			}
			if gotPos != tt.wantPos {
				t.Errorf("DecodeLength() gotPos = %v, want %v", gotPos, tt.wantPos)
			}
			if gotLen != tt.wantLen {
				t.Errorf("DecodeLength() gotLen = %v, want %v", gotLen, tt.wantLen)
			}
		})
	}
}

func TestDecodeTag(t *testing.T) {
	tests := []struct {
		name    string
		buffer  []byte
		want    TagHeader
		wantPos int
		wantErr error
	}{
		{
			name:    "universal sequence",
			buffer:  []byte{0x30},
			want:    TagHeader{Class: ClassUniversal, Constructed: true, Number: 16},
			wantPos: 1,
		},
		{
			name:    "context primitive 3",
			buffer:  []byte{0x83, 0x01},
			want:    TagHeader{Class: ClassContextSpecific, Number: 3},
			wantPos: 1,
		},
		{
			name:    "application constructed 0",
			buffer:  []byte{0x60},
			want:    TagHeader{Class: ClassApplication, Constructed: true, Number: 0},
			wantPos: 1,
		},
		{
			name:    "high tag number one octet",
			buffer:  []byte{0x9F, 0x1F},
			want:    TagHeader{Class: ClassContextSpecific, Number: 31},
			wantPos: 2,
		},
		{
			name:    "high tag number two octets",
			buffer:  []byte{0xBF, 0x81, 0x00},
			want:    TagHeader{Class: ClassContextSpecific, Constructed: true, Number: 128},
			wantPos: 3,
		},
		{
			name:    "high tag number truncated",
			buffer:  []byte{0x9F, 0x81},
			wantErr: ErrTruncated,
		},
		{
			name:    "high tag number overflows uint32",
			buffer:  []byte{0x9F, 0x8F, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F},
			wantErr: ErrInvalidEncoding,
		},
		{
			name:    "empty buffer",
			buffer:  nil,
			wantErr: ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotPos, err := DecodeTag(NewCursor(tt.buffer))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeTag() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr != nil {
				return
			}
			if got != tt.want {
				t.Errorf("DecodeTag() = %v, want %v", got, tt.want)
			}
			if gotPos != tt.wantPos {
				t.Errorf("DecodeTag() gotPos = %v, want %v", gotPos, tt.wantPos)
			}
		})
	}
}

func TestIsLengthDecodable(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		want   bool
	}{
		{"short form", []byte{0x05}, true},
		{"long form complete", []byte{0x82, 0x01, 0x00}, true},
		{"long form missing octet", []byte{0x82, 0x01}, false},
		{"indefinite", []byte{0x80}, false},
		{"too many octets", []byte{0x85, 0, 0, 0, 0, 1}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.buffer)
			if got := IsLengthDecodable(c); got != tt.want {
				t.Errorf("IsLengthDecodable() = %v, want %v", got, tt.want)
			}
			if c.Offset() != 0 {
				t.Errorf("IsLengthDecodable() moved the cursor to %d", c.Offset())
			}
		})
	}
}

func TestReadOctets(t *testing.T) {
	c := NewCursor([]byte("Hello"))

	got, next, err := ReadOctets(c.At(1), 3)
	if err != nil {
		t.Fatalf("ReadOctets() error = %v", err)
	}
	if string(got) != "ell" || next != 4 {
		t.Errorf("ReadOctets() = %q, %d, want %q, %d", got, next, "ell", 4)
	}

	if _, _, err := ReadOctets(c, 10); !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadOctets() error = %v, want %v", err, ErrTruncated)
	}

	var de *DecodeError
	_, _, err = ReadOctets(c.At(2), 10)
	if !errors.As(err, &de) || de.Offset != 2 {
		t.Errorf("ReadOctets() error = %v, want DecodeError at offset 2", err)
	}
}

func TestCursorTruncated(t *testing.T) {
	c := NewTruncatedCursor([]byte{0x01, 0x02}, 5)
	if c.Remaining() != 2 || c.ReportedRemaining() != 5 || !c.Short() {
		t.Errorf("cursor = %d/%d short=%v", c.Remaining(), c.ReportedRemaining(), c.Short())
	}

	child := c.At(1).Limit(3)
	if child.Remaining() != 1 || child.ReportedRemaining() != 3 {
		t.Errorf("child = %d/%d, want 1/3", child.Remaining(), child.ReportedRemaining())
	}

	if NewTruncatedCursor([]byte{0x01}, 0).ReportedRemaining() != 1 {
		t.Error("reported length below captured length must be ignored")
	}
}

func TestDecodeBoolean(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
		wantErr error
	}{
		{"true", []byte{0x01}, true, nil},
		{"true 0xff", []byte{0xFF}, true, nil},
		{"false", []byte{0x00}, false, nil},
		{"empty", []byte{}, false, ErrInvalidEncoding},
		{"two octets", []byte{0x00, 0x01}, false, ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBoolean(tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeBoolean() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("DecodeBoolean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeSigned(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    int32
		wantErr error
	}{
		{"single byte", []byte{0x05}, 5, nil},
		{"negative", []byte{0xFF}, -1, nil},
		{"two bytes", []byte{0x01, 0x00}, 256, nil},
		{"negative two bytes", []byte{0xFF, 0x00}, -256, nil},
		{"four bytes", []byte{0x7F, 0xFF, 0xFF, 0xFF}, 2147483647, nil},
		{"overflow", []byte{0x01, 0x00, 0x00, 0x00, 0x00}, 0, ErrInvalidEncoding},
		{"empty", nil, 0, ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSigned[int32](tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeSigned() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("DecodeSigned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeUnsigned(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    uint32
		wantErr error
	}{
		{"single byte", []byte{0x05}, 5, nil},
		{"two bytes", []byte{0x01, 0x00}, 256, nil},
		{"leading zero", []byte{0x00, 0xFD, 0xE8}, 65000, nil},
		{"max with leading zero", []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF}, 4294967295, nil},
		{"negative", []byte{0x80}, 0, ErrInvalidEncoding},
		{"overflow", []byte{0x01, 0x00, 0x00, 0x00, 0x00}, 0, ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeUnsigned[uint32](tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeUnsigned() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("DecodeUnsigned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeOID(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
		wantErr error
	}{
		{name: "mms abstract syntax", content: []byte{0x28, 0xca, 0x22, 0x02, 0x01}, want: "1.0.9506.2.1"},
		{name: "two arc OID", content: []byte{0x52, 0x01}, want: "2.2.1"},
		{name: "acse", content: []byte{0x52, 0x01, 0x00, 0x01}, want: "2.2.1.0.1"},
		{name: "c12.22 base", content: []byte{0x60, 0x7c}, want: "2.16.124"},
		{name: "unterminated arc", content: []byte{0x28, 0xca}, wantErr: ErrInvalidEncoding},
		{name: "empty", content: nil, wantErr: ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOID(tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeOID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr == nil && got.String() != tt.want {
				t.Errorf("DecodeOID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeBitString(t *testing.T) {
	// ParameterSupportOptions from an initiate response
	got, err := DecodeBitString([]byte{0x05, 0xf1, 0x00})
	if err != nil {
		t.Fatalf("DecodeBitString() error = %v", err)
	}
	if got.BitLength != 11 {
		t.Errorf("BitLength = %d, want 11", got.BitLength)
	}
	if got.String() != "11110001000" {
		t.Errorf("DecodeBitString() = %s, want 11110001000", got)
	}
	want := []uint{0, 1, 2, 3, 7}
	offsets := got.Offsets()
	if len(offsets) != len(want) {
		t.Fatalf("Offsets() = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("Offsets() = %v, want %v", offsets, want)
		}
	}

	if _, err := DecodeBitString([]byte{0x08, 0x00}); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("DecodeBitString() error = %v, want %v", err, ErrInvalidEncoding)
	}
	if _, err := DecodeBitString(nil); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("DecodeBitString() error = %v, want %v", err, ErrInvalidEncoding)
	}
}

func TestAppendLength(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   []byte
	}{
		{"short form", 10, []byte{0x0A}},
		{"long form 1 byte", 200, []byte{0x81, 0xC8}},
		{"long form 2 bytes", 300, []byte{0x82, 0x01, 0x2C}},
		{"long form 3 bytes", 70000, []byte{0x83, 0x01, 0x11, 0x70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendLength(nil, tt.length)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("AppendLength() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestAppendTag(t *testing.T) {
	tests := []struct {
		name string
		h    TagHeader
		want []byte
	}{
		{"sequence", UniversalTag(Sequence, true), []byte{0x30}},
		{"context 30 constructed", ContextTag(30, true), []byte{0xBE}},
		{"context 31", ContextTag(31, false), []byte{0x9F, 0x1F}},
		{"context 128 constructed", ContextTag(128, true), []byte{0xBF, 0x81, 0x00}},
		{"application 0 constructed", ApplicationTag(0, true), []byte{0x60}},
		{"application 2", ApplicationTag(2, false), []byte{0x42}},
		{"universal integer", UniversalTag(Integer, false), []byte{0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendTag(nil, tt.h)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("AppendTag() = %x, want %x", got, tt.want)
			}
			back, _, err := DecodeTag(NewCursor(got))
			if err != nil || back != tt.h {
				t.Errorf("DecodeTag(AppendTag()) = %v, %v, want %v", back, err, tt.h)
			}
		})
	}
}

func TestAppendInteger(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"small positive", 127, []byte{0x7F}},
		{"needs sign octet", 128, []byte{0x00, 0x80}},
		{"minus one", -1, []byte{0xFF}},
		{"minus 129", -129, []byte{0xFF, 0x7F}},
		{"large", 65000, []byte{0x00, 0xFD, 0xE8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendInteger(nil, tt.value)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("AppendInteger() = %x, want %x", got, tt.want)
			}
			back, err := DecodeSigned[int64](got)
			if err != nil || back != tt.value {
				t.Errorf("DecodeSigned(AppendInteger()) = %v, %v, want %v", back, err, tt.value)
			}
		})
	}
}

func TestAppendUnsigned(t *testing.T) {
	got := AppendUnsigned(nil, 0xFFFFFFFF)
	want := []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendUnsigned() = %x, want %x", got, want)
	}
}

func TestCompressInteger(t *testing.T) {
	tests := []struct {
		name    string
		integer []byte
		want    int
	}{
		{"no compression needed", []byte{0x12, 0x34}, 0},
		{"leading zeros", []byte{0x00, 0x00, 0x12, 0x34}, 2},
		{"zero keeps sign octet", []byte{0x00, 0x00, 0x80, 0x00}, 1},
		{"leading 0xFF for negative", []byte{0xFF, 0xFF, 0x80, 0x00}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompressInteger(tt.integer); got != tt.want {
				t.Errorf("CompressInteger() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppendBitString(t *testing.T) {
	b := BitsFromOffsets(11, 0, 1, 2, 3, 7)
	got := AppendBitString(nil, b)
	want := []byte{0x05, 0xF1, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendBitString() = %x, want %x", got, want)
	}
}

func TestParseOID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"mms", "1.0.9506.2.1", []byte{0x28, 0xca, 0x22, 0x02, 0x01}, false},
		{"comma separated", "2,2,1,0,1", []byte{0x52, 0x01, 0x00, 0x01}, false},
		{"space separated", "2 16 124 113620 1 22", []byte{0x60, 0x7c, 0x86, 0xf7, 0x54, 0x01, 0x16}, false},
		{"single arc", "1", nil, true},
		{"not a number", "1.x.3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oid, err := ParseOID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, err := AppendOID(nil, oid)
			if err != nil {
				t.Fatalf("AppendOID() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("AppendOID() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestLengthRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 127, 128, 255, 256, 65535, 65536, 1 << 24} {
		encoded := AppendLength(nil, length)
		decoded, next, err := DecodeLength(NewCursor(encoded))
		if err != nil {
			t.Errorf("DecodeLength() error = %v for length %v", err, length)
			continue
		}
		if next != len(encoded) {
			t.Errorf("Position mismatch: %v != %v", next, len(encoded))
		}
		if int(decoded) != length {
			t.Errorf("Round trip failed: %v -> %v", length, decoded)
		}
	}
}
