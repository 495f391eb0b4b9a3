package ber

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Length is a decoded BER length. LengthIndefinite marks the
// end-of-contents terminated form.
type Length int

// LengthIndefinite is returned by DecodeLength for the 0x80 length octet.
const LengthIndefinite Length = -1

// maxLengthOctets is the largest long-form length accepted.
const maxLengthOctets = 4

// Definite reports whether l is a definite length.
func (l Length) Definite() bool { return l >= 0 }

// DecodeTag decodes the identifier octets at the cursor.
// Returns the header and the offset of the first length octet.
func DecodeTag(c Cursor) (TagHeader, int, error) {
	start := c.off
	b, ok := c.Peek()
	if !ok {
		return TagHeader{}, start, newError(ErrTruncated, start, "tag")
	}
	h := TagHeader{
		Class:       TagClass(b & 0xC0),
		Constructed: b&byte(FormConstructed) != 0,
		Number:      uint32(b & highTagNumber),
	}
	pos := start + 1
	if h.Number != highTagNumber {
		return h, pos, nil
	}

	// high-tag-number form: base-128, continuation bit set on all but the last octet
	var number uint32
	for {
		if pos >= c.end {
			return TagHeader{}, start, newError(ErrTruncated, pos, "high tag number")
		}
		b = c.buf[pos]
		pos++
		if number > math.MaxUint32>>7 {
			return TagHeader{}, start, newError(ErrInvalidEncoding, start, "tag number overflows uint32")
		}
		number = number<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	h.Number = number
	return h, pos, nil
}

// DecodeLength decodes the length octets at the cursor.
// Returns the length and the offset of the first content octet.
func DecodeLength(c Cursor) (Length, int, error) {
	start := c.off
	b, ok := c.Peek()
	if !ok {
		return 0, start, newError(ErrTruncated, start, "length")
	}
	if b < 0x80 {
		return Length(b), start + 1, nil
	}
	if b == 0x80 {
		return LengthIndefinite, start + 1, nil
	}
	if b == 0xFF {
		return 0, start, newError(ErrInvalidEncoding, start, "reserved length octet 0xff")
	}

	n := int(b & 0x7F)
	if n > maxLengthOctets {
		return 0, start, newError(ErrLengthTooLarge, start, strconv.Itoa(n)+" length octets")
	}
	if c.Remaining() < 1+n {
		return 0, start, newError(ErrTruncated, start, "long form length")
	}
	var length uint64
	for i := 0; i < n; i++ {
		length = length<<8 | uint64(c.buf[start+1+i])
	}
	if length > math.MaxInt32 {
		return 0, start, newError(ErrLengthTooLarge, start, strconv.FormatUint(length, 10))
	}
	return Length(length), start + 1 + n, nil
}

// IsLengthDecodable reports whether a complete definite length field is
// available at the cursor. It never advances the cursor and looks at most
// at the length octets themselves.
func IsLengthDecodable(c Cursor) bool {
	b, ok := c.Peek()
	if !ok {
		return false
	}
	if b < 0x80 {
		return true
	}
	n := int(b & 0x7F)
	if n == 0 || n > maxLengthOctets {
		return false
	}
	return c.Remaining() >= 1+n
}

// ReadOctets returns the next n captured bytes and the offset after them.
// The returned slice aliases the captured buffer.
func ReadOctets(c Cursor, n int) ([]byte, int, error) {
	if n < 0 {
		return nil, c.off, newError(ErrInvalidEncoding, c.off, "negative length")
	}
	if n > c.Remaining() {
		return nil, c.off, newError(ErrTruncated, c.off,
			fmt.Sprintf("need %d bytes, have %d", n, c.Remaining()))
	}
	return c.buf[c.off : c.off+n], c.off + n, nil
}

// DecodeHeader decodes tag and length in one step.
// Returns the offset of the first content octet.
func DecodeHeader(c Cursor) (TagHeader, Length, int, error) {
	h, pos, err := DecodeTag(c)
	if err != nil {
		return TagHeader{}, 0, c.off, err
	}
	l, pos, err := DecodeLength(c.At(pos))
	if err != nil {
		return TagHeader{}, 0, c.off, err
	}
	return h, l, pos, nil
}

// Content decoders. They work on the content octets of a primitive encoding
// and return errors wrapping the package sentinels.

// DecodeBoolean decodes BOOLEAN content.
func DecodeBoolean(content []byte) (bool, error) {
	if len(content) != 1 {
		return false, fmt.Errorf("%w: boolean length %d", ErrInvalidEncoding, len(content))
	}
	return content[0] != 0, nil
}

// DecodeNull checks NULL content.
func DecodeNull(content []byte) error {
	if len(content) != 0 {
		return fmt.Errorf("%w: null length %d", ErrInvalidEncoding, len(content))
	}
	return nil
}

// DecodeSigned decodes two's complement INTEGER content into T.
func DecodeSigned[T constraints.Signed](content []byte) (T, error) {
	var zero T
	if len(content) == 0 {
		return zero, fmt.Errorf("%w: empty integer", ErrInvalidEncoding)
	}
	if len(content) > int(unsafe.Sizeof(zero)) {
		return zero, fmt.Errorf("%w: integer of %d octets overflows %d bits",
			ErrInvalidEncoding, len(content), unsafe.Sizeof(zero)*8)
	}
	v := int64(int8(content[0]))
	for _, b := range content[1:] {
		v = v<<8 | int64(b)
	}
	return T(v), nil
}

// DecodeUnsigned decodes non-negative INTEGER content into T.
// One leading zero octet is allowed beyond the size of T.
func DecodeUnsigned[T constraints.Unsigned](content []byte) (T, error) {
	var zero T
	if len(content) == 0 {
		return zero, fmt.Errorf("%w: empty integer", ErrInvalidEncoding)
	}
	if content[0]&0x80 != 0 {
		return zero, fmt.Errorf("%w: negative value for unsigned integer", ErrInvalidEncoding)
	}
	if len(content) > 1 && content[0] == 0 {
		content = content[1:]
	}
	if len(content) > int(unsafe.Sizeof(zero)) {
		return zero, fmt.Errorf("%w: integer of %d octets overflows %d bits",
			ErrInvalidEncoding, len(content), unsafe.Sizeof(zero)*8)
	}
	var v uint64
	for _, b := range content {
		v = v<<8 | uint64(b)
	}
	return T(v), nil
}

// Bits is a decoded BIT STRING.
type Bits struct {
	Bytes     []byte
	BitLength int
}

// At reports whether bit i (0 is the most significant bit of the first octet) is set.
func (b Bits) At(i int) bool {
	if i < 0 || i >= b.BitLength {
		return false
	}
	return b.Bytes[i/8]&(0x80>>(uint(i)%8)) != 0
}

// Offsets returns the positions of all set bits in ascending order.
func (b Bits) Offsets() []uint {
	var offsets []uint
	for i := 0; i < b.BitLength; i++ {
		if b.At(i) {
			offsets = append(offsets, uint(i))
		}
	}
	return offsets
}

func (b Bits) String() string {
	var sb strings.Builder
	for i := 0; i < b.BitLength; i++ {
		if b.At(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// DecodeBitString decodes BIT STRING content: the unused-bits octet followed by the bits.
func DecodeBitString(content []byte) (Bits, error) {
	if len(content) == 0 {
		return Bits{}, fmt.Errorf("%w: bit string without unused-bits octet", ErrInvalidEncoding)
	}
	unused := int(content[0])
	if unused > 7 || (len(content) == 1 && unused != 0) {
		return Bits{}, fmt.Errorf("%w: %d unused bits", ErrInvalidEncoding, unused)
	}
	data := content[1:]
	return Bits{Bytes: data, BitLength: len(data)*8 - unused}, nil
}

// OID is a decoded OBJECT IDENTIFIER.
type OID []uint32

func (o OID) String() string {
	parts := make([]string, len(o))
	for i, arc := range o {
		parts[i] = strconv.FormatUint(uint64(arc), 10)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether two OIDs have the same arcs.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// DecodeOID decodes OBJECT IDENTIFIER content.
func DecodeOID(content []byte) (OID, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty object identifier", ErrInvalidEncoding)
	}
	var oid OID
	var arc uint32
	first := true
	for i, b := range content {
		if arc > math.MaxUint32>>7 {
			return nil, fmt.Errorf("%w: object identifier arc overflows uint32", ErrInvalidEncoding)
		}
		arc = arc<<7 | uint32(b&0x7F)
		if b&0x80 != 0 {
			if i == len(content)-1 {
				return nil, fmt.Errorf("%w: unterminated object identifier arc", ErrInvalidEncoding)
			}
			continue
		}
		if first {
			// the first subidentifier packs two arcs
			switch {
			case arc < 40:
				oid = append(oid, 0, arc)
			case arc < 80:
				oid = append(oid, 1, arc-40)
			default:
				oid = append(oid, 2, arc-80)
			}
			first = false
		} else {
			oid = append(oid, arc)
		}
		arc = 0
	}
	return oid, nil
}

// DecodeString decodes character string content. No character set validation is done.
func DecodeString(content []byte) string {
	return string(content)
}
