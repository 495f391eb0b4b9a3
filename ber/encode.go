package ber

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Encoder functions. Decoding never needs them. They build fixtures for
// tests and the tag+length prefixes of the C12.22 canonical header.

// AppendTag appends the identifier octets of h.
func AppendTag(dst []byte, h TagHeader) []byte {
	if t, ok := h.Short(); ok {
		return append(dst, byte(t))
	}
	first := byte(h.Class) | highTagNumber
	if h.Constructed {
		first |= byte(FormConstructed)
	}
	dst = append(dst, first)
	return appendBase128(dst, h.Number)
}

// AppendLength appends a definite length in the shortest form.
func AppendLength(dst []byte, length int) []byte {
	switch {
	case length < 0x80:
		return append(dst, byte(length))
	case length < 0x100:
		return append(dst, 0x81, byte(length))
	case length < 0x10000:
		return append(dst, 0x82, byte(length>>8), byte(length))
	case length < 0x1000000:
		return append(dst, 0x83, byte(length>>16), byte(length>>8), byte(length))
	default:
		return append(dst, 0x84, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	}
}

// AppendTL appends a tag and a length.
func AppendTL(dst []byte, h TagHeader, length int) []byte {
	return AppendLength(AppendTag(dst, h), length)
}

// AppendTLV appends a complete element.
func AppendTLV(dst []byte, h TagHeader, content []byte) []byte {
	return append(AppendTL(dst, h, len(content)), content...)
}

// AppendBoolean appends BOOLEAN content.
func AppendBoolean(dst []byte, value bool) []byte {
	if value {
		return append(dst, 0xFF)
	}
	return append(dst, 0x00)
}

// AppendInteger appends the minimal two's complement content of value.
func AppendInteger(dst []byte, value int64) []byte {
	var octets [8]byte
	for i := 0; i < 8; i++ {
		octets[7-i] = byte(value >> (8 * i))
	}
	start := CompressInteger(octets[:])
	return append(dst, octets[start:]...)
}

// AppendUnsigned appends the content of a non-negative INTEGER, adding a
// leading zero octet when the top bit would read as a sign.
func AppendUnsigned(dst []byte, value uint64) []byte {
	var octets [9]byte
	for i := 0; i < 8; i++ {
		octets[8-i] = byte(value >> (8 * i))
	}
	start := CompressInteger(octets[:])
	return append(dst, octets[start:]...)
}

// CompressInteger returns the index of the first octet of the minimal
// encoding of a two's complement integer: redundant leading 0x00 or 0xFF
// octets are skipped.
func CompressInteger(integer []byte) int {
	end := len(integer) - 1
	pos := 0
	for pos < end {
		if integer[pos] == 0x00 && integer[pos+1]&0x80 == 0 {
			pos++
			continue
		}
		if integer[pos] == 0xFF && integer[pos+1]&0x80 == 0x80 {
			pos++
			continue
		}
		break
	}
	return pos
}

// AppendBitString appends BIT STRING content. Unused trailing bits are cleared.
func AppendBitString(dst []byte, b Bits) []byte {
	byteSize := (b.BitLength + 7) / 8
	padding := byteSize*8 - b.BitLength
	dst = append(dst, byte(padding))
	start := len(dst)
	dst = append(dst, b.Bytes[:byteSize]...)
	if byteSize > 0 {
		dst[start+byteSize-1] &^= byte(1<<padding) - 1
	}
	return dst
}

// BitsFromOffsets builds a bit string of size bits with the given bits set.
func BitsFromOffsets(size int, offsets ...uint) Bits {
	b := Bits{Bytes: make([]byte, (size+7)/8), BitLength: size}
	for _, o := range offsets {
		if int(o) < size {
			b.Bytes[o/8] |= 0x80 >> (o % 8)
		}
	}
	return b
}

// AppendOID appends OBJECT IDENTIFIER content.
func AppendOID(dst []byte, oid OID) ([]byte, error) {
	if len(oid) < 2 || oid[0] > 2 || (oid[0] < 2 && oid[1] >= 40) {
		return dst, fmt.Errorf("%w: object identifier %s", ErrInvalidEncoding, oid)
	}
	dst = appendBase128(dst, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		dst = appendBase128(dst, arc)
	}
	return dst, nil
}

// ParseOID parses the dotted form of an object identifier.
// Commas and spaces are accepted as separators too.
func ParseOID(s string) (OID, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' || r == ' ' })
	if len(parts) < 2 {
		return nil, errors.New("invalid OID format")
	}
	oid := make(OID, 0, len(parts))
	for _, p := range parts {
		arc, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid OID: %w", err)
		}
		oid = append(oid, uint32(arc))
	}
	return oid, nil
}

func appendBase128(dst []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}

// Encode encodes v as a value of t. It is the inverse of Decode for the
// kinds Decode supports and is used to build test fixtures.
func Encode(t *Type, v *Value) ([]byte, error) {
	return encode(nil, t, v)
}

func encode(dst []byte, t *Type, v *Value) ([]byte, error) {
	if v == nil {
		return dst, fmt.Errorf("encode %s: nil value", t.Name)
	}
	switch t.Kind {
	case KindChoice:
		if v.Choice < 0 || v.Choice >= len(t.Alternatives) || len(v.Children) != 1 {
			return dst, fmt.Errorf("encode %s: bad alternative %d", t.Name, v.Choice)
		}
		inner, err := encode(nil, t.Alternatives[v.Choice].Type, v.Children[0])
		if err != nil {
			return dst, err
		}
		if t.Tag != nil {
			return AppendTLV(dst, *t.Tag, inner), nil
		}
		return append(dst, inner...), nil
	case KindAny:
		return AppendTLV(dst, v.Header, v.Bytes), nil
	}

	var content []byte
	var err error
	switch t.Kind {
	case KindBoolean:
		content = AppendBoolean(nil, v.Bool)
	case KindInteger, KindEnumerated:
		content = AppendInteger(nil, v.Int)
	case KindBitString:
		content = AppendBitString(nil, v.Bits)
	case KindOctetString:
		content = v.Bytes
	case KindNull:
	case KindOID:
		content, err = AppendOID(nil, v.OID)
	case KindString, KindTime:
		content = []byte(v.Str)
	case KindExplicit:
		if len(v.Children) != 1 {
			return dst, fmt.Errorf("encode %s: explicit tag needs one child", t.Name)
		}
		content, err = encode(nil, t.Elem, v.Children[0])
	case KindSequenceOf:
		for _, c := range v.Children {
			if content, err = encode(content, t.Elem, c); err != nil {
				break
			}
		}
	case KindSequence, KindSet:
		content, err = encodeFields(t, v)
	default:
		err = fmt.Errorf("encode %s: unsupported kind %s", t.Name, t.Kind)
	}
	if err != nil {
		return dst, err
	}
	return AppendTLV(dst, *t.Tag, content), nil
}

func encodeFields(t *Type, v *Value) ([]byte, error) {
	var content []byte
	for _, f := range t.Fields {
		c := v.Field(f.Name)
		if c == nil {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("encode %s: missing %s", t.Name, f.Name)
		}
		var err error
		if content, err = encode(content, f.Type, c); err != nil {
			return nil, err
		}
	}
	return content, nil
}
