package ber

import (
	"bytes"
	"fmt"
	"strings"
)

// Value is a node of a decoded tree.
//
// Scalars are stored in the field that matches Kind. Constructed values own
// their Children. A CHOICE node has exactly one child, the selected
// alternative, and Choice holds its ordinal.
type Value struct {
	Name   string
	Kind   Kind
	Header TagHeader
	// Offset of the identifier octets in the captured buffer.
	Offset int
	// Length of the whole element, identifier and length octets included,
	// as declared on the wire.
	Length int

	Bool     bool
	Int      int64
	Bytes    []byte
	Str      string
	OID      OID
	Bits     Bits
	Children []*Value
	Choice   int
}

// Field returns the first direct child with the given name.
func (v *Value) Field(name string) *Value {
	if v == nil {
		return nil
	}
	for _, c := range v.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path follows Field through nested values, entering CHOICE nodes and
// explicit tags transparently.
func (v *Value) Path(names ...string) *Value {
	cur := v
	for _, name := range names {
		cur = cur.Unwrap().Field(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Selected returns the chosen alternative of a CHOICE node.
func (v *Value) Selected() *Value {
	if v == nil || v.Kind != KindChoice || len(v.Children) == 0 {
		return nil
	}
	return v.Children[0]
}

// Unwrap descends through CHOICE nodes and explicit tags to the first
// value that carries content of its own.
func (v *Value) Unwrap() *Value {
	for v != nil && (v.Kind == KindChoice || v.Kind == KindExplicit) {
		if len(v.Children) == 0 {
			return nil
		}
		v = v.Children[0]
	}
	return v
}

// Equal compares two trees, ignoring offsets and lengths.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Name != o.Name || v.Kind != o.Kind || v.Choice != o.Choice {
		return false
	}
	switch v.Kind {
	case KindBoolean:
		if v.Bool != o.Bool {
			return false
		}
	case KindInteger, KindEnumerated:
		if v.Int != o.Int {
			return false
		}
	case KindString, KindTime:
		if v.Str != o.Str {
			return false
		}
	case KindOID:
		if !v.OID.Equal(o.OID) {
			return false
		}
	case KindBitString:
		if v.Bits.BitLength != o.Bits.BitLength || v.Bits.String() != o.Bits.String() {
			return false
		}
	case KindOctetString, KindAny:
		if !bytes.Equal(v.Bytes, o.Bytes) {
			return false
		}
	}
	if len(v.Children) != len(o.Children) {
		return false
	}
	for i := range v.Children {
		if !v.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree, one node per line.
func (v *Value) String() string {
	var sb strings.Builder
	v.format(&sb, 0)
	return sb.String()
}

func (v *Value) format(sb *strings.Builder, indent int) {
	if v == nil {
		return
	}
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(v.Name)
	sb.WriteString(": ")
	switch v.Kind {
	case KindBoolean:
		fmt.Fprintf(sb, "%t", v.Bool)
	case KindInteger, KindEnumerated:
		fmt.Fprintf(sb, "%d", v.Int)
	case KindString, KindTime:
		fmt.Fprintf(sb, "%q", v.Str)
	case KindOID:
		sb.WriteString(v.OID.String())
	case KindBitString:
		sb.WriteString(v.Bits.String())
	case KindOctetString, KindAny:
		fmt.Fprintf(sb, "% x", v.Bytes)
	case KindNull:
		sb.WriteString("NULL")
	default:
		sb.WriteString(v.Kind.String())
	}
	sb.WriteByte('\n')
	for _, c := range v.Children {
		c.format(sb, indent+1)
	}
}
