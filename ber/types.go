package ber

import "fmt"

// Kind selects how a descriptor decodes its content.
type Kind int

const (
	KindBoolean Kind = iota
	KindInteger
	KindEnumerated
	KindBitString
	KindOctetString
	KindNull
	KindOID
	KindString
	KindTime
	KindSequence
	KindSet
	KindSequenceOf
	KindChoice
	KindExplicit
	KindAny
)

var kindNames = [...]string{
	KindBoolean:     "BOOLEAN",
	KindInteger:     "INTEGER",
	KindEnumerated:  "ENUMERATED",
	KindBitString:   "BIT STRING",
	KindOctetString: "OCTET STRING",
	KindNull:        "NULL",
	KindOID:         "OBJECT IDENTIFIER",
	KindString:      "STRING",
	KindTime:        "TIME",
	KindSequence:    "SEQUENCE",
	KindSet:         "SET",
	KindSequenceOf:  "SEQUENCE OF",
	KindChoice:      "CHOICE",
	KindExplicit:    "EXPLICIT",
	KindAny:         "ANY",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Primitive reports whether values of this kind are encoded in primitive form.
func (k Kind) Primitive() bool {
	return k <= KindTime
}

// Type is a decoding descriptor for one ASN.1 production.
//
// Descriptors are built once and never mutated during decoding. Recursive
// productions are expressed by allocating the *Type first and filling its
// Fields, Alternatives or Elem afterwards.
type Type struct {
	Name string
	Kind Kind
	// Tag is nil for an untagged CHOICE or ANY, which match by content.
	Tag *TagHeader
	// Fields of a SEQUENCE or SET, in encoding order.
	Fields []Field
	// Alternatives of a CHOICE. The ordinal of the chosen one is recorded in the value.
	Alternatives []Field
	// Elem is the element of a SEQUENCE OF and the inner type of an explicit tag.
	Elem *Type
	// Bits names the bits of a BIT STRING. Display only.
	Bits []string
	// Hook is called after a value of this type is successfully decoded.
	Hook func(ctx *Context, v *Value)
}

// Field is a member of a SEQUENCE, SET or CHOICE.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
}

// Required returns a mandatory field.
func Required(name string, t *Type) Field {
	return Field{Name: name, Type: t}
}

// Optional returns an OPTIONAL field.
func Optional(name string, t *Type) Field {
	return Field{Name: name, Type: t, Optional: true}
}

var universalTags = map[Kind]Tag{
	KindBoolean:     Boolean,
	KindInteger:     Integer,
	KindEnumerated:  Enumerated,
	KindBitString:   BitString,
	KindOctetString: OctetString,
	KindNull:        Null,
	KindOID:         ObjectIdentifier,
	KindString:      VisibleString,
	KindTime:        GeneralizedTime,
}

// NewPrimitive returns a descriptor for a primitive kind with its universal tag.
// Strings default to VisibleString and times to GeneralizedTime, see NewString.
func NewPrimitive(k Kind) *Type {
	t, ok := universalTags[k]
	if !ok {
		panic(fmt.Sprintf("ber: %s is not a primitive kind", k))
	}
	h := UniversalTag(t, false)
	return &Type{Name: k.String(), Kind: k, Tag: &h}
}

// NewString returns a string descriptor with the given universal tag.
// UTCTime and GeneralizedTime produce KindTime, kept as text.
func NewString(t Tag) *Type {
	k := KindString
	if t == UTCTime || t == GeneralizedTime {
		k = KindTime
	}
	h := UniversalTag(t, false)
	return &Type{Name: k.String(), Kind: k, Tag: &h}
}

// NewBitString returns a BIT STRING descriptor with named bits.
func NewBitString(name string, bits ...string) *Type {
	t := NewPrimitive(KindBitString)
	t.Name = name
	t.Bits = bits
	return t
}

// NewSequence returns a SEQUENCE descriptor.
func NewSequence(name string, fields ...Field) *Type {
	h := UniversalTag(Sequence, true)
	return &Type{Name: name, Kind: KindSequence, Tag: &h, Fields: fields}
}

// NewSet returns a SET descriptor. Fields may appear in any order.
func NewSet(name string, fields ...Field) *Type {
	h := UniversalTag(Set, true)
	return &Type{Name: name, Kind: KindSet, Tag: &h, Fields: fields}
}

// NewSequenceOf returns a SEQUENCE OF descriptor.
func NewSequenceOf(name string, elem *Type) *Type {
	h := UniversalTag(Sequence, true)
	return &Type{Name: name, Kind: KindSequenceOf, Tag: &h, Elem: elem}
}

// NewChoice returns an untagged CHOICE descriptor.
func NewChoice(name string, alternatives ...Field) *Type {
	return &Type{Name: name, Kind: KindChoice, Alternatives: alternatives}
}

// NewAny returns a descriptor that captures any single element as opaque bytes.
func NewAny(name string) *Type {
	return &Type{Name: name, Kind: KindAny}
}

// Implicit replaces the tag of t with context-specific [number].
// A CHOICE or ANY cannot be implicitly tagged, they get an explicit tag instead.
func Implicit(number uint32, t *Type) *Type {
	return Tagged(ContextTag(number, false), t)
}

// Tagged is Implicit for an arbitrary class.
func Tagged(h TagHeader, t *Type) *Type {
	if t.Kind == KindChoice || t.Kind == KindAny {
		return explicit(h, t)
	}
	cp := *t
	h.Constructed = !t.Kind.Primitive()
	cp.Tag = &h
	return &cp
}

// Explicit wraps t into a constructed context-specific [number].
func Explicit(number uint32, t *Type) *Type {
	return explicit(ContextTag(number, true), t)
}

func explicit(h TagHeader, t *Type) *Type {
	h.Constructed = true
	return &Type{Name: t.Name, Kind: KindExplicit, Tag: &h, Elem: t}
}

// WithHook returns a copy of t that calls hook after each successful decode.
func WithHook(t *Type, hook func(ctx *Context, v *Value)) *Type {
	cp := *t
	cp.Hook = hook
	return &cp
}

// Named returns a copy of t with another name.
func Named(name string, t *Type) *Type {
	cp := *t
	cp.Name = name
	return &cp
}

// Matches reports whether an element with header h can start a value of t.
func (t *Type) Matches(h TagHeader) bool {
	return t.matches(h, 0)
}

// maxChoiceNesting bounds the lookup through untagged CHOICEs nested in CHOICEs.
const maxChoiceNesting = 16

func (t *Type) matches(h TagHeader, nesting int) bool {
	if t.Tag != nil {
		return h.Is(*t.Tag)
	}
	switch t.Kind {
	case KindAny:
		return true
	case KindChoice:
		return t.alternative(h, nesting) >= 0
	}
	return false
}

func (t *Type) alternative(h TagHeader, nesting int) int {
	if nesting > maxChoiceNesting {
		return -1
	}
	for i, alt := range t.Alternatives {
		if alt.Type.matches(h, nesting+1) {
			return i
		}
	}
	return -1
}
