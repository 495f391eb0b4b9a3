package ber

import "fmt"

// TagClass represents the class of a BER tag
// The two high-order bits of the identifier octets are used to encode the class.
type TagClass byte

// Tag classes as defined in X.690
const (
	ClassUniversal       TagClass = 0x00 // 0b00000000 - Universal class (ASN.1 built-in types)
	ClassApplication     TagClass = 0x40 // 0b01000000 - Application class (defined by the application)
	ClassContextSpecific TagClass = 0x80 // 0b10000000 - Context-specific class
	ClassPrivate         TagClass = 0xC0 // 0b11000000 - Private class (defined in private specifications)
)

func (c TagClass) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassApplication:
		return "APPLICATION"
	case ClassContextSpecific:
		return "CONTEXT"
	case ClassPrivate:
		return "PRIVATE"
	default:
		return fmt.Sprintf("TagClass(0x%02x)", byte(c))
	}
}

// TagForm represents the form of a BER tag
// The next bit (bit 5) indicates if the type is primitive or constructed.
type TagForm byte

// Tag forms as defined in X.690
const (
	FormPrimitive   TagForm = 0x00 // 0b00000000 - Primitive encoding
	FormConstructed TagForm = 0x20 // 0b00100000 - Constructed encoding (contains other types)
)

// highTagNumber is the low-bits marker of the high-tag-number form.
const highTagNumber = 0x1F

// Tag represents a single-octet BER identifier.
// Layer parsers that only deal with low tag numbers compare against these directly.
type Tag byte

// Universal tags as defined in X.690
const (
	Boolean          Tag = 0x01 // BOOLEAN
	Integer          Tag = 0x02 // INTEGER
	BitString        Tag = 0x03 // BIT STRING
	OctetString      Tag = 0x04 // OCTET STRING
	Null             Tag = 0x05 // NULL
	ObjectIdentifier Tag = 0x06 // OBJECT IDENTIFIER
	ObjectDescriptor Tag = 0x07 // ObjectDescriptor
	External         Tag = 0x08 // EXTERNAL
	Real             Tag = 0x09 // REAL
	Enumerated       Tag = 0x0A // ENUMERATED
	EmbeddedPDV      Tag = 0x0B // EMBEDDED PDV
	UTF8String       Tag = 0x0C // UTF8String
	RelativeOID      Tag = 0x0D // RELATIVE-OID
	// 0x0E-0x0F are reserved for future use
	Sequence        Tag = 0x10 // SEQUENCE, SEQUENCE OF
	Set             Tag = 0x11 // SET, SET OF
	NumericString   Tag = 0x12 // NumericString
	PrintableString Tag = 0x13 // PrintableString
	T61String       Tag = 0x14 // T61String (TeletexString)
	VideotexString  Tag = 0x15 // VideotexString
	IA5String       Tag = 0x16 // IA5String
	UTCTime         Tag = 0x17 // UTCTime
	GeneralizedTime Tag = 0x18 // GeneralizedTime
	GraphicString   Tag = 0x19 // GraphicString
	VisibleString   Tag = 0x1A // VisibleString (ISO646String)
	GeneralString   Tag = 0x1B // GeneralString
	UniversalString Tag = 0x1C // UniversalString
	CharacterString Tag = 0x1D // CHARACTER STRING
	BMPString       Tag = 0x1E // BMPString
)

// Frequently used constructed universal tags
const (
	SequenceConstructed Tag = Sequence | Tag(FormConstructed) // 0x30
	SetConstructed      Tag = Set | Tag(FormConstructed)      // 0x31
	ExternalConstructed Tag = External | Tag(FormConstructed) // 0x28
)

// Common BER tags used by the OSI layers
const (
	Application0Constructed Tag = 0x60 // AARQ / C12.22 message
	Application1Constructed Tag = 0x61 // AARE / presentation user-data

	ContextSpecific0Constructed  Tag = 0xA0
	ContextSpecific1Constructed  Tag = 0xA1
	ContextSpecific2Constructed  Tag = 0xA2
	ContextSpecific3Constructed  Tag = 0xA3
	ContextSpecific4Constructed  Tag = 0xA4
	ContextSpecific5Constructed  Tag = 0xA5
	ContextSpecific6Constructed  Tag = 0xA6
	ContextSpecific7Constructed  Tag = 0xA7
	ContextSpecific8Constructed  Tag = 0xA8
	ContextSpecific12Constructed Tag = 0xAC
	ContextSpecific30Constructed Tag = 0xBE

	ContextSpecific0Primitive  Tag = 0x80
	ContextSpecific1Primitive  Tag = 0x81
	ContextSpecific2Primitive  Tag = 0x82
	ContextSpecific3Primitive  Tag = 0x83
	ContextSpecific10Primitive Tag = 0x8A
	ContextSpecific11Primitive Tag = 0x8B
)

// TagHeader is a decoded identifier: class, form and tag number.
// High tag numbers (>= 31) are folded into Number.
type TagHeader struct {
	Class       TagClass
	Constructed bool
	Number      uint32
}

// UniversalTag returns the universal-class header for t.
func UniversalTag(t Tag, constructed bool) TagHeader {
	return TagHeader{Class: ClassUniversal, Constructed: constructed, Number: uint32(t)}
}

// ContextTag returns a context-specific header.
func ContextTag(number uint32, constructed bool) TagHeader {
	return TagHeader{Class: ClassContextSpecific, Constructed: constructed, Number: number}
}

// ApplicationTag returns an application-class header.
func ApplicationTag(number uint32, constructed bool) TagHeader {
	return TagHeader{Class: ClassApplication, Constructed: constructed, Number: number}
}

// HeaderOf splits a single-octet identifier into a TagHeader.
func HeaderOf(t Tag) TagHeader {
	return TagHeader{
		Class:       TagClass(t & 0xC0),
		Constructed: t&Tag(FormConstructed) != 0,
		Number:      uint32(t & highTagNumber),
	}
}

// Short returns the single-octet identifier of h and false if h needs the
// high-tag-number form.
func (h TagHeader) Short() (Tag, bool) {
	if h.Number >= highTagNumber {
		return 0, false
	}
	b := byte(h.Class) | byte(h.Number)
	if h.Constructed {
		b |= byte(FormConstructed)
	}
	return Tag(b), true
}

// Is reports whether h has the same class and number as other, ignoring the form.
func (h TagHeader) Is(other TagHeader) bool {
	return h.Class == other.Class && h.Number == other.Number
}

func (h TagHeader) String() string {
	form := "p"
	if h.Constructed {
		form = "c"
	}
	if h.Class == ClassUniversal {
		return fmt.Sprintf("UNIVERSAL %d/%s", h.Number, form)
	}
	return fmt.Sprintf("[%s %d]/%s", h.Class, h.Number, form)
}
