package acse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slonegd/otdissect/ber"
)

// APDUType represents the type of ACSE PDU
type APDUType uint8

const (
	AARQ APDUType = 0x60 // AARQ (Association Request), also the C12.22 message
	AARE APDUType = 0x61 // AARE (Association Response)
	RLRQ APDUType = 0x62 // RLRQ (Release Request)
	RLRE APDUType = 0x63 // RLRE (Release Response)
	ABRT APDUType = 0x64 // ABRT (Abort)
)

func (t APDUType) String() string {
	switch t {
	case AARQ:
		return "AARQ"
	case AARE:
		return "AARE"
	case RLRQ:
		return "RLRQ"
	case RLRE:
		return "RLRE"
	case ABRT:
		return "ABRT"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
	}
}

// Result represents ACSE result codes
const (
	ResultAccept          = 0
	ResultRejectPermanent = 1
	ResultRejectTransient = 2
)

// Element tags of AARQ and AARE
const (
	TagApplicationContextName ber.Tag = 0xa1
	TagCalledAPTitle          ber.Tag = 0xa2 // AARE: result
	TagCalledAEQualifier      ber.Tag = 0xa3 // AARE: result source diagnostic
	TagCalledAPInvocationID   ber.Tag = 0xa4 // AARE: responding AP title
	TagCalledAEInvocationID   ber.Tag = 0xa5
	TagCallingAPTitle         ber.Tag = 0xa6
	TagCallingAEQualifier     ber.Tag = 0xa7
	TagCallingAPInvocationID  ber.Tag = 0xa8
	TagCallingAEInvocationID  ber.Tag = 0xa9
	TagSenderRequirements     ber.Tag = 0x8a
	TagMechanismName          ber.Tag = 0x8b
	TagCallingAuthValue       ber.Tag = 0xac
	TagUserInformation        ber.Tag = 0xbe

	TagResult                 = TagCalledAPTitle
	TagResultSourceDiagnostic = TagCalledAEQualifier
)

// Errors
var (
	ErrEmpty           = errors.New("ACSE PDU too short: need at least 1 byte")
	ErrUnknownType     = errors.New("unknown ACSE message type")
	ErrNoUserInfo      = errors.New("user information not present")
	ErrUserInfoInvalid = errors.New("user info invalid")
)

// Well known object identifiers
var (
	OIDMMS          = ber.OID{1, 0, 9506, 2, 3} // mms-abstract-syntax-version1(3)
	OIDMMSAbstract  = ber.OID{1, 0, 9506, 2, 1}
	OIDACSE         = ber.OID{2, 2, 1, 0, 1} // id-as-acse
	OIDPasswordAuth = ber.OID{2, 2, 3, 1}    // id-password
)

// Element is one top-level element of an APDU, kept as captured.
type Element struct {
	Header ber.TagHeader
	// Offset of the identifier octet relative to the start of the APDU.
	Offset int
	// HeaderLen is the size of the identifier and length octets.
	HeaderLen int
	// Raw is the complete element, Content its value octets.
	Raw     []byte
	Content []byte
}

// Tag returns the single-octet identifier of the element.
func (e Element) Tag() ber.Tag {
	t, _ := e.Header.Short()
	return t
}

// APDU represents an ACSE Protocol Data Unit
type APDU struct {
	Type     APDUType
	Elements []Element

	ApplicationContextName ber.OID
	// AP titles are reported in their captured form: an OBJECT IDENTIFIER
	// or a RELATIVE-OID (C12.22 relative AP titles).
	CalledAPTitle  ber.OID
	CallingAPTitle ber.OID
	AEQualifier    int64
	Result         int64 // for AARE: 0=accepted, 1=reject-permanent, 2=reject-transient
	// ResultSourceDiagnostic for AARE: 1=service-user, 2=service-provider
	ResultSourceDiagnostic int
	// Reason of RLRQ/RLRE
	Reason int64
	// AbortSource of ABRT: 0=acse-service-user, 1=acse-service-provider
	AbortSource int64

	raw []byte
}

// ParseAPDU parses an ACSE PDU and captures its top-level elements.
//
// Unknown elements are kept. A malformed element stops the walk; the
// elements captured so far are returned along with the error.
func ParseAPDU(data []byte) (*APDU, error) {
	if len(data) < 1 {
		return nil, ErrEmpty
	}

	c := ber.NewCursor(data)
	h, l, pos, err := ber.DecodeHeader(c)
	if err != nil {
		return nil, fmt.Errorf("invalid ACSE message: %w", err)
	}
	t, _ := h.Short()
	pdu := &APDU{Type: APDUType(t), raw: data, Result: -1}
	switch pdu.Type {
	case AARQ, AARE, RLRQ, RLRE, ABRT:
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, data[0])
	}
	if !l.Definite() {
		return pdu, fmt.Errorf("invalid ACSE message: indefinite length")
	}
	end := pos + int(l)
	if end > len(data) {
		return pdu, fmt.Errorf("invalid ACSE message: %w", ber.ErrTruncated)
	}

	for pos < end {
		eh, el, contentPos, err := ber.DecodeHeader(c.At(pos).Limit(end - pos))
		if err != nil {
			return pdu, fmt.Errorf("invalid PDU: %w", err)
		}
		if !el.Definite() || contentPos+int(el) > end {
			return pdu, fmt.Errorf("invalid PDU: element at %d overruns the message", pos)
		}
		next := contentPos + int(el)
		e := Element{
			Header:    eh,
			Offset:    pos,
			HeaderLen: contentPos - pos,
			Raw:       data[pos:next],
			Content:   data[contentPos:next],
		}
		pdu.Elements = append(pdu.Elements, e)
		pdu.interpret(e)
		pos = next
	}

	return pdu, nil
}

// interpret fills the convenience fields. Values that do not decode are left unset.
func (p *APDU) interpret(e Element) {
	switch p.Type {
	case RLRQ, RLRE:
		if e.Tag() == ber.ContextSpecific0Primitive {
			p.Reason, _ = ber.DecodeSigned[int64](e.Content)
		}
		return
	case ABRT:
		if e.Tag() == ber.ContextSpecific0Primitive {
			p.AbortSource, _ = ber.DecodeSigned[int64](e.Content)
		}
		return
	}

	switch e.Tag() {
	case TagApplicationContextName:
		p.ApplicationContextName = innerOID(e.Content)
	case TagCallingAPTitle:
		p.CallingAPTitle = innerOID(e.Content)
	case TagCallingAEQualifier:
		p.AEQualifier = innerInteger(e.Content)
	case TagCalledAPTitle:
		if p.Type == AARE {
			p.Result = innerInteger(e.Content)
		} else {
			p.CalledAPTitle = innerOID(e.Content)
		}
	case TagCalledAEQualifier:
		if p.Type == AARE {
			// service-user [1] or service-provider [2]
			if len(e.Content) > 0 {
				p.ResultSourceDiagnostic = int(e.Content[0] & 0x1f)
			}
		}
	}
}

// Element returns the first top-level element with the given tag.
func (p *APDU) Element(tag ber.Tag) (Element, bool) {
	for _, e := range p.Elements {
		if e.Tag() == tag {
			return e, true
		}
	}
	return Element{}, false
}

// Encoding of the user data inside the EXTERNAL
type Encoding uint8

const (
	EncodingSingleASN1  Encoding = 0 // [0] single-ASN1-type
	EncodingOctetString Encoding = 1 // [1] octet-aligned
	EncodingArbitrary   Encoding = 2 // [2] arbitrary
)

// UserInformation is the content of the user-information EXTERNAL.
type UserInformation struct {
	IndirectReference    int64
	HasIndirectReference bool
	Encoding             Encoding
	Data                 []byte
	// DataOffset is the offset of Data relative to the start of the APDU.
	DataOffset int
	// ExternalOffset is the offset of the EXTERNAL identifier.
	ExternalOffset int
}

// UserData locates the user data in user-information: BE -> 28 -> [02] -> A0|81|82.
func (p *APDU) UserData() (*UserInformation, error) {
	ui, ok := p.Element(TagUserInformation)
	if !ok {
		return nil, ErrNoUserInfo
	}

	c := ber.NewCursor(p.raw)
	pos := ui.Offset + ui.HeaderLen
	end := ui.Offset + len(ui.Raw)

	h, l, contentPos, err := ber.DecodeHeader(c.At(pos).Limit(end - pos))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfoInvalid, err)
	}
	if t, _ := h.Short(); t != ber.ExternalConstructed || !l.Definite() || contentPos+int(l) > end {
		return nil, fmt.Errorf("%w: no EXTERNAL", ErrUserInfoInvalid)
	}
	info := &UserInformation{ExternalOffset: pos}
	pos, end = contentPos, contentPos+int(l)

	for pos < end {
		h, l, contentPos, err := ber.DecodeHeader(c.At(pos).Limit(end - pos))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUserInfoInvalid, err)
		}
		if !l.Definite() || contentPos+int(l) > end {
			return nil, fmt.Errorf("%w: element overruns EXTERNAL", ErrUserInfoInvalid)
		}
		next := contentPos + int(l)
		content := p.raw[contentPos:next]

		switch t, _ := h.Short(); t {
		case ber.Integer: // indirect-reference
			info.IndirectReference, _ = ber.DecodeSigned[int64](content)
			info.HasIndirectReference = true
		case ber.ContextSpecific0Constructed: // single-ASN1-type
			info.Encoding = EncodingSingleASN1
			info.Data = content
			info.DataOffset = contentPos
			return info, nil
		case ber.ContextSpecific1Primitive, ber.ContextSpecific1Constructed: // octet-aligned
			info.Encoding = EncodingOctetString
			info.Data = content
			info.DataOffset = contentPos
			return info, nil
		case ber.ContextSpecific2Primitive: // arbitrary
			info.Encoding = EncodingArbitrary
			info.Data = content
			info.DataOffset = contentPos
			return info, nil
		}
		pos = next
	}
	return nil, fmt.Errorf("%w: no encoding", ErrUserInfoInvalid)
}

// innerOID decodes an AP title or context name: a single OID or RELATIVE-OID element.
func innerOID(content []byte) ber.OID {
	h, l, pos, err := ber.DecodeHeader(ber.NewCursor(content))
	if err != nil || !l.Definite() || pos+int(l) > len(content) {
		return nil
	}
	value := content[pos : pos+int(l)]
	switch t, _ := h.Short(); t {
	case ber.ObjectIdentifier:
		oid, _ := ber.DecodeOID(value)
		return oid
	case ber.RelativeOID:
		return decodeRelativeOID(value)
	}
	return nil
}

func innerInteger(content []byte) int64 {
	h, l, pos, err := ber.DecodeHeader(ber.NewCursor(content))
	if err != nil || !l.Definite() || pos+int(l) > len(content) {
		return -1
	}
	if t, _ := h.Short(); t != ber.Integer {
		return -1
	}
	v, err := ber.DecodeSigned[int64](content[pos : pos+int(l)])
	if err != nil {
		return -1
	}
	return v
}

// decodeRelativeOID decodes RELATIVE-OID content: every subidentifier is one arc.
func decodeRelativeOID(content []byte) ber.OID {
	var oid ber.OID
	var arc uint32
	for _, b := range content {
		arc = arc<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			oid = append(oid, arc)
			arc = 0
		}
	}
	return oid
}

// String implements fmt.Stringer for APDU
func (p *APDU) String() string {
	var builder strings.Builder

	builder.WriteString("APDU{Type: ")
	builder.WriteString(p.Type.String())
	fmt.Fprintf(&builder, " (0x%02x)", uint8(p.Type))

	if len(p.ApplicationContextName) > 0 {
		builder.WriteString(", ApplicationContextName: ")
		builder.WriteString(formatOID(p.ApplicationContextName))
	}

	if p.Type == AARE {
		resultStr := ""
		switch p.Result {
		case ResultAccept:
			resultStr = "accepted"
		case ResultRejectPermanent:
			resultStr = "reject-permanent"
		case ResultRejectTransient:
			resultStr = "reject-transient"
		default:
			resultStr = fmt.Sprintf("unknown(%d)", p.Result)
		}
		fmt.Fprintf(&builder, ", Result: %d (%s)", p.Result, resultStr)

		switch p.ResultSourceDiagnostic {
		case 0:
		case 1:
			builder.WriteString(", ResultSourceDiagnostic: service-user (1)")
		case 2:
			builder.WriteString(", ResultSourceDiagnostic: service-provider (2)")
		default:
			fmt.Fprintf(&builder, ", ResultSourceDiagnostic: %d", p.ResultSourceDiagnostic)
		}
	}

	if len(p.CallingAPTitle) > 0 {
		fmt.Fprintf(&builder, ", CallingAPTitle: %s", p.CallingAPTitle)
	}
	if len(p.CalledAPTitle) > 0 {
		fmt.Fprintf(&builder, ", CalledAPTitle: %s", p.CalledAPTitle)
	}

	if ui, err := p.UserData(); err == nil {
		if ui.HasIndirectReference {
			fmt.Fprintf(&builder, ", IndirectReference: %d", ui.IndirectReference)
		}
		switch ui.Encoding {
		case EncodingSingleASN1:
			fmt.Fprintf(&builder, ", Encoding: %d (single-ASN1-type)", ui.Encoding)
		case EncodingOctetString:
			fmt.Fprintf(&builder, ", Encoding: %d (octet-aligned)", ui.Encoding)
		default:
			fmt.Fprintf(&builder, ", Encoding: %d", ui.Encoding)
		}
		fmt.Fprintf(&builder, ", DataLength: %d", len(ui.Data))
	}
	builder.WriteString("}")

	return builder.String()
}

// formatOID formats an OID with a name for the well known ones
func formatOID(oid ber.OID) string {
	switch {
	case oid.Equal(OIDMMS):
		return oid.String() + " (MMS)"
	case oid.Equal(OIDACSE):
		return oid.String() + " (id-as-acse)"
	}
	return oid.String()
}
