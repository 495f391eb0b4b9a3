package c1222

import (
	"errors"
	"fmt"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/osi/acse"
)

var (
	// ErrNotC1222 is returned for an APDU that is not a C12.22 message.
	ErrNotC1222 = errors.New("c1222: not a C12.22 message")
	// ErrNoEPSEM is returned when user-information holds no octet-aligned EPSEM.
	ErrNoEPSEM = errors.New("c1222: no EPSEM in user-information")
)

// Tags inside the calling-authentication-value.
const (
	tagKeyID ber.Tag = 0x80
	tagIV    ber.Tag = 0x81
)

// maxAuthValueDepth bounds the walk into the calling-authentication-value.
const maxAuthValueDepth = 8

// Message is a decoded C12.22 message: the ACSE header elements and the
// EPSEM carried in user-information.
type Message struct {
	APDU *acse.APDU
	Raw  []byte

	// EPSEM is the octet-aligned user data, MAC included.
	EPSEM       []byte
	EPSEMOffset int

	// Security parameters from the calling-authentication-value.
	KeyID    uint8
	HasKeyID bool
	IV       []byte
	// KeyIDElement and IVElement are the complete key-id and IV elements.
	KeyIDElement []byte
	IVElement    []byte
}

// DecodeMessage decodes a C12.22 message (ACSE AARQ, tag 0x60). On error
// the partially decoded message is returned when there is one.
func DecodeMessage(data []byte) (*Message, error) {
	apdu, err := acse.ParseAPDU(data)
	if apdu == nil {
		return nil, fmt.Errorf("c1222: %w", err)
	}
	if apdu.Type != acse.AARQ {
		return nil, fmt.Errorf("%w: %s", ErrNotC1222, apdu.Type)
	}
	msg := &Message{APDU: apdu, Raw: data}
	if err != nil {
		return msg, fmt.Errorf("c1222: %w", err)
	}

	if e, ok := apdu.Element(acse.TagCallingAuthValue); ok {
		msg.findKeyMaterial(e.Content, 0)
	}

	ui, err := apdu.UserData()
	if err != nil {
		return msg, fmt.Errorf("%w: %w", ErrNoEPSEM, err)
	}
	if ui.Encoding != acse.EncodingOctetString {
		return msg, fmt.Errorf("%w: encoding %d", ErrNoEPSEM, ui.Encoding)
	}
	msg.EPSEM = ui.Data
	msg.EPSEMOffset = ui.DataOffset
	return msg, nil
}

// findKeyMaterial looks for the primitive key-id and IV elements at any
// depth of the calling-authentication-value.
func (m *Message) findKeyMaterial(content []byte, depth int) {
	if depth > maxAuthValueDepth {
		return
	}
	c := ber.NewCursor(content)
	pos := 0
	for pos < len(content) {
		h, l, start, err := ber.DecodeHeader(c.At(pos))
		if err != nil || !l.Definite() || start+int(l) > len(content) {
			return
		}
		end := start + int(l)
		value := content[start:end]
		switch t, _ := h.Short(); {
		case h.Constructed:
			m.findKeyMaterial(value, depth+1)
		case t == tagKeyID && m.KeyIDElement == nil:
			m.KeyIDElement = content[pos:end]
			if len(value) == 1 {
				m.KeyID = value[0]
				m.HasKeyID = true
			}
		case t == tagIV && m.IVElement == nil:
			m.IVElement = content[pos:end]
			m.IV = value
		}
		pos = end
	}
}

// CalledAPTitle returns the called AP title as captured.
func (m *Message) CalledAPTitle() ber.OID { return m.APDU.CalledAPTitle }

// CallingAPTitle returns the calling AP title as captured.
func (m *Message) CallingAPTitle() ber.OID { return m.APDU.CallingAPTitle }

// Framer finds C12.22 message boundaries in a TCP stream. A message is a
// single BER element.
type Framer struct{}

// Detect reports whether data starts like a C12.22 message.
func (Framer) Detect(data []byte) bool {
	return len(data) > 0 && acse.APDUType(data[0]) == acse.AARQ
}

// Extract returns the length of the first complete message in data, or 0
// when more bytes are needed.
func (f Framer) Extract(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if !f.Detect(data) {
		return 0, fmt.Errorf("%w: tag 0x%02x", ErrNotC1222, data[0])
	}
	c := ber.NewCursor(data)
	if !ber.IsLengthDecodable(c.At(1)) {
		if len(data) > 5 {
			return 0, fmt.Errorf("%w: undecodable length", ErrNotC1222)
		}
		return 0, nil
	}
	_, l, start, err := ber.DecodeHeader(c)
	if err != nil {
		return 0, fmt.Errorf("c1222: %w", err)
	}
	if !l.Definite() {
		return 0, fmt.Errorf("%w: indefinite length", ErrNotC1222)
	}
	total := start + int(l)
	if total > len(data) {
		return 0, nil
	}
	return total, nil
}
