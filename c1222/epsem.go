package c1222

import (
	"errors"
	"fmt"

	"github.com/slonegd/otdissect/ber"
)

// Flags is the EPSEM control octet.
type Flags uint8

const (
	flagReserved        Flags = 0x80
	flagRecovery        Flags = 0x40
	flagProxyService    Flags = 0x20
	flagEDClassIncluded Flags = 0x10
	flagSecurityMode    Flags = 0x0C
	flagResponseControl Flags = 0x03
)

// Reserved reports the reserved top bit. It is expected to be set.
func (f Flags) Reserved() bool { return f&flagReserved != 0 }

// Recovery reports a recovery session request.
func (f Flags) Recovery() bool { return f&flagRecovery != 0 }

// ProxyService reports a proxy service request.
func (f Flags) ProxyService() bool { return f&flagProxyService != 0 }

// EDClassIncluded reports whether the 4-octet device class follows the flags.
func (f Flags) EDClassIncluded() bool { return f&flagEDClassIncluded != 0 }

// SecurityMode returns the security mode field.
func (f Flags) SecurityMode() SecurityMode { return SecurityMode(f&flagSecurityMode) >> 2 }

// ResponseControl returns the response control field.
func (f Flags) ResponseControl() ResponseControl { return ResponseControl(f & flagResponseControl) }

// ResponseControl tells the target when to answer.
type ResponseControl uint8

const (
	AlwaysRespond      ResponseControl = 0
	RespondOnException ResponseControl = 1
	NeverRespond       ResponseControl = 2
)

func (r ResponseControl) String() string {
	switch r {
	case AlwaysRespond:
		return "always respond"
	case RespondOnException:
		return "respond on exception"
	case NeverRespond:
		return "never respond"
	}
	return "reserved"
}

const (
	edClassSize = 4
	macSize     = 4
)

// ErrShortEPSEM is returned when the EPSEM cannot hold its flags, device
// class and MAC.
var ErrShortEPSEM = errors.New("c1222: EPSEM too short")

// EPSEM is a framed EPSEM. Body holds the service elements, or the
// ciphertext while the EPSEM is still encrypted.
type EPSEM struct {
	Flags   Flags
	EDClass []byte
	Body    []byte
	// BodyOffset is the offset of Body relative to the EPSEM.
	BodyOffset int
	MAC        []byte

	Commands []Command
	Findings []Finding
	// Opaque is set when Body is ciphertext that was not decrypted.
	Opaque bool
}

// SplitEPSEM frames an EPSEM: flags, optional device class, body and, for
// the authenticated security modes, the trailing MAC. Commands are not parsed.
func SplitEPSEM(data []byte) (*EPSEM, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty", ErrShortEPSEM)
	}
	e := &EPSEM{Flags: Flags(data[0])}
	pos := 1
	if e.Flags.EDClassIncluded() {
		if len(data) < pos+edClassSize {
			return nil, fmt.Errorf("%w: %d bytes, device class needs %d", ErrShortEPSEM, len(data), pos+edClassSize)
		}
		e.EDClass = data[pos : pos+edClassSize]
		pos += edClassSize
	}
	end := len(data)
	if m := e.Flags.SecurityMode(); m == CleartextAuthenticated || m == CiphertextAuthenticated {
		if end-pos < macSize {
			return nil, fmt.Errorf("%w: %d bytes, MAC needs %d", ErrShortEPSEM, len(data), pos+macSize)
		}
		end -= macSize
		e.MAC = data[end:]
	}
	e.Body = data[pos:end]
	e.BodyOffset = pos
	return e, nil
}

// ParseEPSEM frames an EPSEM and parses its commands. A ciphertext body is
// left opaque; use Envelope to authenticate and decrypt it first.
func ParseEPSEM(data []byte) (*EPSEM, error) {
	e, err := SplitEPSEM(data)
	if err != nil {
		return nil, err
	}
	if e.Flags.SecurityMode() == CiphertextAuthenticated {
		e.Opaque = true
		return e, nil
	}
	e.ParseCommands()
	return e, nil
}

// ParseCommands walks the service elements of Body. Each element is a BER
// length followed by that many octets. A zero length or the end of the body
// terminates the walk.
func (e *EPSEM) ParseCommands() {
	e.Commands, e.Findings = parseCommands(e.Body, e.BodyOffset)
	e.Opaque = false
}

func parseCommands(body []byte, base int) ([]Command, []Finding) {
	var (
		cmds     []Command
		findings []Finding
	)
	c := ber.NewCursor(body)
	pos := 0
	for pos < len(body) {
		at := c.At(pos)
		if !ber.IsLengthDecodable(at) {
			findings = append(findings, Finding{Kind: InvalidLength, Offset: base + pos, Detail: "undecodable element length"})
			break
		}
		l, next, err := ber.DecodeLength(at)
		if err != nil || !l.Definite() {
			findings = append(findings, Finding{Kind: InvalidLength, Offset: base + pos, Detail: "malformed element length"})
			break
		}
		if l == 0 {
			break
		}
		if next+int(l) > len(body) {
			findings = append(findings, Finding{
				Kind:   InvalidLength,
				Offset: base + pos,
				Detail: fmt.Sprintf("element length %d exceeds %d remaining bytes", l, len(body)-next),
			})
			break
		}
		cmd, f := parseCommand(body[next:next+int(l)], base+next)
		cmds = append(cmds, cmd)
		findings = append(findings, f...)
		pos = next + int(l)
	}
	return cmds, findings
}
