package c1222

import (
	"fmt"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/osi/acse"
)

// SecurityMode is the EPSEM security mode.
type SecurityMode uint8

const (
	Cleartext               SecurityMode = 0
	CleartextAuthenticated  SecurityMode = 1
	CiphertextAuthenticated SecurityMode = 2
	SecurityModeReserved    SecurityMode = 3
)

func (m SecurityMode) String() string {
	switch m {
	case Cleartext:
		return "cleartext"
	case CleartextAuthenticated:
		return "cleartext with authentication"
	case CiphertextAuthenticated:
		return "ciphertext with authentication"
	}
	return "reserved"
}

// CryptoStatus is the outcome of the envelope check.
type CryptoStatus uint8

const (
	NotChecked CryptoStatus = iota
	Good
	Bad
)

func (s CryptoStatus) String() string {
	switch s {
	case Good:
		return "good"
	case Bad:
		return "bad"
	}
	return "not checked"
}

// Authenticator verifies the MAC of an EPSEM and, for the ciphertext mode,
// decrypts data in place. header is the canonical header followed by the
// authenticated EPSEM octets. An error means authentication failed.
type Authenticator interface {
	AuthenticateAndDecrypt(header []byte, key [KeySize]byte, data []byte, mac [macSize]byte, mode SecurityMode) error
}

// Config controls the envelope.
type Config struct {
	DecryptEnabled bool
	// BaseOID turns relative AP titles into absolute ones in the canonical header.
	BaseOID       ber.OID
	Keys          KeyTable
	Authenticator Authenticator
}

// Envelope opens the security envelope of C12.22 messages.
type Envelope struct {
	cfg Config
}

// NewEnvelope returns an envelope using cfg.
func NewEnvelope(cfg Config) *Envelope {
	return &Envelope{cfg: cfg}
}

// Result is the outcome of Open.
type Result struct {
	Status CryptoStatus
	// EPSEM is nil when the EPSEM could not be framed.
	EPSEM *EPSEM
	// Findings of the envelope followed by those of the command walk.
	Findings []Finding
	// Canonical is the canonical header, when one was built.
	Canonical []byte
}

// Open checks and, when needed, decrypts the EPSEM of msg, then parses its
// commands. An EPSEM that stays encrypted is marked opaque and not parsed.
// Problems are reported as findings and never stop the decode.
func (e *Envelope) Open(msg *Message) Result {
	res := Result{Status: NotChecked}
	ep, err := SplitEPSEM(msg.EPSEM)
	if err != nil {
		res.Findings = append(res.Findings, Finding{Kind: InvalidLength, Detail: err.Error()})
		return res
	}
	res.EPSEM = ep

	mode := ep.Flags.SecurityMode()
	if mode == Cleartext || mode == SecurityModeReserved {
		res.finish(true)
		return res
	}
	plaintext := mode == CleartextAuthenticated

	if !e.cfg.DecryptEnabled || e.cfg.Authenticator == nil {
		res.finish(plaintext)
		return res
	}

	canonical, err := e.Canonicalize(msg)
	if err != nil {
		res.Findings = append(res.Findings, Finding{Kind: HeaderElementMissing, Detail: err.Error()})
		res.finish(plaintext)
		return res
	}
	res.Canonical = canonical

	var key [KeySize]byte
	found := false
	if e.cfg.Keys != nil {
		key, found = e.cfg.Keys.Key(msg.KeyID)
	}
	if !found {
		res.Status = Bad
		res.Findings = append(res.Findings, Finding{Kind: KeyLookupFailed, Detail: fmt.Sprintf("key id %d", msg.KeyID)})
		res.finish(plaintext)
		return res
	}

	var mac [macSize]byte
	copy(mac[:], ep.MAC)

	header := make([]byte, 0, len(canonical)+len(msg.EPSEM))
	header = append(header, canonical...)
	var data []byte
	if plaintext {
		header = append(header, msg.EPSEM[:len(msg.EPSEM)-macSize]...)
	} else {
		header = append(header, msg.EPSEM[:ep.BodyOffset]...)
		data = append([]byte(nil), ep.Body...)
	}

	if err := e.cfg.Authenticator.AuthenticateAndDecrypt(header, key, data, mac, mode); err != nil {
		res.Status = Bad
		res.Findings = append(res.Findings, Finding{Kind: AuthenticationFailed, Detail: err.Error()})
		res.finish(plaintext)
		return res
	}

	res.Status = Good
	if !plaintext {
		ep.Body = data
	}
	res.finish(true)
	return res
}

func (r *Result) finish(parse bool) {
	if !parse {
		r.EPSEM.Opaque = true
		return
	}
	r.EPSEM.ParseCommands()
	r.Findings = append(r.Findings, r.EPSEM.Findings...)
}

// canonicalElement is one row of the canonical header table.
type canonicalElement struct {
	tag      ber.Tag
	required bool
	// truncate keeps the tag, the full length and the content up to the EPSEM.
	truncate bool
	// addTag re-encodes tag and length in front of the content. Elements
	// without it are taken verbatim.
	addTag bool
}

// The order is fixed by C12.22 and differs from the encoding order.
var canonicalTable = []canonicalElement{
	{tag: acse.TagApplicationContextName, addTag: true},
	{tag: acse.TagCalledAPTitle, required: true, addTag: true},
	{tag: acse.TagCalledAPInvocationID, addTag: true},
	{tag: acse.TagCallingAEQualifier, addTag: true},
	{tag: acse.TagCallingAPInvocationID, required: true, addTag: true},
	{tag: acse.TagMechanismName, addTag: true},
	{tag: acse.TagCallingAuthValue, addTag: true},
	{tag: acse.TagUserInformation, required: true, truncate: true, addTag: true},
	{tag: acse.TagCallingAPTitle, required: true, addTag: true},
	{tag: tagKeyID},
	{tag: tagIV},
}

// Canonicalize builds the canonical header of msg. It fails when a
// required element is missing.
func (e *Envelope) Canonicalize(msg *Message) ([]byte, error) {
	var out []byte
	for _, row := range canonicalTable {
		switch row.tag {
		case tagKeyID:
			out = append(out, msg.KeyIDElement...)
			continue
		case tagIV:
			out = append(out, msg.IVElement...)
			continue
		}

		el, ok := msg.APDU.Element(row.tag)
		if !ok {
			if row.required {
				return nil, fmt.Errorf("required element 0x%02x missing", byte(row.tag))
			}
			continue
		}

		content := el.Content
		if row.tag == acse.TagCalledAPTitle || row.tag == acse.TagCallingAPTitle {
			content = e.absoluteAPTitle(content)
		}
		if row.truncate {
			// content up to the first octet of the EPSEM
			cut := msg.EPSEMOffset - (el.Offset + el.HeaderLen)
			if cut < 0 || cut > len(content) {
				return nil, fmt.Errorf("user-information does not hold the EPSEM")
			}
			out = ber.AppendTL(out, el.Header, len(content))
			out = append(out, content[:cut]...)
			continue
		}
		out = ber.AppendTLV(out, el.Header, content)
	}
	return out, nil
}

// absoluteAPTitle rewrites a RELATIVE-OID AP title under BaseOID. Other
// titles are returned unchanged.
func (e *Envelope) absoluteAPTitle(content []byte) []byte {
	if len(e.cfg.BaseOID) == 0 {
		return content
	}
	h, l, start, err := ber.DecodeHeader(ber.NewCursor(content))
	if err != nil || !l.Definite() || start+int(l) > len(content) {
		return content
	}
	if t, _ := h.Short(); t != ber.RelativeOID {
		return content
	}
	abs, err := ber.AppendOID(nil, e.cfg.BaseOID)
	if err != nil {
		return content
	}
	abs = append(abs, content[start:start+int(l)]...)
	return ber.AppendTLV(nil, ber.UniversalTag(ber.ObjectIdentifier, false), abs)
}
