package c1222

import "fmt"

// FindingKind classifies a non-fatal problem found while parsing a message.
type FindingKind int

const (
	// CommandTruncated: the element is shorter than its command needs.
	CommandTruncated FindingKind = iota + 1
	// BadChecksum: the write checksum does not match the data.
	BadChecksum
	// LengthMismatch: the command consumed less than the element length.
	LengthMismatch
	// InvalidLength: an element length is malformed or exceeds the EPSEM.
	InvalidLength
	// AuthenticationFailed: the authenticator rejected the MAC.
	AuthenticationFailed
	// KeyLookupFailed: no key for the key id of the message.
	KeyLookupFailed
	// HeaderElementMissing: a required element for the canonical header is absent.
	HeaderElementMissing
)

var findingNames = map[FindingKind]string{
	CommandTruncated:     "command truncated",
	BadChecksum:          "bad checksum",
	LengthMismatch:       "length mismatch",
	InvalidLength:        "invalid length",
	AuthenticationFailed: "authentication failed",
	KeyLookupFailed:      "key lookup failed",
	HeaderElementMissing: "header element missing",
}

func (k FindingKind) String() string {
	if s, ok := findingNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FindingKind(%d)", int(k))
}

// Finding is a diagnostic attached to a decoded message. Offsets are
// relative to the start of the EPSEM.
type Finding struct {
	Kind   FindingKind
	Offset int
	Detail string
}

func (f Finding) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s at %d", f.Kind, f.Offset)
	}
	return fmt.Sprintf("%s at %d: %s", f.Kind, f.Offset, f.Detail)
}
