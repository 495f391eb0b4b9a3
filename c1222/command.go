package c1222

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Request codes.
const (
	OpIdentify     byte = 0x20
	OpTerminate    byte = 0x21
	OpDisconnect   byte = 0x22
	OpDeregister   byte = 0x24
	OpResolve      byte = 0x25
	OpTrace        byte = 0x26
	OpRegister     byte = 0x27
	OpFullRead     byte = 0x30
	OpDefaultRead  byte = 0x3E
	OpPartialRead  byte = 0x3F
	OpFullWrite    byte = 0x40
	OpPartialWrite byte = 0x4F
	OpLogon        byte = 0x50
	OpSecurity     byte = 0x51
	OpLogoff       byte = 0x52
	OpAuthenticate byte = 0x53
	OpNegotiate    byte = 0x60
	OpWait         byte = 0x70
	OpTimingSetup  byte = 0x71
)

// ProcedureTable is the table whose writes are procedure calls.
const ProcedureTable = 7

var requestNames = map[byte]string{
	OpIdentify:     "Identify",
	OpTerminate:    "Terminate",
	OpDisconnect:   "Disconnect",
	OpDeregister:   "Deregister",
	OpResolve:      "Resolve",
	OpTrace:        "Trace",
	OpRegister:     "Register",
	OpFullRead:     "Full Read",
	OpDefaultRead:  "Default Read",
	OpPartialRead:  "Partial Read",
	OpFullWrite:    "Full Write",
	OpPartialWrite: "Partial Write",
	OpLogon:        "Logon",
	OpSecurity:     "Security",
	OpLogoff:       "Logoff",
	OpAuthenticate: "Authenticate",
	OpNegotiate:    "Negotiate",
	OpWait:         "Wait",
	OpTimingSetup:  "Timing Setup",
}

var responseNames = [...]string{
	0x00: "OK",
	0x01: "ERR",
	0x02: "SNS",
	0x03: "ISC",
	0x04: "ONP",
	0x05: "IAR",
	0x06: "BSY",
	0x07: "DNR",
	0x08: "DLK",
	0x09: "RNO",
	0x0A: "ISSS",
	0x0B: "SME",
	0x0C: "UAT",
	0x0D: "NETT",
	0x0E: "NETR",
	0x0F: "RQTL",
	0x10: "RSTL",
	0x11: "SGNP",
	0x12: "SGERR",
}

// CommandName names a request or response code.
func CommandName(op byte) string {
	if op < 0x20 {
		if int(op) < len(responseNames) && responseNames[op] != "" {
			return responseNames[op]
		}
		return fmt.Sprintf("Response 0x%02x", op)
	}
	if op&0xF0 == OpNegotiate {
		op = OpNegotiate
	}
	if name, ok := requestNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Unknown 0x%02x", op)
}

// Fields holds the decoded parameters of one command.
type Fields interface {
	fields()
}

// Logon opens a session.
type Logon struct {
	UserID uint16
	User   string
	// IdleTimeout is the requested session idle timeout in seconds, C12.22 only.
	IdleTimeout    uint16
	HasIdleTimeout bool
}

// Security carries the password.
type Security struct {
	Password  [20]byte
	UserID    uint16
	HasUserID bool
}

// Authenticate carries the authentication request.
type Authenticate struct {
	Data []byte
}

// FullRead reads a whole table.
type FullRead struct {
	Table uint16
}

// PartialRead reads count octets at offset.
type PartialRead struct {
	Table  uint16
	Offset uint32
	Count  uint16
}

// Write is the common part of full and partial writes.
type Write struct {
	Table uint16
	Size  uint16
	// Procedure is the little-endian procedure word of a table 7 write.
	Procedure    uint16
	HasProcedure bool
	Data         []byte
	Checksum     byte
	ChecksumOK   bool
}

// ProcedureNumber returns the procedure number without the selector bits.
func (w Write) ProcedureNumber() uint16 { return w.Procedure & 0x07FF }

// ManufacturerProcedure reports the manufacturer bit of the procedure word.
func (w Write) ManufacturerProcedure() bool { return w.Procedure&0x0800 != 0 }

// ProcedureSelector returns the response selector of the procedure word.
func (w Write) ProcedureSelector() uint8 { return uint8(w.Procedure >> 12) }

// FullWrite writes a whole table.
type FullWrite struct {
	Write
}

// PartialWrite writes Size octets at Offset.
type PartialWrite struct {
	Write
	Offset uint32
}

// Wait extends the session.
type Wait struct {
	Seconds uint8
}

// Negotiate proposes link parameters.
type Negotiate struct {
	PacketSize uint16
	Packets    uint8
	BaudRates  []byte
}

// TimingSetup proposes link timers.
type TimingSetup struct {
	TrafficTimeout   uint8
	InterCharTimeout uint8
	ResponseTimeout  uint8
	Retries          uint8
}

// Generic is an opaque payload: responses and commands without a layout.
type Generic struct {
	Data []byte
}

func (Logon) fields()        {}
func (Security) fields()     {}
func (Authenticate) fields() {}
func (FullRead) fields()     {}
func (PartialRead) fields()  {}
func (FullWrite) fields()    {}
func (PartialWrite) fields() {}
func (Wait) fields()         {}
func (Negotiate) fields()    {}
func (TimingSetup) fields()  {}
func (Generic) fields()      {}

// Command is one EPSEM service element.
type Command struct {
	// Opcode as it appears on the wire.
	Opcode byte
	// Offset of the opcode relative to the EPSEM.
	Offset int
	// Length is the declared element length, opcode included.
	Length int
	Fields Fields
	// Truncated is set when the element is too short for its opcode.
	// Raw then holds the whole element.
	Truncated bool
	Raw       []byte
	// Trailing holds bytes the command did not consume.
	Trailing []byte
}

// Name returns the display name of the command.
func (c Command) Name() string { return CommandName(c.Opcode) }

// IsResponse reports whether the element is a response code.
func (c Command) IsResponse() bool { return c.Opcode < 0x20 }

// EffectiveOpcode folds the negotiate family to 0x60.
func (c Command) EffectiveOpcode() byte {
	if c.Opcode&0xF0 == OpNegotiate {
		return OpNegotiate
	}
	return c.Opcode
}

// parseCommand decodes one element. offset is the element start relative to
// the EPSEM and is used for findings.
func parseCommand(elem []byte, offset int) (Command, []Finding) {
	cmd := Command{Opcode: elem[0], Offset: offset, Length: len(elem)}
	params := elem[1:]

	var (
		fields   Fields
		consumed int
		ok       bool
	)
	switch {
	case cmd.Opcode&0xF0 == OpNegotiate:
		fields, consumed, ok = parseNegotiate(cmd.Opcode, params)
	case cmd.Opcode == OpLogon:
		fields, consumed, ok = parseLogon(params)
	case cmd.Opcode == OpSecurity:
		fields, consumed, ok = parseSecurity(params)
	case cmd.Opcode == OpAuthenticate:
		fields, consumed, ok = parseAuthenticate(params)
	case cmd.Opcode == OpFullRead:
		if ok = len(params) >= 2; ok {
			fields, consumed = FullRead{Table: binary.BigEndian.Uint16(params)}, 2
		}
	case cmd.Opcode == OpPartialRead:
		fields, consumed, ok = parsePartialRead(params)
	case cmd.Opcode == OpFullWrite:
		fields, consumed, ok = parseFullWrite(params)
	case cmd.Opcode == OpPartialWrite:
		fields, consumed, ok = parsePartialWrite(params)
	case cmd.Opcode == OpWait:
		if ok = len(params) >= 1; ok {
			fields, consumed = Wait{Seconds: params[0]}, 1
		}
	case cmd.Opcode == OpTimingSetup:
		if ok = len(params) >= 4; ok {
			fields, consumed = TimingSetup{
				TrafficTimeout:   params[0],
				InterCharTimeout: params[1],
				ResponseTimeout:  params[2],
				Retries:          params[3],
			}, 4
		}
	default:
		fields, consumed, ok = Generic{Data: params}, len(params), true
	}

	if !ok {
		cmd.Truncated = true
		cmd.Raw = elem
		return cmd, []Finding{{
			Kind:   CommandTruncated,
			Offset: offset,
			Detail: fmt.Sprintf("%s: %d parameter bytes", cmd.Name(), len(params)),
		}}
	}

	cmd.Fields = fields
	var findings []Finding
	if w, isWrite := writeOf(fields); isWrite && !w.ChecksumOK {
		findings = append(findings, Finding{
			Kind:   BadChecksum,
			Offset: offset + consumed,
			Detail: fmt.Sprintf("table %d: got 0x%02x", w.Table, w.Checksum),
		})
	}
	if consumed < len(params) {
		cmd.Trailing = params[consumed:]
		findings = append(findings, Finding{
			Kind:   LengthMismatch,
			Offset: offset + 1 + consumed,
			Detail: fmt.Sprintf("%s: %d of %d bytes unused", cmd.Name(), len(params)-consumed, len(elem)),
		})
	}
	return cmd, findings
}

func writeOf(f Fields) (Write, bool) {
	switch w := f.(type) {
	case FullWrite:
		return w.Write, true
	case PartialWrite:
		return w.Write, true
	}
	return Write{}, false
}

func parseLogon(p []byte) (Fields, int, bool) {
	if len(p) < 12 {
		return nil, 0, false
	}
	l := Logon{
		UserID: binary.BigEndian.Uint16(p),
		User:   strings.TrimRight(string(p[2:12]), " \x00"),
	}
	if len(p) >= 14 {
		l.IdleTimeout = binary.BigEndian.Uint16(p[12:])
		l.HasIdleTimeout = true
		return l, 14, true
	}
	return l, 12, true
}

func parseSecurity(p []byte) (Fields, int, bool) {
	if len(p) < 20 {
		return nil, 0, false
	}
	var s Security
	copy(s.Password[:], p[:20])
	if len(p) >= 22 {
		s.UserID = binary.BigEndian.Uint16(p[20:])
		s.HasUserID = true
		return s, 22, true
	}
	return s, 20, true
}

func parseAuthenticate(p []byte) (Fields, int, bool) {
	if len(p) < 1 || len(p) < 1+int(p[0]) {
		return nil, 0, false
	}
	n := int(p[0])
	return Authenticate{Data: p[1 : 1+n]}, 1 + n, true
}

func parsePartialRead(p []byte) (Fields, int, bool) {
	if len(p) < 7 {
		return nil, 0, false
	}
	return PartialRead{
		Table:  binary.BigEndian.Uint16(p),
		Offset: uint32(p[2])<<16 | uint32(p[3])<<8 | uint32(p[4]),
		Count:  binary.BigEndian.Uint16(p[5:]),
	}, 7, true
}

func parseFullWrite(p []byte) (Fields, int, bool) {
	if len(p) < 5 {
		return nil, 0, false
	}
	w := Write{
		Table: binary.BigEndian.Uint16(p),
		Size:  binary.BigEndian.Uint16(p[2:]),
	}
	n, ok := parseWriteData(&w, p[4:])
	if !ok {
		return nil, 0, false
	}
	return FullWrite{Write: w}, 4 + n, true
}

func parsePartialWrite(p []byte) (Fields, int, bool) {
	if len(p) < 8 {
		return nil, 0, false
	}
	w := Write{
		Table: binary.BigEndian.Uint16(p),
		Size:  binary.BigEndian.Uint16(p[5:]),
	}
	offset := uint32(p[2])<<16 | uint32(p[3])<<8 | uint32(p[4])
	n, ok := parseWriteData(&w, p[7:])
	if !ok {
		return nil, 0, false
	}
	return PartialWrite{Write: w, Offset: offset}, 7 + n, true
}

// parseWriteData reads Size data octets and the checksum that follows them.
// For table 7 the first two data octets are the procedure word, and the
// checksum covers them as well as the data.
func parseWriteData(w *Write, p []byte) (int, bool) {
	size := int(w.Size)
	if len(p) < size+1 {
		return 0, false
	}
	covered := p[:size]
	data := covered
	if w.Table == ProcedureTable {
		if size < 2 {
			return 0, false
		}
		w.Procedure = binary.LittleEndian.Uint16(covered)
		w.HasProcedure = true
		data = covered[2:]
	}
	w.Data = data
	w.Checksum = p[size]
	w.ChecksumOK = Checksum(covered) == w.Checksum
	return size + 1, true
}

func parseNegotiate(op byte, p []byte) (Fields, int, bool) {
	bauds := int(op & 0x0F)
	if len(p) < 3+bauds {
		return nil, 0, false
	}
	return Negotiate{
		PacketSize: binary.BigEndian.Uint16(p),
		Packets:    p[2],
		BaudRates:  p[3 : 3+bauds],
	}, 3 + bauds, true
}
