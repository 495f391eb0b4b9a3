package session

import (
	"errors"
	"fmt"
)

// SessionSPDUType код SPDU (ISO 8327-1)
type SessionSPDUType uint8

const (
	SessionSPDUTypeDataTransfer  SessionSPDUType = 1  // DT, совпадает с GIVE TOKENS
	SessionSPDUTypeNotFinished   SessionSPDUType = 8  // NF
	SessionSPDUTypeFinish        SessionSPDUType = 9  // FN
	SessionSPDUTypeDisconnect    SessionSPDUType = 10 // DN
	SessionSPDUTypeRefuse        SessionSPDUType = 12 // RF
	SessionSPDUTypeConnect       SessionSPDUType = 13 // CN
	SessionSPDUTypeAccept        SessionSPDUType = 14 // AC
	SessionSPDUTypeAbort         SessionSPDUType = 25 // AB
	SessionSPDUTypeAbortAccept   SessionSPDUType = 26 // AA
	SessionSPDUTypeGiveTokens    SessionSPDUType = SessionSPDUTypeDataTransfer
	SessionSPDUTypeGiveTokensAck SessionSPDUType = 21 // GTA
)

func (t SessionSPDUType) String() string {
	switch t {
	case SessionSPDUTypeDataTransfer:
		return "DATA TRANSFER"
	case SessionSPDUTypeNotFinished:
		return "NOT FINISHED"
	case SessionSPDUTypeFinish:
		return "FINISH"
	case SessionSPDUTypeDisconnect:
		return "DISCONNECT"
	case SessionSPDUTypeRefuse:
		return "REFUSE"
	case SessionSPDUTypeConnect:
		return "CONNECT"
	case SessionSPDUTypeAccept:
		return "ACCEPT"
	case SessionSPDUTypeAbort:
		return "ABORT"
	case SessionSPDUTypeAbortAccept:
		return "ABORT ACCEPT"
	case SessionSPDUTypeGiveTokensAck:
		return "GIVE TOKENS ACK"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Коды параметров (PI) и групп параметров (PGI)
const (
	piConnectAcceptItem   = 5   // PGI
	piTransportDisconnect = 17  // 0x11
	piProtocolOptions     = 19  // 0x13
	piSessionRequirement  = 20  // 0x14
	piTSDUMaxSize         = 21  // 0x15
	piVersionNumber       = 22  // 0x16
	piInitialSerialNumber = 23  // 0x17
	piTokenItem           = 16  // 0x10
	piReasonCode          = 50  // 0x32
	piCallingSelector     = 51  // 0x33
	piCalledSelector      = 52  // 0x34
	piEnclosureItem       = 25  // 0x19
	piUserData            = 193 // 0xc1
	piExtendedUserData    = 194 // 0xc2

	// Длина 0xff означает, что далее идут два байта длины
	extendedLength = 0xff
)

var (
	ErrShortSPDU     = errors.New("session SPDU too short")
	ErrInvalidLength = errors.New("session SPDU length exceeds data")
	ErrUnknownSPDU   = errors.New("unknown session SPDU type")
	ErrInvalidParam  = errors.New("invalid session parameter")
)

// SessionSPDU разобранный SPDU
type SessionSPDU struct {
	Type SessionSPDUType
	// Length значение поля длины: размер параметров (и данных для CN/AC)
	Length int

	// GiveTokens перед DT (базовая конкатенация)
	GiveTokens bool

	ProtocolOptions        uint8
	ProtocolVersion        uint8
	SessionRequirement     uint16
	TSDUMaxSize            []byte
	CallingSessionSelector []byte
	CalledSessionSelector  []byte
	TransportDisconnect    uint8
	ReasonCode             []byte
	EnclosureItem          uint8

	// Data данные пользователя: параметр c1/c2 или всё после заголовка DT
	Data []byte
	// DataOffset смещение Data от начала входного буфера
	DataOffset int
}

// ParseSessionSPDU разбирает SPDU. Для DT с префиксом GIVE TOKENS возвращается DT.
func ParseSessionSPDU(data []byte) (*SessionSPDU, error) {
	spdu := &SessionSPDU{}

	spduType, paramsStart, length, err := readHeader(data, 0)
	if err != nil {
		return nil, err
	}

	// GIVE TOKENS (длина 0) + DATA TRANSFER
	if spduType == SessionSPDUTypeGiveTokens && length == 0 && paramsStart < len(data) &&
		SessionSPDUType(data[paramsStart]) == SessionSPDUTypeDataTransfer {
		spdu.GiveTokens = true
		spduType, paramsStart, length, err = readHeader(data, paramsStart)
		if err != nil {
			return nil, err
		}
	}

	spdu.Type = spduType
	spdu.Length = length
	paramsEnd := paramsStart + length

	switch spduType {
	case SessionSPDUTypeDataTransfer:
		if err := spdu.parseParameters(data, paramsStart, paramsEnd); err != nil {
			return spdu, err
		}
		// Данные пользователя DT идут после параметров
		spdu.Data = data[paramsEnd:]
		spdu.DataOffset = paramsEnd
		return spdu, nil

	case SessionSPDUTypeConnect, SessionSPDUTypeAccept, SessionSPDUTypeRefuse,
		SessionSPDUTypeFinish, SessionSPDUTypeDisconnect, SessionSPDUTypeNotFinished,
		SessionSPDUTypeAbort, SessionSPDUTypeAbortAccept, SessionSPDUTypeGiveTokensAck:
		return spdu, spdu.parseParameters(data, paramsStart, paramsEnd)
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownSPDU, data[0])
}

// readHeader читает SI и LI начиная с pos
func readHeader(data []byte, pos int) (SessionSPDUType, int, int, error) {
	if len(data)-pos < 2 {
		return 0, 0, 0, fmt.Errorf("%w: %d bytes", ErrShortSPDU, len(data)-pos)
	}
	spduType := SessionSPDUType(data[pos])
	length, next, err := readLength(data, pos+1)
	if err != nil {
		return 0, 0, 0, err
	}
	if next+length > len(data) {
		return 0, 0, 0, fmt.Errorf("%w: length %d, have %d", ErrInvalidLength, length, len(data)-next)
	}
	return spduType, next, length, nil
}

// readLength читает длину: один байт или 0xff и два байта
// В отличие от BER короткая форма действует до 254
func readLength(data []byte, pos int) (int, int, error) {
	if pos >= len(data) {
		return 0, pos, fmt.Errorf("%w: missing length", ErrShortSPDU)
	}
	if data[pos] != extendedLength {
		return int(data[pos]), pos + 1, nil
	}
	if pos+3 > len(data) {
		return 0, pos, fmt.Errorf("%w: missing extended length", ErrShortSPDU)
	}
	return int(data[pos+1])<<8 | int(data[pos+2]), pos + 3, nil
}

// parseParameters разбирает PI/PGI в диапазоне [pos, end)
func (s *SessionSPDU) parseParameters(data []byte, pos, end int) error {
	for pos < end {
		code := data[pos]
		length, valueStart, err := readLength(data[:end], pos+1)
		if err != nil {
			return fmt.Errorf("%w: parameter %d: %w", ErrInvalidParam, code, err)
		}
		valueEnd := valueStart + length
		if valueEnd > end {
			return fmt.Errorf("%w: parameter %d length %d overruns SPDU", ErrInvalidParam, code, length)
		}
		value := data[valueStart:valueEnd]

		switch code {
		case piConnectAcceptItem:
			// PGI: вложенные PI
			if err := s.parseParameters(data, valueStart, valueEnd); err != nil {
				return err
			}
		case piProtocolOptions:
			if length > 0 {
				s.ProtocolOptions = value[0]
			}
		case piVersionNumber:
			if length > 0 {
				s.ProtocolVersion = value[0]
			}
		case piSessionRequirement:
			if length == 2 {
				s.SessionRequirement = uint16(value[0])<<8 | uint16(value[1])
			}
		case piTSDUMaxSize:
			s.TSDUMaxSize = value
		case piCallingSelector:
			s.CallingSessionSelector = value
		case piCalledSelector:
			s.CalledSessionSelector = value
		case piTransportDisconnect:
			if length > 0 {
				s.TransportDisconnect = value[0]
			}
		case piReasonCode:
			s.ReasonCode = value
		case piEnclosureItem:
			if length > 0 {
				s.EnclosureItem = value[0]
			}
		case piUserData, piExtendedUserData:
			s.Data = value
			s.DataOffset = valueStart
		default:
			// piTokenItem, piInitialSerialNumber и прочие не нужны для разбора верхних уровней
		}
		pos = valueEnd
	}
	return nil
}

// IsConnectionPhase сообщает, что SPDU относится к установлению соединения
func (s *SessionSPDU) IsConnectionPhase() bool {
	return s.Type == SessionSPDUTypeConnect || s.Type == SessionSPDUTypeAccept || s.Type == SessionSPDUTypeRefuse
}
