package cotp

import (
	"errors"
	"fmt"
)

// Logger интерфейс для логирования COTP пакетов
type Logger interface {
	Debug(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

const (
	TPKTHeaderSize = 4
	tpktVersion    = 0x03

	// Максимальный размер пересобранного сообщения по умолчанию
	DefaultMaxMessageSize = 1 << 20
)

// COTPType тип TPDU (старшие 4 бита второго байта)
type COTPType uint8

const (
	COTPTypeConnectionRequest COTPType = 0x0e // CR
	COTPTypeConnectionConfirm COTPType = 0x0d // CC
	COTPTypeDisconnectRequest COTPType = 0x08 // DR
	COTPTypeDisconnectConfirm COTPType = 0x0c // DC
	COTPTypeData              COTPType = 0x0f // DT
	COTPTypeExpeditedData     COTPType = 0x01 // ED
	COTPTypeDataAck           COTPType = 0x06 // AK
	COTPTypeReject            COTPType = 0x05 // RJ
	COTPTypeError             COTPType = 0x07 // ER
)

func (t COTPType) String() string {
	switch t {
	case COTPTypeConnectionRequest:
		return "CR"
	case COTPTypeConnectionConfirm:
		return "CC"
	case COTPTypeDisconnectRequest:
		return "DR"
	case COTPTypeDisconnectConfirm:
		return "DC"
	case COTPTypeData:
		return "DT"
	case COTPTypeExpeditedData:
		return "ED"
	case COTPTypeDataAck:
		return "AK"
	case COTPTypeReject:
		return "RJ"
	case COTPTypeError:
		return "ER"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
	}
}

// Коды опций переменной части
const (
	optionTpduSize      = 0xc0
	optionCallingTSAP   = 0xc1
	optionCalledTSAP    = 0xc2
	optionAdditional    = 0xc6
	maxTSelectorLength  = 16
	dataFlagEndOfTSDU   = 0x80
	dataSequenceNumMask = 0x7f
)

var (
	ErrShortTPKT       = errors.New("TPKT too short")
	ErrInvalidTPKT     = errors.New("invalid TPKT header")
	ErrShortCOTP       = errors.New("COTP TPDU too short")
	ErrInvalidLength   = errors.New("invalid COTP length indicator")
	ErrUnknownTPDU     = errors.New("unknown TPDU type")
	ErrInvalidOption   = errors.New("invalid COTP option")
	ErrMessageTooLarge = errors.New("reassembled message too large")
)

// TPKT заголовок RFC 1006
type TPKT struct {
	Version  uint8
	Reserved uint8
	Length   uint16 // длина всего пакета, включая заголовок
	Data     []byte // COTP TPDU
}

// ParseTPKT разбирает один TPKT пакет. Байты после Length игнорируются.
func ParseTPKT(data []byte) (*TPKT, error) {
	length, err := tpktLength(data)
	if err != nil {
		return nil, err
	}
	if int(length) > len(data) {
		return nil, fmt.Errorf("%w: length %d, have %d", ErrShortTPKT, length, len(data))
	}
	return &TPKT{
		Version:  data[0],
		Reserved: data[1],
		Length:   length,
		Data:     data[TPKTHeaderSize:length],
	}, nil
}

// ParseTruncatedTPKT разбирает TPKT, от которого захвачено только начало:
// на проводе было reportedLength байт. Data содержит захваченную часть TPDU.
func ParseTruncatedTPKT(data []byte, reportedLength int) (*TPKT, error) {
	if reportedLength <= len(data) {
		return ParseTPKT(data)
	}
	length, err := tpktLength(data)
	if err != nil {
		return nil, err
	}
	if int(length) > reportedLength {
		return nil, fmt.Errorf("%w: length %d, reported %d", ErrShortTPKT, length, reportedLength)
	}
	return &TPKT{
		Version:  data[0],
		Reserved: data[1],
		Length:   length,
		Data:     data[TPKTHeaderSize:min(int(length), len(data))],
	}, nil
}

// tpktLength проверяет заголовок TPKT и возвращает длину пакета
func tpktLength(data []byte) (uint16, error) {
	if len(data) < TPKTHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortTPKT, len(data))
	}
	if data[0] != tpktVersion {
		return 0, fmt.Errorf("%w: version 0x%02x", ErrInvalidTPKT, data[0])
	}
	length := uint16(data[2])<<8 | uint16(data[3])
	if length < TPKTHeaderSize {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidTPKT, length)
	}
	return length, nil
}

// COTP разобранный TPDU. Поля заполняются в зависимости от типа.
type COTP struct {
	Length uint8 // length indicator: длина заголовка без самого байта
	Type   COTPType

	// DT
	Flags          uint8
	IsLastDataUnit bool
	SequenceNumber uint8

	// CR, CC, DR, DC, ER
	DestRef uint16
	SrcRef  uint16

	// CR, CC: байт класса протокола и его разбор
	ProtocolClass      uint8
	Class              uint8
	ExtendedFormats    bool
	NoExplicitFlowCtrl bool

	// Опции
	TpduSize uint8 // степень двойки: 0x0d = 8192
	DstTSAP  []byte
	SrcTSAP  []byte

	// DR: причина, ER: код отклонения
	Reason uint8

	// Данные пользователя (DT) или пустой срез
	Data []byte
}

// TpduSizeBytes возвращает размер TPDU в байтах из опции c0
func (c *COTP) TpduSizeBytes() int {
	if c.TpduSize == 0 || c.TpduSize > 16 {
		return 0
	}
	return 1 << c.TpduSize
}

// ParseCOTP разбирает COTP TPDU (содержимое TPKT)
func ParseCOTP(data []byte) (*COTP, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortCOTP, len(data))
	}

	li := int(data[0])
	if li == 0xff || li+1 > len(data) || li < 1 {
		return nil, fmt.Errorf("%w: %d, have %d", ErrInvalidLength, li, len(data))
	}

	pdu := &COTP{
		Length: data[0],
		Type:   COTPType(data[1] >> 4),
		Data:   []byte{},
	}
	header := data[2 : li+1]

	switch pdu.Type {
	case COTPTypeData:
		if len(header) < 1 {
			return nil, fmt.Errorf("%w: DT without EOT octet", ErrShortCOTP)
		}
		pdu.Flags = header[0]
		pdu.IsLastDataUnit = header[0]&dataFlagEndOfTSDU != 0
		pdu.SequenceNumber = header[0] & dataSequenceNumMask
		pdu.Data = data[li+1:]
		return pdu, nil

	case COTPTypeConnectionRequest, COTPTypeConnectionConfirm:
		if len(header) < 5 {
			return nil, fmt.Errorf("%w: %s header %d bytes", ErrShortCOTP, pdu.Type, len(header))
		}
		pdu.DestRef = uint16(header[0])<<8 | uint16(header[1])
		pdu.SrcRef = uint16(header[2])<<8 | uint16(header[3])
		pdu.ProtocolClass = header[4]
		pdu.Class = header[4] >> 4
		pdu.ExtendedFormats = header[4]&0x02 != 0
		pdu.NoExplicitFlowCtrl = header[4]&0x01 != 0
		if err := pdu.parseOptions(header[5:]); err != nil {
			return pdu, err
		}
		pdu.Data = data[li+1:]
		return pdu, nil

	case COTPTypeDisconnectRequest:
		if len(header) < 5 {
			return nil, fmt.Errorf("%w: DR header %d bytes", ErrShortCOTP, len(header))
		}
		pdu.DestRef = uint16(header[0])<<8 | uint16(header[1])
		pdu.SrcRef = uint16(header[2])<<8 | uint16(header[3])
		pdu.Reason = header[4]
		return pdu, pdu.parseOptions(header[5:])

	case COTPTypeDisconnectConfirm:
		if len(header) < 4 {
			return nil, fmt.Errorf("%w: DC header %d bytes", ErrShortCOTP, len(header))
		}
		pdu.DestRef = uint16(header[0])<<8 | uint16(header[1])
		pdu.SrcRef = uint16(header[2])<<8 | uint16(header[3])
		return pdu, nil

	case COTPTypeError:
		if len(header) < 3 {
			return nil, fmt.Errorf("%w: ER header %d bytes", ErrShortCOTP, len(header))
		}
		pdu.DestRef = uint16(header[0])<<8 | uint16(header[1])
		pdu.Reason = header[2]
		return pdu, nil

	case COTPTypeExpeditedData, COTPTypeDataAck, COTPTypeReject:
		// Классы 1-4, для MMS не используются: заголовок не разбираем
		pdu.Data = data[li+1:]
		return pdu, nil
	}

	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTPDU, data[1])
}

// parseOptions разбирает опции переменной части заголовка
func (c *COTP) parseOptions(buffer []byte) error {
	bufPos := 0

	for bufPos < len(buffer) {
		if bufPos+1 >= len(buffer) {
			return fmt.Errorf("%w: missing type or length", ErrInvalidOption)
		}

		optionType := buffer[bufPos]
		optionLen := int(buffer[bufPos+1])
		bufPos += 2

		if bufPos+optionLen > len(buffer) {
			return fmt.Errorf("%w: optionLen=%d, remaining=%d", ErrInvalidOption, optionLen, len(buffer)-bufPos)
		}
		value := buffer[bufPos : bufPos+optionLen]

		switch optionType {
		case optionTpduSize:
			if optionLen != 1 {
				return fmt.Errorf("%w: TPDU size length %d", ErrInvalidOption, optionLen)
			}
			c.TpduSize = value[0]

		case optionCallingTSAP:
			if optionLen > maxTSelectorLength {
				return fmt.Errorf("%w: t-selector too long", ErrInvalidOption)
			}
			c.SrcTSAP = value

		case optionCalledTSAP:
			if optionLen > maxTSelectorLength {
				return fmt.Errorf("%w: t-selector too long", ErrInvalidOption)
			}
			c.DstTSAP = value

		case optionAdditional:
			if optionLen != 1 {
				return fmt.Errorf("%w: additional option length %d", ErrInvalidOption, optionLen)
			}

		default:
			// Игнорируем неизвестные опции
		}
		bufPos += optionLen
	}

	return nil
}

// Framer определяет границы TPKT пакетов в TCP потоке
type Framer struct{}

// Detect сообщает, похоже ли начало буфера на TPKT
func (Framer) Detect(data []byte) bool {
	return len(data) >= 2 && data[0] == tpktVersion && data[1] == 0x00
}

// Extract возвращает длину первого полного пакета в буфере.
// 0 без ошибки означает, что данных пока недостаточно.
func (f Framer) Extract(data []byte) (int, error) {
	if len(data) < TPKTHeaderSize {
		return 0, nil
	}
	if !f.Detect(data) {
		return 0, fmt.Errorf("%w: % x", ErrInvalidTPKT, data[:2])
	}
	length := int(data[2])<<8 | int(data[3])
	if length < TPKTHeaderSize+2 {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidTPKT, length)
	}
	if length > len(data) {
		return 0, nil
	}
	return length, nil
}

// Reassembler склеивает DT TPDU одного направления до признака EOT
type Reassembler struct {
	payload []byte
	max     int
	logger  Logger
}

// ReassemblerOption опция Reassembler
type ReassemblerOption func(*Reassembler)

// WithMaxMessageSize ограничивает размер пересобранного сообщения
func WithMaxMessageSize(size int) ReassemblerOption {
	return func(r *Reassembler) {
		r.max = size
	}
}

// WithLogger устанавливает логгер
func WithLogger(logger Logger) ReassemblerOption {
	return func(r *Reassembler) {
		r.logger = logger
	}
}

// NewReassembler создаёт Reassembler
func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{max: DefaultMaxMessageSize, logger: nopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add добавляет DT TPDU. Возвращает полное сообщение, когда пришёл последний фрагмент,
// иначе nil. Фрагменты других типов игнорируются.
func (r *Reassembler) Add(pdu *COTP) ([]byte, error) {
	if pdu.Type != COTPTypeData {
		return nil, nil
	}
	if len(r.payload)+len(pdu.Data) > r.max {
		size := len(r.payload) + len(pdu.Data)
		r.Reset()
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, r.max)
	}

	if pdu.IsLastDataUnit && len(r.payload) == 0 {
		return pdu.Data, nil
	}
	r.payload = append(r.payload, pdu.Data...)
	if !pdu.IsLastDataUnit {
		r.logger.Debug("DT fragment %d bytes, buffered %d", len(pdu.Data), len(r.payload))
		return nil, nil
	}
	msg := r.payload
	r.payload = nil
	return msg, nil
}

// Pending возвращает количество накопленных байт
func (r *Reassembler) Pending() int {
	return len(r.payload)
}

// Reset сбрасывает накопленные фрагменты
func (r *Reassembler) Reset() {
	r.payload = nil
}
