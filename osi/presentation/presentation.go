package presentation

import (
	"errors"
	"fmt"

	"github.com/slonegd/otdissect/ber"
)

// PresentationPDUType тип PPDU (ISO 8823)
type PresentationPDUType uint8

const (
	Unknown PresentationPDUType = iota
	CP                          // CP-type, SET 0x31
	CPA                         // CPA-PPDU, SET 0x31
	CPR                         // CPR-PPDU, SEQUENCE 0x30
	TD                          // User-data: fully-encoded-data 0x61
	ARU                         // ARU-PPDU, [0] 0xa0
)

func (t PresentationPDUType) String() string {
	switch t {
	case CP:
		return "CP-type"
	case CPA:
		return "CPA-PPDU"
	case CPR:
		return "CPR-PPDU"
	case TD:
		return "TD-PPDU"
	case ARU:
		return "ARU-PPDU"
	default:
		return "Unknown"
	}
}

// Теги элементов
const (
	tagModeSelector         ber.Tag = 0xa0
	tagModeValue            ber.Tag = 0x80
	tagNormalMode           ber.Tag = 0xa2
	tagProtocolVersion      ber.Tag = 0x80
	tagCallingSelector      ber.Tag = 0x81
	tagCalledSelector       ber.Tag = 0x82
	tagRespondingSelector   ber.Tag = 0x83
	tagContextList          ber.Tag = 0xa4
	tagContextResultList    ber.Tag = 0xa5
	tagProviderReason       ber.Tag = 0x8a
	tagFullyEncodedData     ber.Tag = 0x61
	tagSimplyEncodedData    ber.Tag = 0x40
	tagSingleASN1Type       ber.Tag = 0xa0
	tagOctetAligned         ber.Tag = 0x81
	tagArbitrary            ber.Tag = 0x82
	tagArbitraryConstructed ber.Tag = 0xa2
)

// Тип presentation-data-values
const (
	DataValuesSingleASN1  = 0
	DataValuesOctetString = 1
	DataValuesArbitrary   = 2
)

// Абстрактные синтаксисы
var (
	OIDACSE = ber.OID{2, 2, 1, 0, 1}    // id-as-acse
	OIDMMS  = ber.OID{1, 0, 9506, 2, 1} // mms-abstract-syntax-version1(1)
	OIDBER  = ber.OID{2, 1, 1}          // basic-encoding
)

var (
	ErrEmpty       = errors.New("presentation PDU is empty")
	ErrUnknownPPDU = errors.New("unknown presentation PDU")
	ErrInvalidPPDU = errors.New("invalid presentation PDU")
	ErrNoUserData  = errors.New("presentation user data not present")
)

// ContextDefinition элемент presentation-context-definition-list
type ContextDefinition struct {
	ID             int
	AbstractSyntax ber.OID
}

// PresentationPDU разобранный PPDU
type PresentationPDU struct {
	Type PresentationPDUType

	ModeValue                      int
	ProtocolVersion                []byte
	CallingPresentationSelector    []byte
	CalledPresentationSelector     []byte
	RespondingPresentationSelector []byte

	// CP-type: контексты из definition-list
	Contexts []ContextDefinition
	// CPA/CPR: результаты из definition-result-list (0 - acceptance)
	ContextResults []int
	// CPR: provider-reason, -1 если отсутствует
	ProviderReason int

	// Идентификаторы контекстов ACSE и MMS, известны только из CP-type
	AcseContextId int
	MmsContextId  int

	// Первый PDV из user-data
	PresentationContextId      int
	PresentationDataValuesType int
	Data                       []byte
	// DataOffset смещение Data от начала входного буфера
	DataOffset int
}

// ParsePresentationPDU разбирает PPDU
func ParsePresentationPDU(data []byte) (*PresentationPDU, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	tag, start, end, err := element(data, 0, len(data))
	if err != nil {
		return nil, err
	}

	pdu := &PresentationPDU{ProviderReason: -1}

	switch tag {
	case ber.SetConstructed:
		pdu.Type = CP
		err = walk(data, start, end, pdu.parseConnect)
		// CPA отличается от CP только набором параметров normal-mode
		if pdu.RespondingPresentationSelector != nil || pdu.ContextResults != nil {
			pdu.Type = CPA
		}
	case ber.SequenceConstructed:
		pdu.Type = CPR
		err = walk(data, start, end, pdu.parseNormalMode)
	case tagFullyEncodedData:
		pdu.Type = TD
		err = pdu.parseUserData(data, start, end)
	case tagModeSelector:
		pdu.Type = ARU
		err = walk(data, start, end, pdu.parseNormalMode)
	default:
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrUnknownPPDU, data[0])
	}
	if err != nil {
		return pdu, err
	}
	if pdu.Type != ARU && pdu.Type != CPR && pdu.Data == nil {
		return pdu, ErrNoUserData
	}
	return pdu, nil
}

// ParseTruncatedPresentationPDU разбирает PPDU, от которого захвачено только
// начало: на проводе было reportedLength байт. Для TD-PPDU Data содержит
// захваченную часть значения PDV, остальные PPDU разбираются как обычно.
func ParseTruncatedPresentationPDU(data []byte, reportedLength int) (*PresentationPDU, error) {
	if reportedLength <= len(data) || len(data) == 0 || ber.Tag(data[0]) != tagFullyEncodedData {
		return ParsePresentationPDU(data)
	}
	c := ber.NewTruncatedCursor(data, reportedLength)
	pos := 0
	// fully-encoded-data, затем PDV-list
	for _, want := range []ber.Tag{tagFullyEncodedData, ber.SequenceConstructed} {
		h, l, next, err := ber.DecodeHeader(c.At(pos))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPPDU, err)
		}
		if tag, _ := h.Short(); tag != want || !l.Definite() {
			return nil, fmt.Errorf("%w: unexpected %s", ErrInvalidPPDU, h)
		}
		pos = next
	}

	pdu := &PresentationPDU{Type: TD, ProviderReason: -1}
	for pos < len(data) {
		h, l, start, err := ber.DecodeHeader(c.At(pos))
		if err != nil {
			return pdu, fmt.Errorf("%w: %w", ErrInvalidPPDU, err)
		}
		if !l.Definite() {
			return pdu, fmt.Errorf("%w: indefinite length at %d", ErrInvalidPPDU, pos)
		}
		end := start + int(l)
		tag, _ := h.Short()
		switch tag {
		case ber.Integer:
			if end > len(data) {
				return pdu, fmt.Errorf("%w: presentation-context-identifier: %w", ErrInvalidPPDU, ber.ErrTruncated)
			}
			v, err := ber.DecodeSigned[int64](data[start:end])
			if err != nil {
				return pdu, fmt.Errorf("%w: presentation-context-identifier: %w", ErrInvalidPPDU, err)
			}
			pdu.PresentationContextId = int(v)
		case tagSingleASN1Type, tagOctetAligned, tagArbitrary, tagArbitraryConstructed:
			switch tag {
			case tagSingleASN1Type:
				pdu.PresentationDataValuesType = DataValuesSingleASN1
			case tagOctetAligned:
				pdu.PresentationDataValuesType = DataValuesOctetString
			default:
				pdu.PresentationDataValuesType = DataValuesArbitrary
			}
			pdu.Data, pdu.DataOffset = data[start:min(end, len(data))], start
			return pdu, nil
		}
		pos = end
	}
	return pdu, ErrNoUserData
}

// parseConnect разбирает элементы CP-type/CPA-PPDU
func (p *PresentationPDU) parseConnect(data []byte, tag ber.Tag, start, end int) error {
	switch tag {
	case tagModeSelector:
		return walk(data, start, end, func(data []byte, tag ber.Tag, start, end int) error {
			if tag == tagModeValue {
				v, err := ber.DecodeSigned[int64](data[start:end])
				if err != nil {
					return fmt.Errorf("%w: mode-value: %w", ErrInvalidPPDU, err)
				}
				p.ModeValue = int(v)
			}
			return nil
		})
	case tagNormalMode:
		return walk(data, start, end, p.parseNormalMode)
	}
	return nil
}

// parseNormalMode разбирает normal-mode-parameters
func (p *PresentationPDU) parseNormalMode(data []byte, tag ber.Tag, start, end int) error {
	value := data[start:end]
	switch tag {
	case tagProtocolVersion:
		p.ProtocolVersion = value
	case tagCallingSelector:
		p.CallingPresentationSelector = value
	case tagCalledSelector:
		p.CalledPresentationSelector = value
	case tagRespondingSelector:
		p.RespondingPresentationSelector = value
	case tagContextList:
		return walk(data, start, end, p.parseContextDefinition)
	case tagContextResultList:
		p.ContextResults = []int{}
		return walk(data, start, end, p.parseContextResult)
	case tagProviderReason:
		if v, err := ber.DecodeSigned[int64](value); err == nil {
			p.ProviderReason = int(v)
		}
	case tagFullyEncodedData:
		return p.parseUserData(data, start, end)
	case tagSimplyEncodedData:
		p.Data = value
		p.DataOffset = start
		p.PresentationDataValuesType = DataValuesOctetString
	}
	return nil
}

// parseContextDefinition разбирает 30 { 02 id, 06 abstract-syntax, 30 transfer-syntax-list }
func (p *PresentationPDU) parseContextDefinition(data []byte, tag ber.Tag, start, end int) error {
	if tag != ber.SequenceConstructed {
		return nil
	}
	var def ContextDefinition
	err := walk(data, start, end, func(data []byte, tag ber.Tag, start, end int) error {
		switch tag {
		case ber.Integer:
			v, err := ber.DecodeSigned[int64](data[start:end])
			if err != nil {
				return fmt.Errorf("%w: context id: %w", ErrInvalidPPDU, err)
			}
			def.ID = int(v)
		case ber.ObjectIdentifier:
			oid, err := ber.DecodeOID(data[start:end])
			if err != nil {
				return fmt.Errorf("%w: abstract syntax: %w", ErrInvalidPPDU, err)
			}
			def.AbstractSyntax = oid
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Contexts = append(p.Contexts, def)
	switch {
	case def.AbstractSyntax.Equal(OIDACSE):
		p.AcseContextId = def.ID
	case def.AbstractSyntax.Equal(OIDMMS):
		p.MmsContextId = def.ID
	}
	return nil
}

// parseContextResult разбирает 30 { 80 result, 81 transfer-syntax }
func (p *PresentationPDU) parseContextResult(data []byte, tag ber.Tag, start, end int) error {
	if tag != ber.SequenceConstructed {
		return nil
	}
	result := -1
	err := walk(data, start, end, func(data []byte, tag ber.Tag, start, end int) error {
		if tag == ber.ContextSpecific0Primitive {
			v, err := ber.DecodeSigned[int64](data[start:end])
			if err != nil {
				return fmt.Errorf("%w: context result: %w", ErrInvalidPPDU, err)
			}
			result = int(v)
		}
		return nil
	})
	p.ContextResults = append(p.ContextResults, result)
	return err
}

// parseUserData разбирает fully-encoded-data: берётся первый PDV-list
func (p *PresentationPDU) parseUserData(data []byte, start, end int) error {
	tag, pdvStart, pdvEnd, err := element(data, start, end)
	if err != nil {
		return err
	}
	if tag != ber.SequenceConstructed {
		return fmt.Errorf("%w: PDV-list tag 0x%02x", ErrInvalidPPDU, tag)
	}
	return walk(data, pdvStart, pdvEnd, func(data []byte, tag ber.Tag, start, end int) error {
		switch tag {
		case ber.Integer:
			v, err := ber.DecodeSigned[int64](data[start:end])
			if err != nil {
				return fmt.Errorf("%w: presentation-context-identifier: %w", ErrInvalidPPDU, err)
			}
			p.PresentationContextId = int(v)
		case tagSingleASN1Type:
			p.PresentationDataValuesType = DataValuesSingleASN1
			p.Data, p.DataOffset = data[start:end], start
		case tagOctetAligned:
			p.PresentationDataValuesType = DataValuesOctetString
			p.Data, p.DataOffset = data[start:end], start
		case tagArbitrary, tagArbitraryConstructed:
			p.PresentationDataValuesType = DataValuesArbitrary
			p.Data, p.DataOffset = data[start:end], start
		}
		return nil
	})
}

// element читает заголовок элемента в позиции pos, не выходя за end
func element(data []byte, pos, end int) (ber.Tag, int, int, error) {
	c := ber.NewCursor(data[:end]).At(pos)
	h, l, contentStart, err := ber.DecodeHeader(c)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %w", ErrInvalidPPDU, err)
	}
	if !l.Definite() {
		return 0, 0, 0, fmt.Errorf("%w: indefinite length at %d", ErrInvalidPPDU, pos)
	}
	contentEnd := contentStart + int(l)
	if contentEnd > end {
		return 0, 0, 0, fmt.Errorf("%w: element at %d overruns its parent: %w", ErrInvalidPPDU, pos, ber.ErrTruncated)
	}
	tag, _ := h.Short()
	return tag, contentStart, contentEnd, nil
}

// walk обходит элементы в диапазоне [pos, end)
func walk(data []byte, pos, end int, fn func(data []byte, tag ber.Tag, start, end int) error) error {
	for pos < end {
		tag, start, next, err := element(data, pos, end)
		if err != nil {
			return err
		}
		if err := fn(data, tag, start, next); err != nil {
			return err
		}
		pos = next
	}
	return nil
}
