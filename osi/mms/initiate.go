package mms

import (
	"fmt"
	"strings"

	"github.com/slonegd/otdissect/ber"
)

// InitiateRequest содержит параметры из MMS Initiate Request PDU
type InitiateRequest struct {
	// LocalDetailCalling - максимальный размер PDU (в байтах), предложенный клиентом
	LocalDetailCalling *uint32
	// ProposedMaxServOutstandingCalling - максимальное количество одновременных запросов от клиента
	ProposedMaxServOutstandingCalling uint32
	// ProposedMaxServOutstandingCalled - максимальное количество одновременных запросов к клиенту
	ProposedMaxServOutstandingCalled uint32
	// ProposedDataStructureNestingLevel - максимальный уровень вложенности структур данных
	ProposedDataStructureNestingLevel *uint32
	// ProposedVersionNumber - версия протокола MMS
	ProposedVersionNumber uint32
	// ProposedParameterCBB - поддерживаемые параметры (слайс битов)
	ProposedParameterCBB []ParameterCBBBit
	// ServicesSupportedCalling - поддерживаемые услуги (слайс битов)
	ServicesSupportedCalling []Service
}

// InitiateResponse содержит параметры из MMS Initiate Response PDU
type InitiateResponse struct {
	// LocalDetailCalled - максимальный размер PDU (в байтах), согласованный сервером
	LocalDetailCalled *uint32
	// NegotiatedMaxServOutstandingCalling - максимальное количество одновременных запросов от клиента, согласованное сервером
	NegotiatedMaxServOutstandingCalling uint32
	// NegotiatedMaxServOutstandingCalled - максимальное количество одновременных запросов к серверу, согласованное сервером
	NegotiatedMaxServOutstandingCalled uint32
	// NegotiatedDataStructureNestingLevel - максимальный уровень вложенности структур данных, согласованный сервером
	NegotiatedDataStructureNestingLevel *uint32
	// NegotiatedVersionNumber - версия протокола MMS, согласованная сервером
	NegotiatedVersionNumber uint32
	// NegotiatedParameterCBB - поддерживаемые параметры, согласованные сервером (слайс битов)
	NegotiatedParameterCBB []ParameterCBBBit
	// ServicesSupportedCalled - поддерживаемые услуги, согласованные сервером (слайс битов)
	ServicesSupportedCalled []Service
}

// InitiateRequest возвращает параметры initiate-RequestPDU
func (p *PDU) InitiateRequest() (*InitiateRequest, error) {
	if p.Kind != KindInitiateRequest {
		return nil, fmt.Errorf("%w: %s is not an initiate request", ErrNotApplicable, p.Kind)
	}
	body := p.Body()
	detail := body.Field("mmsInitRequestDetail")
	if detail == nil {
		return nil, fmt.Errorf("mms: initiate request without mmsInitRequestDetail")
	}
	return &InitiateRequest{
		LocalDetailCalling:                optionalUint32(body.Field("localDetailCalling")),
		ProposedMaxServOutstandingCalling: uint32Of(body.Field("proposedMaxServOutstandingCalling")),
		ProposedMaxServOutstandingCalled:  uint32Of(body.Field("proposedMaxServOutstandingCalled")),
		ProposedDataStructureNestingLevel: optionalUint32(body.Field("proposedDataStructureNestingLevel")),
		ProposedVersionNumber:             uint32Of(detail.Field("proposedVersionNumber")),
		ProposedParameterCBB:              parameterCBB(detail.Field("proposedParameterCBB")),
		ServicesSupportedCalling:          servicesSupported(detail.Field("servicesSupportedCalling")),
	}, nil
}

// InitiateResponse возвращает параметры initiate-ResponsePDU
func (p *PDU) InitiateResponse() (*InitiateResponse, error) {
	if p.Kind != KindInitiateResponse {
		return nil, fmt.Errorf("%w: %s is not an initiate response", ErrNotApplicable, p.Kind)
	}
	body := p.Body()
	detail := body.Field("mmsInitResponseDetail")
	if detail == nil {
		return nil, fmt.Errorf("mms: initiate response without mmsInitResponseDetail")
	}
	return &InitiateResponse{
		LocalDetailCalled:                   optionalUint32(body.Field("localDetailCalled")),
		NegotiatedMaxServOutstandingCalling: uint32Of(body.Field("negotiatedMaxServOutstandingCalling")),
		NegotiatedMaxServOutstandingCalled:  uint32Of(body.Field("negotiatedMaxServOutstandingCalled")),
		NegotiatedDataStructureNestingLevel: optionalUint32(body.Field("negotiatedDataStructureNestingLevel")),
		NegotiatedVersionNumber:             uint32Of(detail.Field("negotiatedVersionNumber")),
		NegotiatedParameterCBB:              parameterCBB(detail.Field("negotiatedParameterCBB")),
		ServicesSupportedCalled:             servicesSupported(detail.Field("servicesSupportedCalled")),
	}, nil
}

func uint32Of(v *ber.Value) uint32 {
	if v == nil || v.Int < 0 {
		return 0
	}
	return uint32(v.Int)
}

func optionalUint32(v *ber.Value) *uint32 {
	if v == nil {
		return nil
	}
	n := uint32Of(v)
	return &n
}

func parameterCBB(v *ber.Value) []ParameterCBBBit {
	if v == nil {
		return nil
	}
	var bits []ParameterCBBBit
	for _, offset := range v.Bits.Offsets() {
		if offset <= uint(Cei) {
			bits = append(bits, ParameterCBBBit(offset))
		}
	}
	return bits
}

func servicesSupported(v *ber.Value) []Service {
	if v == nil {
		return nil
	}
	var services []Service
	for _, offset := range v.Bits.Offsets() {
		if offset <= uint(Cancel) {
			services = append(services, Service(offset))
		}
	}
	return services
}

func optionalString(name string, v *uint32) string {
	if v == nil {
		return name + ":<nil>"
	}
	return fmt.Sprintf("%s:%d", name, *v)
}

func bitList[T fmt.Stringer](name string, bits []T) string {
	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = bit.String()
	}
	return fmt.Sprintf("%s:[%s]", name, strings.Join(names, " "))
}

// String выводит списки установленных битов, остальные поля как при %+v
func (r *InitiateRequest) String() string {
	parts := []string{
		optionalString("LocalDetailCalling", r.LocalDetailCalling),
		fmt.Sprintf("ProposedMaxServOutstandingCalling:%d", r.ProposedMaxServOutstandingCalling),
		fmt.Sprintf("ProposedMaxServOutstandingCalled:%d", r.ProposedMaxServOutstandingCalled),
		optionalString("ProposedDataStructureNestingLevel", r.ProposedDataStructureNestingLevel),
		fmt.Sprintf("ProposedVersionNumber:%d", r.ProposedVersionNumber),
		bitList("ProposedParameterCBB", r.ProposedParameterCBB),
		bitList("ServicesSupportedCalling", r.ServicesSupportedCalling),
	}
	return fmt.Sprintf("InitiateRequest{%s}", strings.Join(parts, " "))
}

// String выводит списки установленных битов, остальные поля как при %+v
func (r *InitiateResponse) String() string {
	parts := []string{
		optionalString("LocalDetailCalled", r.LocalDetailCalled),
		fmt.Sprintf("NegotiatedMaxServOutstandingCalling:%d", r.NegotiatedMaxServOutstandingCalling),
		fmt.Sprintf("NegotiatedMaxServOutstandingCalled:%d", r.NegotiatedMaxServOutstandingCalled),
		optionalString("NegotiatedDataStructureNestingLevel", r.NegotiatedDataStructureNestingLevel),
		fmt.Sprintf("NegotiatedVersionNumber:%d", r.NegotiatedVersionNumber),
		bitList("NegotiatedParameterCBB", r.NegotiatedParameterCBB),
		bitList("ServicesSupportedCalled", r.ServicesSupportedCalled),
	}
	return fmt.Sprintf("InitiateResponse{%s}", strings.Join(parts, " "))
}
