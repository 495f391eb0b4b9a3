package mms

import (
	"fmt"

	"github.com/slonegd/otdissect/ber"
)

// ServiceError содержимое ServiceError из confirmed-ErrorPDU, cancel-ErrorPDU,
// initiate-ErrorPDU и conclude-ErrorPDU
type ServiceError struct {
	// Class имя альтернативы errorClass, например "access"
	Class string
	Code  int64

	AdditionalCode        int64
	HasAdditionalCode     bool
	AdditionalDescription string
}

func (e *ServiceError) Error() string {
	s := fmt.Sprintf("mms service error %s(%d)", e.Class, e.Code)
	if e.HasAdditionalCode {
		s += fmt.Sprintf(" additional code %d", e.AdditionalCode)
	}
	if e.AdditionalDescription != "" {
		s += ": " + e.AdditionalDescription
	}
	return s
}

// Reject содержимое rejectPDU
type Reject struct {
	OriginalInvokeID    uint32
	HasOriginalInvokeID bool
	// PDUType имя альтернативы rejectReason, например "confirmed-requestPDU"
	PDUType string
	Reason  int64
}

func (r *Reject) String() string {
	if r.HasOriginalInvokeID {
		return fmt.Sprintf("Reject{InvokeID: %d, %s: %d}", r.OriginalInvokeID, r.PDUType, r.Reason)
	}
	return fmt.Sprintf("Reject{%s: %d}", r.PDUType, r.Reason)
}

// ServiceError возвращает ошибку из PDU ошибки
func (p *PDU) ServiceError() (*ServiceError, error) {
	var v *ber.Value
	switch p.Kind {
	case KindConfirmedError, KindCancelError:
		v = p.Body().Field("serviceError")
	case KindInitiateError, KindConcludeError:
		v = p.Body()
	default:
		return nil, fmt.Errorf("%w: %s carries no ServiceError", ErrNotApplicable, p.Kind)
	}
	class := v.Field("errorClass").Unwrap()
	if class == nil {
		return nil, fmt.Errorf("mms: %s: no errorClass", p.Kind)
	}
	e := &ServiceError{Class: class.Name, Code: class.Int}
	if f := v.Field("additionalCode"); f != nil {
		e.AdditionalCode, e.HasAdditionalCode = f.Int, true
	}
	if f := v.Field("additionalDescription"); f != nil {
		e.AdditionalDescription = f.Str
	}
	return e, nil
}

// Reject возвращает содержимое rejectPDU
func (p *PDU) Reject() (*Reject, error) {
	if p.Kind != KindReject {
		return nil, fmt.Errorf("%w: %s is not a reject", ErrNotApplicable, p.Kind)
	}
	reason := p.Body().Field("rejectReason").Selected()
	if reason == nil {
		return nil, fmt.Errorf("mms: reject without reason")
	}
	return &Reject{
		OriginalInvokeID:    p.InvokeID,
		HasOriginalInvokeID: p.HasInvokeID,
		PDUType:             reason.Name,
		Reason:              reason.Int,
	}, nil
}
