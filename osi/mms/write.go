package mms

import (
	"fmt"

	"github.com/slonegd/otdissect/osi/mms/variant"
)

// WriteRequest представляет MMS Write Request
//
//	Write-Request ::= SEQUENCE {
//	  variableAccessSpecification VariableAccessSpecification,
//	  listOfData [0] IMPLICIT SEQUENCE OF Data
//	}
type WriteRequest struct {
	InvokeID  uint32
	Variables []VariableRef
	ListName  string
	Data      []*variant.Variant
}

// WriteResponse результаты записи. Успешная запись не несёт значения.
type WriteResponse struct {
	InvokeID uint32
	Results  []AccessResult
}

// Report представляет unconfirmed InformationReport
type Report struct {
	Variables []VariableRef
	ListName  string
	Results   []AccessResult
}

// WriteRequest возвращает параметры запроса write
func (p *PDU) WriteRequest() (*WriteRequest, error) {
	svc, err := p.service(KindConfirmedRequest, Write)
	if err != nil {
		return nil, err
	}
	r := &WriteRequest{InvokeID: p.InvokeID}
	r.Variables, r.ListName = variableAccess(svc.Field("variableAccessSpecification"))
	if list := svc.Field("listOfData"); list != nil {
		for i, item := range list.Children {
			value, err := DataValue(item)
			if err != nil {
				return nil, fmt.Errorf("data %d: %w", i, err)
			}
			r.Data = append(r.Data, value)
		}
	}
	return r, nil
}

// WriteResponse возвращает результаты ответа write
func (p *PDU) WriteResponse() (*WriteResponse, error) {
	svc, err := p.service(KindConfirmedResponse, Write)
	if err != nil {
		return nil, err
	}
	results, err := accessResults(svc)
	if err != nil {
		return nil, err
	}
	return &WriteResponse{InvokeID: p.InvokeID, Results: results}, nil
}

// Report возвращает содержимое InformationReport
func (p *PDU) Report() (*Report, error) {
	svc, err := p.service(KindUnconfirmed, InformationReport)
	if err != nil {
		return nil, err
	}
	r := &Report{}
	r.Variables, r.ListName = variableAccess(svc.Field("variableAccessSpecification"))
	r.Results, err = accessResults(svc.Field("listOfAccessResult"))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *WriteResponse) String() string {
	return fmt.Sprintf("WriteResponse{InvokeID: %d, Results: %s}", r.InvokeID, formatResults(r.Results))
}

func (r *Report) String() string {
	name := r.ListName
	if name == "" && len(r.Variables) > 0 {
		name = r.Variables[0].String()
	}
	return fmt.Sprintf("InformationReport{%s: %s}", name, formatResults(r.Results))
}
