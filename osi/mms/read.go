package mms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/osi/mms/variant"
)

// ErrNotApplicable возвращается представлением, если PDU несёт другую услугу
var ErrNotApplicable = errors.New("mms: PDU does not carry this service")

// VariableRef имя переменной из VariableAccessSpecification
type VariableRef struct {
	Scope    ObjectScope
	DomainID string
	ItemID   string
}

func (r VariableRef) String() string {
	if r.Scope == ScopeDomain {
		return r.DomainID + "/" + r.ItemID
	}
	return r.ItemID
}

// ReadRequest представляет MMS Read Request
//
//	Read-Request ::= SEQUENCE {
//	  specificationWithResult [0] IMPLICIT BOOLEAN DEFAULT FALSE,
//	  variableAccessSpecification [1] VariableAccessSpecification
//	}
type ReadRequest struct {
	InvokeID                uint32
	SpecificationWithResult bool
	// Variables заполнено для listOfVariable, ListName для variableListName
	Variables []VariableRef
	ListName  string
}

// ReadResponse представляет MMS Read Response PDU
//
//	Read-Response ::= SEQUENCE {
//	  variableAccessSpecification [0] VariableAccessSpecification OPTIONAL,
//	  listOfAccessResult [1] IMPLICIT SEQUENCE OF AccessResult
//	}
//
//	AccessResult ::= CHOICE {
//	  failure [0] IMPLICIT DataAccessError,
//	  success Data
//	}
type ReadResponse struct {
	InvokeID           uint32
	ListOfAccessResult []AccessResult
}

// AccessResult представляет результат доступа к переменной
type AccessResult struct {
	Success bool
	Value   *variant.Variant // Типизированное значение MMS Data
	Error   *DataAccessError
}

// DataAccessErrorCode представляет код ошибки доступа к данным MMS
// Значения согласно ISO/IEC 9506-2 (MMS) и ASN.1 определению DataAccessError
type DataAccessErrorCode uint32

const (
	// ObjectInvalidated объект был инвалидирован
	ObjectInvalidated DataAccessErrorCode = 0
	// HardwareFault ошибка оборудования
	HardwareFault DataAccessErrorCode = 1
	// TemporarilyUnavailable объект временно недоступен
	TemporarilyUnavailable DataAccessErrorCode = 2
	// ObjectAccessDenied доступ к объекту запрещен
	ObjectAccessDenied DataAccessErrorCode = 3
	// ObjectUndefined объект не определен
	ObjectUndefined DataAccessErrorCode = 4
	// InvalidAddress неверный адрес
	InvalidAddress DataAccessErrorCode = 5
	// TypeUnsupported тип не поддерживается
	TypeUnsupported DataAccessErrorCode = 6
	// TypeInconsistent тип не согласован
	TypeInconsistent DataAccessErrorCode = 7
	// ObjectAttributeInconsistent атрибуты объекта не согласованы
	ObjectAttributeInconsistent DataAccessErrorCode = 8
	// ObjectAccessUnsupported доступ к объекту не поддерживается
	ObjectAccessUnsupported DataAccessErrorCode = 9
	// ObjectNonExistent объект не существует
	ObjectNonExistent DataAccessErrorCode = 10
	// ObjectValueInvalid значение объекта неверно
	ObjectValueInvalid DataAccessErrorCode = 11
)

var dataAccessErrorNames = [...]string{
	"object-invalidated", "hardware-fault", "temporarily-unavailable",
	"object-access-denied", "object-undefined", "invalid-address",
	"type-unsupported", "type-inconsistent", "object-attribute-inconsistent",
	"object-access-unsupported", "object-non-existent", "object-value-invalid",
}

// String возвращает строковое представление кода ошибки
func (c DataAccessErrorCode) String() string {
	if int(c) < len(dataAccessErrorNames) {
		return dataAccessErrorNames[c]
	}
	return fmt.Sprintf("unknown-error-code-%d", c)
}

// DataAccessError представляет ошибку доступа к данным
type DataAccessError struct {
	ErrorCode DataAccessErrorCode
}

// String возвращает строковое представление ошибки доступа к данным
func (e *DataAccessError) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.ErrorCode.String()
}

// ReadRequest возвращает параметры запроса read
func (p *PDU) ReadRequest() (*ReadRequest, error) {
	svc, err := p.service(KindConfirmedRequest, Read)
	if err != nil {
		return nil, err
	}
	r := &ReadRequest{InvokeID: p.InvokeID}
	if f := svc.Field("specificationWithResult"); f != nil {
		r.SpecificationWithResult = f.Bool
	}
	r.Variables, r.ListName = variableAccess(svc.Field("variableAccessSpecification"))
	return r, nil
}

// ReadResponse возвращает результаты ответа read
func (p *PDU) ReadResponse() (*ReadResponse, error) {
	svc, err := p.service(KindConfirmedResponse, Read)
	if err != nil {
		return nil, err
	}
	results, err := accessResults(svc.Field("listOfAccessResult"))
	if err != nil {
		return nil, err
	}
	return &ReadResponse{InvokeID: p.InvokeID, ListOfAccessResult: results}, nil
}

// service возвращает параметры услуги s, если PDU вида kind её несёт
func (p *PDU) service(kind PDUKind, s Service) (*ber.Value, error) {
	if p.Kind != kind || !p.HasService || p.Service != s {
		return nil, fmt.Errorf("%w: want %s %s, got %s", ErrNotApplicable, kind, s, p)
	}
	svc := p.ServiceValue()
	if svc == nil {
		return nil, fmt.Errorf("mms: %s: no service parameters", s)
	}
	return svc, nil
}

// variableAccess читает VariableAccessSpecification: список переменных или
// имя именованного списка
func variableAccess(v *ber.Value) ([]VariableRef, string) {
	sel := unwrapExplicit(v).Selected()
	if sel == nil {
		return nil, ""
	}
	switch sel.Name {
	case "listOfVariable":
		vars := make([]VariableRef, 0, len(sel.Children))
		for _, variable := range sel.Children {
			spec := variable.Field("variableSpecification").Selected()
			if spec == nil || spec.Name != "name" {
				continue
			}
			scope, domain, item := objectNameParts(spec)
			vars = append(vars, VariableRef{Scope: scope, DomainID: domain, ItemID: item})
		}
		return vars, ""
	case "variableListName":
		return nil, FormatObjectName(sel)
	}
	return nil, ""
}

func unwrapExplicit(v *ber.Value) *ber.Value {
	for v != nil && v.Kind == ber.KindExplicit {
		if len(v.Children) == 0 {
			return nil
		}
		v = v.Children[0]
	}
	return v
}

// accessResults читает SEQUENCE OF AccessResult
func accessResults(list *ber.Value) ([]AccessResult, error) {
	if list == nil {
		return nil, nil
	}
	results := make([]AccessResult, 0, len(list.Children))
	for i, item := range list.Children {
		sel := item.Selected()
		if sel == nil {
			return nil, fmt.Errorf("mms: access result %d is empty", i)
		}
		if sel.Name == "failure" {
			results = append(results, AccessResult{
				Error: &DataAccessError{ErrorCode: DataAccessErrorCode(sel.Int)},
			})
			continue
		}
		if sel.Kind == ber.KindNull {
			results = append(results, AccessResult{Success: true})
			continue
		}
		value, err := DataValue(sel)
		if err != nil {
			return nil, fmt.Errorf("access result %d: %w", i, err)
		}
		results = append(results, AccessResult{Success: true, Value: value})
	}
	return results, nil
}

func formatResults(results []AccessResult) string {
	if len(results) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(results))
	for i, result := range results {
		switch {
		case !result.Success && result.Error != nil:
			parts = append(parts, fmt.Sprintf("Result[%d]: Error(%s)", i, result.Error.ErrorCode))
		case !result.Success:
			parts = append(parts, fmt.Sprintf("Result[%d]: Error(<nil>)", i))
		case result.Value == nil:
			parts = append(parts, fmt.Sprintf("Result[%d]: success", i))
		case result.Value.Type() == variant.UTCTime:
			parts = append(parts, fmt.Sprintf("Result[%d]: %s", i, result.Value.Time().Format(time.RFC3339Nano)))
		default:
			parts = append(parts, fmt.Sprintf("Result[%d]: %s", i, result.Value))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// String возвращает строковое представление ReadResponse
func (r *ReadResponse) String() string {
	return fmt.Sprintf("ReadResponse{InvokeID: %d, Results: %s}", r.InvokeID, formatResults(r.ListOfAccessResult))
}

func (r *ReadRequest) String() string {
	if r.ListName != "" {
		return fmt.Sprintf("ReadRequest{InvokeID: %d, List: %s}", r.InvokeID, r.ListName)
	}
	names := make([]string, len(r.Variables))
	for i, v := range r.Variables {
		names[i] = v.String()
	}
	return fmt.Sprintf("ReadRequest{InvokeID: %d, Variables: [%s]}", r.InvokeID, strings.Join(names, " "))
}
