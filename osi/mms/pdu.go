package mms

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/logger"
)

// PDUKind вид MMS PDU, номер альтернативы MMSpdu (теги A0-AD)
type PDUKind int

const (
	KindConfirmedRequest PDUKind = iota
	KindConfirmedResponse
	KindConfirmedError
	KindUnconfirmed
	KindReject
	KindCancelRequest
	KindCancelResponse
	KindCancelError
	KindInitiateRequest
	KindInitiateResponse
	KindInitiateError
	KindConcludeRequest
	KindConcludeResponse
	KindConcludeError
)

var pduKindNames = [...]string{
	KindConfirmedRequest:  "confirmed-RequestPDU",
	KindConfirmedResponse: "confirmed-ResponsePDU",
	KindConfirmedError:    "confirmed-ErrorPDU",
	KindUnconfirmed:       "unconfirmed-PDU",
	KindReject:            "rejectPDU",
	KindCancelRequest:     "cancel-RequestPDU",
	KindCancelResponse:    "cancel-ResponsePDU",
	KindCancelError:       "cancel-ErrorPDU",
	KindInitiateRequest:   "initiate-RequestPDU",
	KindInitiateResponse:  "initiate-ResponsePDU",
	KindInitiateError:     "initiate-ErrorPDU",
	KindConcludeRequest:   "conclude-RequestPDU",
	KindConcludeResponse:  "conclude-ResponsePDU",
	KindConcludeError:     "conclude-ErrorPDU",
}

func (k PDUKind) String() string {
	if k >= 0 && int(k) < len(pduKindNames) {
		return pduKindNames[k]
	}
	return fmt.Sprintf("PDUKind(%d)", int(k))
}

// ErrEmpty возвращается для пустого буфера
var ErrEmpty = errors.New("mms: empty PDU")

// Frame описывает кадр захвата, в котором пришёл PDU
type Frame struct {
	Number uint64
	Time   time.Time
	// ReportedLength длина PDU на проводе, если захват усечён. Ноль
	// означает, что захвачено всё.
	ReportedLength int
}

// PDU результат разбора одного MMS PDU
type PDU struct {
	Kind PDUKind

	InvokeID    uint32
	HasInvokeID bool

	Service    Service
	HasService bool

	// Class рекомендательная классификация IEC 61850
	Class Class

	// Tree дерево разбора, частичное при ошибке
	Tree    *ber.Value
	Context DecodeContext

	// Transaction снимок записи о транзакции на момент разбора. nil для
	// PDU без invokeID или если таблица не передана.
	Transaction *Transaction

	Frame Frame
}

// Body возвращает значение выбранной альтернативы MMSpdu
func (p *PDU) Body() *ber.Value {
	if p == nil {
		return nil
	}
	return p.Tree.Selected()
}

// ServiceValue возвращает разобранные параметры услуги
func (p *PDU) ServiceValue() *ber.Value {
	svc := p.Body().Field("service")
	if svc == nil {
		return nil
	}
	return svc.Selected()
}

func (p *PDU) String() string {
	s := p.Kind.String()
	if p.HasInvokeID {
		s += fmt.Sprintf(" invokeID=%d", p.InvokeID)
	}
	if p.HasService {
		s += " service=" + p.Service.String()
	}
	if p.Class != ClassNone {
		s += " iec61850=" + p.Class.String()
	}
	if p.Transaction != nil {
		s += " " + p.Transaction.String()
	}
	return s
}

// Dispatcher разбирает MMS PDU и связывает запросы с ответами
type Dispatcher struct {
	maxDepth int
	log      logger.Logger
}

// Option настройка Dispatcher
type Option func(*Dispatcher)

// WithMaxDepth задаёт предел вложенности разбора
func WithMaxDepth(depth int) Option {
	return func(d *Dispatcher) {
		d.maxDepth = depth
	}
}

// WithLogger задаёт логгер
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher создаёт диспетчер. Dispatcher не хранит состояния разбора и
// может использоваться из нескольких горутин.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		maxDepth: ber.DefaultMaxDepth,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode разбирает один MMS PDU. Если table не nil, PDU с invokeID
// связываются через неё.
//
// При ошибке возвращается PDU с частичным деревом, если удалось определить
// хотя бы вид PDU.
func (d *Dispatcher) Decode(data []byte, frame Frame, table *TransactionTable) (*PDU, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	c := ber.NewCursor(data)
	if frame.ReportedLength > len(data) {
		c = ber.NewTruncatedCursor(data, frame.ReportedLength)
	}

	dc := &DecodeContext{}
	tree, _, err := ber.Decode(grammar.pdu, c, ber.NewContext(d.maxDepth, dc))
	if tree == nil {
		return nil, fmt.Errorf("mms: %w", err)
	}
	if err != nil {
		err = fmt.Errorf("mms: %w", err)
	}

	pdu := &PDU{Kind: PDUKind(tree.Choice), Tree: tree, Frame: frame}
	pdu.identify(dc)
	pdu.Context = *dc
	pdu.Class = Classify(pdu.Kind, dc)

	if table != nil && pdu.HasInvokeID {
		pdu.correlate(table)
	}

	d.log.Debug("MMS: %s", pdu)
	if err != nil {
		d.log.Debug("MMS: frame %d: %v", frame.Number, err)
	}
	return pdu, err
}

// identify извлекает invokeID и услугу из дерева
func (p *PDU) identify(dc *DecodeContext) {
	body := p.Body()
	switch p.Kind {
	case KindConfirmedRequest, KindConfirmedResponse:
		p.InvokeID, p.HasInvokeID = invokeIDOf(body.Field("invokeID"))
		if svc := body.Field("service"); svc != nil {
			dc.setService(Service(svc.Choice))
		}
	case KindConfirmedError:
		p.InvokeID, p.HasInvokeID = invokeIDOf(body.Field("invokeID"))
	case KindCancelRequest, KindCancelResponse:
		p.InvokeID, p.HasInvokeID = invokeIDOf(body)
	case KindCancelError:
		p.InvokeID, p.HasInvokeID = invokeIDOf(body.Field("originalInvokeID"))
	case KindReject:
		p.InvokeID, p.HasInvokeID = invokeIDOf(body.Field("originalInvokeID"))
	case KindUnconfirmed:
		if svc := body.Field("service"); svc != nil {
			dc.setService(unconfirmedServices[svc.Choice])
		}
	}
	p.Service, p.HasService = dc.Service, dc.HasService
}

var unconfirmedServices = [...]Service{InformationReport, UnsolicitedStatus, EventNotification}

// invokeIDOf читает Unsigned32. Значение, не прочитанное полностью, не
// считается invokeID.
func invokeIDOf(v *ber.Value) (uint32, bool) {
	if v == nil || v.Kind != ber.KindInteger || len(v.Bytes) == 0 || len(v.Bytes) > 5 {
		return 0, false
	}
	if v.Int < 0 || v.Int > math.MaxUint32 {
		return 0, false
	}
	return uint32(v.Int), true
}

// correlate связывает PDU с транзакцией. Reject не связывается: он может
// относиться как к запросу, так и к ответу.
func (p *PDU) correlate(table *TransactionTable) {
	var tx *Transaction
	switch p.Kind {
	case KindConfirmedRequest:
		tx = table.Request(NamespaceConfirmed, p.InvokeID, p.Frame)
		if !tx.HasService && p.HasService {
			tx.Service, tx.HasService = p.Service, true
			tx.Class = p.Class
		}
	case KindConfirmedResponse, KindConfirmedError:
		tx = table.Response(NamespaceConfirmed, p.InvokeID, p.Frame)
	case KindCancelRequest:
		tx = table.Request(NamespaceCancel, p.InvokeID, p.Frame)
	case KindCancelResponse, KindCancelError:
		tx = table.Response(NamespaceCancel, p.InvokeID, p.Frame)
	default:
		return
	}

	// ответ наследует классификацию запроса: в ответе нет имён объектов
	if tx.HasRequest && p.Kind != KindConfirmedRequest && p.Kind != KindCancelRequest {
		if !p.HasService && tx.HasService {
			p.Service, p.HasService = tx.Service, true
		}
		if tx.Class != ClassNone {
			p.Class = tx.Class
		}
	}
	snapshot := *tx
	p.Transaction = &snapshot
}
