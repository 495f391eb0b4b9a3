// Package dissect собирает уровни OSI, MMS и C12.22 в один конвейер разбора
// захваченных сообщений.
package dissect

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slonegd/otdissect/c1222"
	"github.com/slonegd/otdissect/capture"
	"github.com/slonegd/otdissect/logger"
	"github.com/slonegd/otdissect/osi/acse"
	"github.com/slonegd/otdissect/osi/cotp"
	"github.com/slonegd/otdissect/osi/mms"
	"github.com/slonegd/otdissect/osi/presentation"
	"github.com/slonegd/otdissect/osi/session"
)

// Имена маршрутов capture, которые понимает Handle
const (
	RouteMMS   = "mms"
	RouteC1222 = "c1222"
)

var (
	ErrUnknownRoute = errors.New("dissect: unknown route")
	// ErrEmptyPDV значение PDV нулевой длины
	ErrEmptyPDV = errors.New("empty presentation data value")
)

// Config настройки конвейера
type Config struct {
	// MaxDepth предел вложенности BER
	MaxDepth int
	// TransactionTTL время жизни таблицы транзакций простаивающего соединения
	TransactionTTL time.Duration
	// MaxMessageSize предел пересборки COTP, 0 - по умолчанию
	MaxMessageSize int
	Envelope       c1222.Config
}

// Option опция Pipeline
type Option func(*Pipeline)

// WithLogger устанавливает логгер
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// connState состояние соединения MMS
type connState struct {
	// reassemblers по направлениям capture.Direction
	reassemblers [2]*cotp.Reassembler
	// контексты представления из CP-type, 0 если не видели
	acseContext int
	mmsContext  int
}

// Pipeline разбирает сообщения MMS (TPKT/COTP/сеанс/представление/ACSE)
// и C12.22. Безопасен для использования из нескольких горутин, но
// сообщения одного соединения должны приходить по порядку.
type Pipeline struct {
	cfg        Config
	log        logger.Logger
	dispatcher *mms.Dispatcher
	tracker    *mms.Tracker
	envelope   *c1222.Envelope

	mu    sync.Mutex
	conns map[string]*connState
}

// New создаёт Pipeline
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		log:   logger.Nop(),
		conns: make(map[string]*connState),
	}
	for _, opt := range opts {
		opt(p)
	}

	dispatcherOpts := []mms.Option{mms.WithLogger(logger.With(p.log, "layer", "mms"))}
	if cfg.MaxDepth > 0 {
		dispatcherOpts = append(dispatcherOpts, mms.WithMaxDepth(cfg.MaxDepth))
	}
	p.dispatcher = mms.NewDispatcher(dispatcherOpts...)
	p.tracker = mms.NewTracker(cfg.TransactionTTL, logger.With(p.log, "layer", "transactions"))
	p.envelope = c1222.NewEnvelope(cfg.Envelope)
	return p
}

// Handle разбирает сообщение, выделенное capture.Assembler
func (p *Pipeline) Handle(m capture.Message) (*Record, error) {
	frame := Frame{Number: m.Frame, Time: m.Time, ReportedLength: m.ReportedLength}
	switch m.Route {
	case RouteMMS:
		return p.HandleMMSStream(m.Conn, m.Dir, frame, m.Payload), nil
	case RouteC1222:
		return p.HandleC1222(m.Conn, m.Dir, frame, m.Payload), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRoute, m.Route)
}

// Connections возвращает количество соединений MMS с сохранённым состоянием
func (p *Pipeline) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Transactions возвращает количество соединений с таблицами транзакций
func (p *Pipeline) Transactions() int {
	return p.tracker.Len()
}

// Close забывает состояние соединения conn
func (p *Pipeline) Close(conn string) {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	p.tracker.Close(conn)
}

func (p *Pipeline) conn(conn string) *connState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.conns[conn]
	if !ok {
		st = &connState{}
		for i := range st.reassemblers {
			opts := []cotp.ReassemblerOption{cotp.WithLogger(logger.With(p.log, "conn", conn))}
			if p.cfg.MaxMessageSize > 0 {
				opts = append(opts, cotp.WithMaxMessageSize(p.cfg.MaxMessageSize))
			}
			st.reassemblers[i] = cotp.NewReassembler(opts...)
		}
		p.conns[conn] = st
	}
	return st
}

// HandleMMSStream разбирает один TPKT соединения MMS. Для DT без признака
// EOT возвращается запись с Pending: фрагмент ждёт остальных. Если захват
// обрезал TPKT (frame.ReportedLength), разбор доходит до MMS и та сообщает
// об усечении.
func (p *Pipeline) HandleMMSStream(conn string, dir capture.Direction, frame Frame, tpkt []byte) *Record {
	rec := &Record{Protocol: ProtocolMMS, Conn: conn, Dir: dir, Frame: frame}
	if frame.ReportedLength > len(tpkt) {
		rec.missing = frame.ReportedLength - len(tpkt)
	}

	tp, err := cotp.ParseTruncatedTPKT(tpkt, frame.ReportedLength)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.layer("TPKT")

	tpdu, err := cotp.ParseCOTP(tp.Data)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.layer("COTP " + tpdu.Type.String())

	switch tpdu.Type {
	case cotp.COTPTypeData:
	case cotp.COTPTypeDisconnectRequest, cotp.COTPTypeDisconnectConfirm:
		p.Close(conn)
		return rec
	default:
		return rec
	}

	if !tpdu.IsLastDataUnit && rec.truncated("DT fragment") {
		return rec
	}

	st := p.conn(conn)
	msg, err := st.reassemblers[dir&1].Add(tpdu)
	if err != nil {
		rec.Err = err
		return rec
	}
	if msg == nil {
		rec.Pending = !rec.truncated("COTP DT")
		return rec
	}
	p.session(rec, st, msg)
	return rec
}

func (p *Pipeline) session(rec *Record, st *connState, data []byte) {
	spdu, err := session.ParseSessionSPDU(data)
	if spdu == nil || err != nil {
		rec.Err = err
		return
	}
	rec.layer("SES " + spdu.Type.String())

	switch spdu.Type {
	case session.SessionSPDUTypeDisconnect, session.SessionSPDUTypeAbort:
		defer p.Close(rec.Conn)
	}
	if len(spdu.Data) == 0 {
		rec.truncated("SES " + spdu.Type.String())
		return
	}
	p.presentation(rec, st, spdu.Data)
}

func (p *Pipeline) presentation(rec *Record, st *connState, data []byte) {
	ppdu, err := presentation.ParseTruncatedPresentationPDU(data, len(data)+rec.missing)
	if ppdu == nil {
		rec.Err = err
		return
	}
	rec.layer(ppdu.Type.String())
	if ppdu.Type == presentation.CP {
		p.mu.Lock()
		st.acseContext, st.mmsContext = ppdu.AcseContextId, ppdu.MmsContextId
		p.mu.Unlock()
	}
	if err != nil {
		if !errors.Is(err, presentation.ErrNoUserData) {
			rec.Err = err
			return
		}
		rec.truncated(ppdu.Type.String())
		return
	}
	if ppdu.Data == nil {
		rec.truncated(ppdu.Type.String())
		return
	}
	if len(ppdu.Data) == 0 {
		rec.Err = fmt.Errorf("dissect: %s: %w", ppdu.Type, ErrEmptyPDV)
		return
	}

	if p.isACSE(st, ppdu) {
		p.acse(rec, ppdu.Data)
		return
	}
	p.mms(rec, ppdu.Data)
}

// isACSE определяет синтаксис PDV: установление связи всегда несёт ACSE,
// в TD контекст сверяется с CP-type, а без него с тегом APDU.
func (p *Pipeline) isACSE(st *connState, ppdu *presentation.PresentationPDU) bool {
	if ppdu.Type != presentation.TD {
		return true
	}
	if len(ppdu.Data) == 0 {
		return false
	}
	p.mu.Lock()
	acseContext, mmsContext := st.acseContext, st.mmsContext
	p.mu.Unlock()

	switch id := ppdu.PresentationContextId; {
	case mmsContext != 0 && id == mmsContext:
		return false
	case acseContext != 0 && id == acseContext:
		return true
	}
	switch acse.APDUType(ppdu.Data[0]) {
	case acse.AARQ, acse.AARE, acse.RLRQ, acse.RLRE, acse.ABRT:
		return true
	}
	return false
}

func (p *Pipeline) acse(rec *Record, data []byte) {
	apdu, err := acse.ParseAPDU(data)
	rec.ACSE = apdu
	if apdu == nil {
		rec.Err = err
		return
	}
	rec.layer(apdu.Type.String())
	if err != nil {
		rec.Err = err
		return
	}

	ui, err := apdu.UserData()
	if errors.Is(err, acse.ErrNoUserInfo) {
		return
	}
	if err != nil {
		rec.Err = err
		return
	}
	if ui.Encoding != acse.EncodingSingleASN1 {
		rec.Err = fmt.Errorf("%w: encoding %d", acse.ErrUserInfoInvalid, ui.Encoding)
		return
	}
	p.mms(rec, ui.Data)
}

func (p *Pipeline) mms(rec *Record, data []byte) {
	frame := mms.Frame{Number: rec.Frame.Number, Time: rec.Frame.Time}
	if rec.missing > 0 {
		frame.ReportedLength = len(data) + rec.missing
	}
	pdu, err := p.dispatcher.Decode(data, frame, p.tracker.Table(rec.Conn))
	rec.layer("MMS")
	rec.MMS = pdu
	if err != nil {
		rec.Err = err
	}
}

// HandleC1222 разбирает сообщение C12.22 и открывает его конверт
// безопасности. Усечённое сообщение разбирается до места усечения.
func (p *Pipeline) HandleC1222(conn string, dir capture.Direction, frame Frame, data []byte) *Record {
	rec := &Record{Protocol: ProtocolC1222, Conn: conn, Dir: dir, Frame: frame}

	msg, err := c1222.DecodeMessage(data)
	if msg == nil {
		rec.Err = err
		return rec
	}
	rec.layer("ACSE")
	rec.ACSE = msg.APDU
	rec.C1222 = &C1222{Message: msg}
	if err != nil {
		rec.Err = err
		if frame.ReportedLength > len(data) {
			p.log.Debug("C12.22 frame %d: captured %d of %d bytes", frame.Number, len(data), frame.ReportedLength)
		}
		return rec
	}

	rec.layer("EPSEM")
	res := p.envelope.Open(msg)
	rec.C1222.Envelope = &res
	for _, f := range res.Findings {
		p.log.Debug("C12.22 frame %d: %s", frame.Number, f)
	}
	return rec
}
