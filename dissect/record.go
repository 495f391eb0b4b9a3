package dissect

import (
	"fmt"
	"strings"
	"time"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/c1222"
	"github.com/slonegd/otdissect/capture"
	"github.com/slonegd/otdissect/osi/acse"
	"github.com/slonegd/otdissect/osi/mms"
)

// Protocol прикладной протокол записи
type Protocol uint8

const (
	ProtocolMMS Protocol = iota
	ProtocolC1222
)

func (p Protocol) String() string {
	if p == ProtocolC1222 {
		return "C12.22"
	}
	return "MMS"
}

// Frame кадр захвата, в котором пришло сообщение
type Frame struct {
	Number uint64
	Time   time.Time
	// ReportedLength длина сообщения на проводе, если захват усечён
	ReportedLength int
}

// C1222 результат разбора сообщения C12.22
type C1222 struct {
	Message *c1222.Message
	// Envelope заполнен, только если EPSEM найден
	Envelope *c1222.Result
}

// Record итог разбора одного сообщения
type Record struct {
	Protocol Protocol
	Conn     string
	Dir      capture.Direction
	Frame    Frame

	// Layers разобранные уровни, от внешнего к внутреннему
	Layers []string
	// Pending сегмент DT сохранён до прихода последнего фрагмента
	Pending bool

	ACSE  *acse.APDU
	MMS   *mms.PDU
	C1222 *C1222

	// Err первая ошибка разбора. Уже разобранные уровни сохраняются.
	Err error

	// missing байты TPKT, не попавшие в захват
	missing int
}

func (r *Record) layer(name string) {
	r.Layers = append(r.Layers, name)
}

// truncated отмечает, что данные уровня name не попали в захват целиком
func (r *Record) truncated(name string) bool {
	if r.missing <= 0 {
		return false
	}
	r.Err = fmt.Errorf("dissect: %s: %w", name, ber.ErrTruncated)
	return true
}

func (r *Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s %s %s %s", r.Frame.Number, r.Protocol, r.Conn, r.Dir, strings.Join(r.Layers, "/"))
	switch {
	case r.MMS != nil:
		sb.WriteString(": " + r.MMS.String())
	case r.C1222 != nil:
		if s := r.C1222.summary(); s != "" {
			sb.WriteString(": " + s)
		}
	case r.ACSE != nil:
		sb.WriteString(": " + r.ACSE.Type.String())
	}
	if r.Pending {
		sb.WriteString(" [fragment]")
	}
	if r.Err != nil {
		fmt.Fprintf(&sb, " error: %v", r.Err)
	}
	return sb.String()
}

func (c *C1222) summary() string {
	if c.Envelope == nil || c.Envelope.EPSEM == nil {
		return ""
	}
	ep := c.Envelope.EPSEM
	parts := []string{
		"security=" + ep.Flags.SecurityMode().String(),
		"crypto=" + c.Envelope.Status.String(),
	}
	if ep.Opaque {
		parts = append(parts, "opaque")
	}
	if len(ep.Commands) > 0 {
		names := make([]string, len(ep.Commands))
		for i, cmd := range ep.Commands {
			names[i] = cmd.Name()
		}
		parts = append(parts, "commands=["+strings.Join(names, ", ")+"]")
	}
	for _, f := range c.Envelope.Findings {
		parts = append(parts, "finding: "+f.String())
	}
	return strings.Join(parts, " ")
}
