package mms

import (
	"fmt"
	"strings"
	"time"
)

// Namespace пространство invokeID. Cancel-RequestPDU несёт invokeID
// отменяемого запроса, поэтому его транзакции учитываются отдельно.
type Namespace uint8

const (
	NamespaceConfirmed Namespace = iota
	NamespaceCancel
)

func (n Namespace) String() string {
	if n == NamespaceCancel {
		return "cancel"
	}
	return "confirmed"
}

// Flags отметки об аномалиях транзакции
type Flags uint8

const (
	// Superseded запрос пришёл, пока предыдущий с тем же invokeID ждал ответа
	Superseded Flags = 1 << iota
	// Unmatched ответ без запроса
	Unmatched
	// Duplicate повторный ответ на уже закрытую транзакцию
	Duplicate
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

func (f Flags) String() string {
	var parts []string
	if f.Has(Superseded) {
		parts = append(parts, "superseded")
	}
	if f.Has(Unmatched) {
		parts = append(parts, "unmatched")
	}
	if f.Has(Duplicate) {
		parts = append(parts, "duplicate")
	}
	return strings.Join(parts, ",")
}

// Transaction запись о паре запрос-ответ
type Transaction struct {
	Namespace Namespace
	InvokeID  uint32

	Service    Service
	HasService bool
	Class      Class

	HasRequest   bool
	RequestFrame uint64
	RequestTime  time.Time

	HasResponse   bool
	ResponseFrame uint64
	ResponseTime  time.Time
	Latency       time.Duration

	Flags Flags
	// Supersedes кадр запроса, который ждал ответа, когда пришёл этот
	Supersedes uint64
	// DuplicateOf кадр ответа, уже закрывшего транзакцию
	DuplicateOf uint64
}

func (t *Transaction) String() string {
	var sb strings.Builder
	if t.HasRequest {
		fmt.Fprintf(&sb, "request=#%d", t.RequestFrame)
	}
	if t.HasResponse {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "response=#%d latency=%s", t.ResponseFrame, t.Latency)
	}
	if t.Flags != 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("[" + t.Flags.String() + "]")
	}
	return sb.String()
}

type txKey struct {
	ns Namespace
	id uint32
}

type frameKey struct {
	ns    Namespace
	id    uint32
	frame uint64
}

// TransactionTable связывает запросы и ответы одного соединения.
//
// Повторная обработка того же кадра возвращает ту же запись, пока
// транзакция не вытеснена следующим запросом с тем же invokeID. Для
// каждого invokeID помнятся кадры только текущей транзакции и последнего
// ответа без пары. Таблица не потокобезопасна: одно соединение
// разбирается последовательно.
type TransactionTable struct {
	current map[txKey]*Transaction
	byFrame map[frameKey]*Transaction
	// stray последний Unmatched или Duplicate ответ по invokeID
	stray map[txKey]uint64
}

func NewTransactionTable() *TransactionTable {
	return &TransactionTable{
		current: make(map[txKey]*Transaction),
		byFrame: make(map[frameKey]*Transaction),
		stray:   make(map[txKey]uint64),
	}
}

// forget удаляет кадры вытесненной транзакции
func (t *TransactionTable) forget(key txKey, tx *Transaction) {
	if tx.HasRequest {
		delete(t.byFrame, frameKey{key.ns, key.id, tx.RequestFrame})
	}
	if tx.HasResponse {
		delete(t.byFrame, frameKey{key.ns, key.id, tx.ResponseFrame})
	}
	if frame, ok := t.stray[key]; ok {
		delete(t.byFrame, frameKey{key.ns, key.id, frame})
		delete(t.stray, key)
	}
}

// addStray запоминает ответ без пары вместо предыдущего
func (t *TransactionTable) addStray(fk frameKey, tx *Transaction) {
	key := txKey{fk.ns, fk.id}
	if frame, ok := t.stray[key]; ok {
		delete(t.byFrame, frameKey{fk.ns, fk.id, frame})
	}
	t.stray[key] = fk.frame
	t.byFrame[fk] = tx
}

// Request учитывает запрос с invokeID, пришедший в кадре frame
func (t *TransactionTable) Request(ns Namespace, invokeID uint32, frame Frame) *Transaction {
	fk := frameKey{ns, invokeID, frame.Number}
	if tx, ok := t.byFrame[fk]; ok {
		return tx
	}
	key := txKey{ns, invokeID}
	tx := &Transaction{
		Namespace:    ns,
		InvokeID:     invokeID,
		HasRequest:   true,
		RequestFrame: frame.Number,
		RequestTime:  frame.Time,
	}
	if prev, ok := t.current[key]; ok {
		if prev.HasRequest && !prev.HasResponse {
			tx.Flags |= Superseded
			tx.Supersedes = prev.RequestFrame
		}
		t.forget(key, prev)
	}
	t.current[key] = tx
	t.byFrame[fk] = tx
	return tx
}

// Response учитывает ответ на invokeID, пришедший в кадре frame
func (t *TransactionTable) Response(ns Namespace, invokeID uint32, frame Frame) *Transaction {
	fk := frameKey{ns, invokeID, frame.Number}
	if tx, ok := t.byFrame[fk]; ok {
		return tx
	}
	key := txKey{ns, invokeID}
	cur, ok := t.current[key]
	switch {
	case !ok:
		tx := &Transaction{
			Namespace:     ns,
			InvokeID:      invokeID,
			HasResponse:   true,
			ResponseFrame: frame.Number,
			ResponseTime:  frame.Time,
			Flags:         Unmatched,
		}
		t.addStray(fk, tx)
		return tx
	case cur.HasResponse:
		tx := &Transaction{
			Namespace:     ns,
			InvokeID:      invokeID,
			Service:       cur.Service,
			HasService:    cur.HasService,
			Class:         cur.Class,
			HasResponse:   true,
			ResponseFrame: frame.Number,
			ResponseTime:  frame.Time,
			Flags:         Duplicate,
			DuplicateOf:   cur.ResponseFrame,
		}
		t.addStray(fk, tx)
		return tx
	}
	cur.HasResponse = true
	cur.ResponseFrame = frame.Number
	cur.ResponseTime = frame.Time
	if !cur.RequestTime.IsZero() && !frame.Time.IsZero() {
		cur.Latency = frame.Time.Sub(cur.RequestTime)
	}
	t.byFrame[fk] = cur
	return cur
}

// Lookup возвращает текущую запись для invokeID
func (t *TransactionTable) Lookup(ns Namespace, invokeID uint32) (*Transaction, bool) {
	tx, ok := t.current[txKey{ns, invokeID}]
	return tx, ok
}

// Pending возвращает количество запросов без ответа
func (t *TransactionTable) Pending() int {
	n := 0
	for _, tx := range t.current {
		if !tx.HasResponse {
			n++
		}
	}
	return n
}

// Len возвращает количество текущих записей
func (t *TransactionTable) Len() int {
	return len(t.current)
}
