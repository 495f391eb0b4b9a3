package mms

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/slonegd/otdissect/logger"
)

// Tracker хранит таблицы транзакций по соединениям. Таблица соединения, к
// которой не обращались дольше idle, удаляется.
type Tracker struct {
	mu     sync.Mutex
	tables *cache.Cache
	log    logger.Logger
}

// NewTracker создаёт Tracker. idle <= 0 отключает устаревание.
func NewTracker(idle time.Duration, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	cleanup := idle / 2
	if idle <= 0 {
		idle = cache.NoExpiration
		cleanup = 0
	}
	t := &Tracker{
		tables: cache.New(idle, cleanup),
		log:    log,
	}
	t.tables.OnEvicted(func(conn string, v any) {
		if tbl, ok := v.(*TransactionTable); ok {
			t.log.Debug("MMS: connection %s dropped, %d pending transactions", conn, tbl.Pending())
		}
	})
	return t
}

// Table возвращает таблицу соединения conn, создавая её при первом обращении
func (t *Tracker) Table(conn string) *TransactionTable {
	t.mu.Lock()
	defer t.mu.Unlock()

	tbl, ok := t.lookup(conn)
	if !ok {
		tbl = NewTransactionTable()
	}
	// каждое обращение продлевает срок жизни
	t.tables.SetDefault(conn, tbl)
	return tbl
}

func (t *Tracker) lookup(conn string) (*TransactionTable, bool) {
	v, ok := t.tables.Get(conn)
	if !ok {
		return nil, false
	}
	tbl, ok := v.(*TransactionTable)
	return tbl, ok
}

// Close забывает соединение conn
func (t *Tracker) Close(conn string) {
	t.tables.Delete(conn)
}

// Len возвращает количество отслеживаемых соединений
func (t *Tracker) Len() int {
	return t.tables.ItemCount()
}

// Flush забывает все соединения
func (t *Tracker) Flush() {
	t.tables.Flush()
}
