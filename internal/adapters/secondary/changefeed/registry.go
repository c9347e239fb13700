// Package changefeed holds the subscriber bookkeeping shared by the change
// feed adapters.
package changefeed

import (
	"fmt"
	"sync"
	"time"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

// Registry maps table names to change handlers. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]func(domain.ChangeEvent)
	nextID uint64
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[uint64]func(domain.ChangeEvent))}
}

// Subscribe registers onChange for table. The returned func may be called
// more than once.
func (r *Registry) Subscribe(table string, onChange func(domain.ChangeEvent)) (func(), error) {
	if table == "" {
		return nil, fmt.Errorf("subscribe: empty table name")
	}
	if onChange == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", table)
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.subs[table] == nil {
		r.subs[table] = make(map[uint64]func(domain.ChangeEvent))
	}
	r.subs[table][id] = onChange
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[table], id)
			if len(r.subs[table]) == 0 {
				delete(r.subs, table)
			}
		})
	}, nil
}

// Dispatch calls every handler of table outside the lock and returns how many
// were called.
func (r *Registry) Dispatch(table string) int {
	handlers := r.handlers(table)
	if len(handlers) == 0 {
		return 0
	}
	ev := domain.ChangeEvent{Table: table, ReceivedAt: time.Now().UTC()}
	for _, h := range handlers {
		h(ev)
	}
	return len(handlers)
}

// NotifyAll dispatches a change for every subscribed table.
func (r *Registry) NotifyAll() {
	for _, table := range r.Tables() {
		r.Dispatch(table)
	}
}

// Tables lists the tables with at least one subscriber.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]string, 0, len(r.subs))
	for table := range r.subs {
		tables = append(tables, table)
	}
	return tables
}

func (r *Registry) handlers(table string) []func(domain.ChangeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]func(domain.ChangeEvent), 0, len(r.subs[table]))
	for _, h := range r.subs[table] {
		out = append(out, h)
	}
	return out
}
