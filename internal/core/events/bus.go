// Package events is an in-process pub/sub bus for simulation lifecycle events:
// trees loaded or reloaded, failed reloads and finished runs.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type routes an event to its handlers.
type Type string

const (
	TreeLoaded         Type = "tree.loaded"
	TreeReloaded       Type = "tree.reloaded"
	ReloadFailed       Type = "tree.reload_failed"
	SimulationFinished Type = "simulation.finished"
)

// Event is an immutable lifecycle notification.
type Event struct {
	Type      Type
	Source    string
	Timestamp time.Time
	Frame     uint64
	Data      any
}

// TreeChange is the payload of TreeLoaded and TreeReloaded.
type TreeChange struct {
	Root   string
	File   string
	Nodes  int
	Agents int
}

type Handler func(Event) error

// Subscription cancels a handler registration.
type Subscription struct {
	id     uuid.UUID
	typ    Type
	bus    *Bus
	cancel sync.Once
}

func (s *Subscription) ID() uuid.UUID { return s.id }

// Cancel removes the handler. It is safe to call more than once and on nil.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.cancel.Do(func() { s.bus.remove(s) })
}

type entry struct {
	sub     *Subscription
	handler Handler
}

// Bus delivers events synchronously in the publisher's goroutine, to handlers in
// subscription order. Handler errors are joined and returned from Publish.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[Type][]entry
	published uint64
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]entry)}
}

func (b *Bus) Subscribe(typ Type, handler Handler) *Subscription {
	s := &Subscription{id: uuid.New(), typ: typ, bus: b}
	b.mu.Lock()
	b.handlers[typ] = append(b.handlers[typ], entry{sub: s, handler: handler})
	b.mu.Unlock()
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[s.typ]
	for i, e := range list {
		if e.sub == s {
			b.handlers[s.typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish stamps the event when it has no timestamp and delivers it.
func (b *Bus) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.Lock()
	b.published++
	list := b.handlers[e.Type]
	b.mu.Unlock()

	var errs []error
	for _, en := range list {
		if err := en.handler(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Published counts events passed to Publish.
func (b *Bus) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

// Subscribers counts handlers registered for typ.
func (b *Bus) Subscribers(typ Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[typ])
}
