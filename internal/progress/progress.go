// Package progress carries progress events from study workers to observers
// such as the log and the WebSocket feed.
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindSimulation   Kind = "simulation"
	KindStudyStarted Kind = "study_started"
	KindStudyDone    Kind = "study_done"
	KindStudySkipped Kind = "study_skipped"
	KindStudyFailed  Kind = "study_failed"
	KindDocket       Kind = "docket"
)

// Event is one progress update. Completed and Total count simulations for
// study events and studies for docket events.
type Event struct {
	Kind      Kind      `json:"kind"`
	Label     string    `json:"label"`
	StudyID   string    `json:"study_id,omitempty"`
	Completed uint64    `json:"completed"`
	Total     uint64    `json:"total"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// Observer consumes events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Bus is a many-producer, one-consumer event channel. Publish never blocks:
// when the buffer is full the event is dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates a bus buffering up to size events.
func NewBus(size int) *Bus {
	if size < 1 {
		size = 1
	}
	return &Bus{ch: make(chan Event, size)}
}

// Publish enqueues e and reports whether it was accepted.
func (b *Bus) Publish(e Event) bool {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}

	select {
	case b.ch <- e:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Events is the consumer side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Dropped counts events discarded because the buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting events. Buffered events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

// Dispatch delivers events to observers until the bus is closed and
// drained or ctx is done.
func (b *Bus) Dispatch(ctx context.Context, observers ...Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.ch:
			if !ok {
				return
			}
			for _, o := range observers {
				o.Observe(e)
			}
		}
	}
}
