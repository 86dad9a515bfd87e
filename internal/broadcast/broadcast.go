// Package broadcast fans CUD events out to every subscriber of the
// world they occurred in, per spec §4.4. The subscriber registry is
// grounded on the teacher's xaction/xreg "registry of running things,
// looked up by owner key" shape; each subscriber's drain side is a
// ticking, done-channel-cancelled worker in the manner of
// fs/mpather/jogger.go.
package broadcast

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
)

// EventKind tags a broadcast event's payload shape.
type EventKind int

const (
	EventCreateObject EventKind = iota
	EventUpdateObject
	EventDestroyObject
	EventAvatarUpdate
	EventAvatarDead
	EventChatMessage
	EventResync
)

// Event is a single (world, mutation) tuple queued for fan-out. UID is
// the object's UID for object events and the avatar id for avatar
// events; it is the zero value for chat events. Only UpdateObject
// events are coalesced, keyed by UID.
type Event struct {
	Kind    EventKind
	UID     idgen.UID
	Payload []byte
}

// Subscriber is one connection worker's bounded inbound-from-dispatcher
// queue: many dispatcher goroutines may enqueue concurrently (MPSC),
// the owning connection worker is the sole consumer. Backed by a plain
// slice rather than a Go channel so a full queue can coalesce an
// in-place UpdateObject entry instead of only ever blocking or
// dropping.
type Subscriber struct {
	id       uint64
	capacity int

	mu      sync.Mutex
	items   []Event
	byUID   map[idgen.UID]int // UID -> index into items, for UpdateObject entries only
	notify  chan struct{}      // size 1, signalled on every successful enqueue
	Lagged  atomic.Bool
}

func newSubscriber(id uint64, capacity int) *Subscriber {
	return &Subscriber{
		id:       id,
		capacity: capacity,
		byUID:    make(map[idgen.UID]int),
		notify:   make(chan struct{}, 1),
	}
}

func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Receive blocks until an event is available or ctx is cancelled.
func (s *Subscriber) Receive(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.items) > 0 {
			ev := s.items[0]
			s.items = s.items[1:]
			s.reindex()
			s.mu.Unlock()
			return ev, true
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// reindex rebuilds byUID after a pop from the front. Called with mu
// held. Cheap relative to the dispatcher's own enqueue path since it
// only runs on the (single) consumer side.
func (s *Subscriber) reindex() {
	for k := range s.byUID {
		delete(s.byUID, k)
	}
	for i, ev := range s.items {
		if ev.Kind == EventUpdateObject {
			s.byUID[ev.UID] = i
		}
	}
}

// enqueue implements spec §4.4's slow-subscriber policy: enqueue under
// a short lock; if full, coalesce a repeated UpdateObject for the same
// UID into the latest value; if still full, mark lagged and drop.
func (s *Subscriber) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) >= s.capacity {
		if ev.Kind == EventUpdateObject {
			if idx, ok := s.byUID[ev.UID]; ok {
				s.items[idx] = ev
				return
			}
		}
		s.Lagged.Store(true)
		return
	}

	s.items = append(s.items, ev)
	if ev.Kind == EventUpdateObject {
		s.byUID[ev.UID] = len(s.items) - 1
	}
	s.wake()
}

// TakeLagged reports and clears the lagged flag; the connection worker
// calls this after draining what it can, to decide whether to request
// a full world snapshot before resuming normal delivery.
func (s *Subscriber) TakeLagged() bool {
	return s.Lagged.Swap(false)
}

// Dispatcher holds, per world name, the list of current subscribers.
// Grounded on xaction/xreg's registry-of-running-tasks shape: a
// top-level map guarded by one lock, values looked up and iterated
// without holding that lock for the duration of any per-value work.
type Dispatcher struct {
	capacity int

	mu   sync.RWMutex
	subs map[string]map[uint64]*Subscriber

	nextID atomic.Uint64
}

func NewDispatcher(capacity int) *Dispatcher {
	return &Dispatcher{
		capacity: capacity,
		subs:     make(map[string]map[uint64]*Subscriber),
	}
}

// Subscribe registers a new subscriber for worldName and returns its
// handle; the caller (connection worker) calls Receive on it until it
// unsubscribes.
func (d *Dispatcher) Subscribe(worldName string) *Subscriber {
	id := d.nextID.Inc()
	sub := newSubscriber(id, d.capacity)

	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.subs[worldName]
	if !ok {
		m = make(map[uint64]*Subscriber)
		d.subs[worldName] = m
	}
	m[id] = sub
	return sub
}

// Unsubscribe removes sub from worldName's subscriber list.
func (d *Dispatcher) Unsubscribe(worldName string, sub *Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.subs[worldName]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(d.subs, worldName)
		}
	}
}

// Publish enqueues ev on every current subscriber of worldName.
func (d *Dispatcher) Publish(worldName string, ev Event) {
	d.mu.RLock()
	subs := d.subs[worldName]
	// Copy the subscriber list out from under the registry lock so a
	// slow subscriber's enqueue never blocks other worlds' Publish
	// calls, or new Subscribe/Unsubscribe calls.
	targets := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	d.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(ev)
	}
}

// SubscriberCount reports the number of subscribers currently
// registered for worldName, for diagnostics.
func (d *Dispatcher) SubscriberCount(worldName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[worldName])
}

// QueueDepth sums the queued-but-undelivered event count across every
// subscriber of every world, for periodic metrics reporting.
func (d *Dispatcher) QueueDepth() int {
	d.mu.RLock()
	all := make([]*Subscriber, 0)
	for _, m := range d.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	d.mu.RUnlock()

	total := 0
	for _, s := range all {
		s.mu.Lock()
		total += len(s.items)
		s.mu.Unlock()
	}
	return total
}
