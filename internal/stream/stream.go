package stream

import (
	"slices"
	"sync"
)

// subscribers is a cancellable set of callbacks kept in subscription order.
type subscribers[T any] struct {
	fns  map[uint64]func(T)
	mu   sync.Mutex
	next uint64
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(T))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// ids returns the ids of current subscribers in subscription order.
func (s *subscribers[T]) ids() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.fns))
	for id := range s.fns {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// call invokes subscriber id if it is still subscribed.
func (s *subscribers[T]) call(id uint64, v T) {
	s.mu.Lock()
	fn, ok := s.fns[id]
	s.mu.Unlock()
	if ok {
		fn(v)
	}
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// Property holds a current value and notifies subscribers when it changes.
type Property[T any] struct {
	value T
	equal func(a, b T) bool
	subs  subscribers[T]
	queue *Queue
	mu    sync.RWMutex
}

// NewProperty creates a property compared with ==.
func NewProperty[T comparable](initial T) *Property[T] {
	return NewPropertyFunc(initial, func(a, b T) bool { return a == b })
}

// NewPropertyFunc creates a property with a custom equality. A nil equal
// treats every Set as a change.
func NewPropertyFunc[T any](initial T, equal func(a, b T) bool) *Property[T] {
	return &Property[T]{value: initial, equal: equal, queue: &Queue{}}
}

// WithQueue makes notifications go through q, so that several properties
// and buses owned by one component are delivered in a single order.
func (p *Property[T]) WithQueue(q *Queue) *Property[T] {
	p.queue = q
	return p
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores v and notifies subscribers if it differs from the current
// value. It reports whether the value changed.
func (p *Property[T]) Set(v T) bool {
	if !p.Store(v) {
		return false
	}
	p.Notify(v)
	return true
}

// Store replaces the value without notifying and reports whether it
// changed. Owners that update under their own lock call Store there and
// Notify once the lock is released.
func (p *Property[T]) Store(v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.equal != nil && p.equal(p.value, v) {
		return false
	}
	p.value = v
	return true
}

// Notify delivers v to the current subscribers through the queue.
func (p *Property[T]) Notify(v T) {
	ids := p.subs.ids()
	if len(ids) == 0 {
		return
	}
	p.queue.Run(func() {
		for _, id := range ids {
			p.subs.call(id, v)
		}
	})
}

// Subscribe calls fn on every change. It does not replay the current value.
func (p *Property[T]) Subscribe(fn func(T)) (cancel func()) {
	return p.subs.add(fn)
}

// Observe calls fn with the current value and then on every change.
func (p *Property[T]) Observe(fn func(T)) (cancel func()) {
	cancel = p.subs.add(fn)
	v := p.Get()
	p.queue.Run(func() { fn(v) })
	return cancel
}

// Subscribers returns the number of active subscriptions.
func (p *Property[T]) Subscribers() int {
	return p.subs.len()
}

// Bus is a fire-and-forget event stream.
type Bus[T any] struct {
	subs  subscribers[T]
	queue *Queue
}

// NewBus creates an event bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{queue: &Queue{}}
}

// WithQueue shares the delivery order with other streams using q.
func (b *Bus[T]) WithQueue(q *Queue) *Bus[T] {
	b.queue = q
	return b
}

// Publish delivers v to every current subscriber.
func (b *Bus[T]) Publish(v T) {
	ids := b.subs.ids()
	if len(ids) == 0 {
		return
	}
	b.queue.Run(func() {
		for _, id := range ids {
			b.subs.call(id, v)
		}
	})
}

// Subscribe registers fn for future events.
func (b *Bus[T]) Subscribe(fn func(T)) (cancel func()) {
	return b.subs.add(fn)
}
