// Package stream содержит минимальные реактивные примитивы: значение с
// подписками (Property) и шину событий (Bus). Подписка всегда возвращает
// функцию отмены.
package stream

import "sync"

// Queue runs submitted functions one at a time in submission order.
// The goroutine that finds the queue idle drains it; everyone else just
// enqueues and returns. A function may therefore enqueue more work without
// deadlocking: that work runs after the current function returns.
type Queue struct {
	pending  []func()
	mu       sync.Mutex
	draining bool
}

// Run enqueues fn and drains the queue if no one else is draining it.
func (q *Queue) Run(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		next()
	}
}
