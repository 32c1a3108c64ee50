// Package mixcmd implements the mixer's deferred-callback queue: work
// enqueued by the mix thread while holding the mixer mutex (layer
// end/loop callbacks) that must run immediately after the mutex is
// released, still on the mix thread but outside the critical section, so
// it may safely call back into the mixer (e.g. to halt a channel or start
// another play).
package mixcmd

import "sync"

// Func is a unit of deferred work.
type Func func()

// Queue accumulates Funcs enqueued during a critical section and runs them
// once Drain is called after the section ends. It is safe to Enqueue from
// within the same goroutine that will later Drain; it is not intended to
// be shared across goroutines concurrently enqueuing and draining (the
// mixer only ever touches it from the mix thread).
type Queue struct {
	mu      sync.Mutex
	pending []Func
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends fn to run on the next Drain.
func (q *Queue) Enqueue(fn Func) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs every queued Func in FIFO order and clears the queue. Funcs
// that enqueue further work during Drain are run in the same Drain call
// (so a callback's own follow-up callback does not have to wait a tick).
func (q *Queue) Drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// Len reports the number of funcs currently queued, for tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
