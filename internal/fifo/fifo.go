// Package fifo provides the unbounded, mutex-guarded queues behind request
// and transport buffering.
package fifo

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue is a FIFO of T. Each method holds the lock for one queue operation.
type Queue[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

func New[T any]() *Queue[T] {
	return &Queue[T]{q: queue.New()}
}

func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.q.Add(v)
}

// PushAll appends items in order as one operation.
func (q *Queue[T]) PushAll(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range items {
		q.q.Add(v)
	}
}

// Pop removes the front element. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.q.Length() == 0 {
		return v, false
	}
	return q.q.Remove().(T), true
}

// Drain removes and returns every element in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for q.q.Length() > 0 {
		out = append(out, q.q.Remove().(T))
	}
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}
