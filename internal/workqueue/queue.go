// Package workqueue implements the MPSC FIFO the disk device's dispatch
// routines feed and its worker thread drains, per spec.md §4.2. Any
// primitive satisfying "FIFO with a wake event and a terminate event" is
// acceptable per spec; this one uses a mutex-protected linked list plus two
// channels instead of a spin-lock-protected intrusive list, since a real
// spin lock has no meaning outside kernel mode.
package workqueue

import "github.com/harryfoxfox/safe-sub000/internal/kernel"

// Queue is a strict-FIFO, multi-producer single-consumer queue of pending
// IRPs. Concurrent Enqueue calls are linearized by mu; Dequeue is only ever
// called by the single worker goroutine.
type Queue struct {
	mu   chan struct{} // binary semaphore; see lock/unlock helpers below
	head *kernel.IRP
	tail *kernel.IRP

	request   *kernel.Event // auto-reset: set whenever an item is enqueued
	terminate *kernel.Event // manual-reset: set once at teardown
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{
		mu:        make(chan struct{}, 1),
		request:   kernel.NewAutoResetEvent(),
		terminate: kernel.NewManualResetEvent(),
	}
	q.mu <- struct{}{}
	return q
}

func (q *Queue) lock()   { <-q.mu }
func (q *Queue) unlock() { q.mu <- struct{}{} }

// Enqueue appends irp to the tail of the queue and wakes the worker.
func (q *Queue) Enqueue(irp *kernel.IRP) {
	q.lock()
	if q.tail == nil {
		q.head, q.tail = irp, irp
	} else {
		q.tail.SetNext(irp)
		q.tail = irp
	}
	q.unlock()
	q.request.Set()
}

// Dequeue removes and returns the head of the queue. If the queue is empty
// it blocks until either an item is enqueued or Terminate is called; in the
// latter case it returns (nil, false).
func (q *Queue) Dequeue() (*kernel.IRP, bool) {
	for {
		q.lock()
		irp := q.head
		if irp != nil {
			q.head = irp.Next()
			if q.head == nil {
				q.tail = nil
			}
		}
		q.unlock()

		if irp != nil {
			irp.SetNext(nil)
			return irp, true
		}

		select {
		case <-q.request.C():
			continue
		case <-q.terminate.C():
			// A request may have raced the terminate signal; drain
			// anything left before giving up, so no enqueued IRP is
			// ever silently dropped.
			q.lock()
			remaining := q.head != nil
			q.unlock()
			if remaining {
				continue
			}
			return nil, false
		}
	}
}

// Terminate signals the worker to stop once the queue drains no further
// live requests; Dequeue returns (nil, false) once empty.
func (q *Queue) Terminate() {
	q.terminate.Set()
	q.request.Set()
}
