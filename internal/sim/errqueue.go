package sim

import "github.com/virtbench/virtbench/internal/scpi"

// queuedError is one pending instrument error.
type queuedError struct {
	code    int
	message string
}

// errorQueue emulates the instrument error queue: an unbounded FIFO of
// (code, message) pairs. Real instruments cap the queue and overwrite the
// newest slot with -350 "Queue overflow"; the simulator keeps everything,
// so a test that provokes thousands of errors can still drain and inspect
// all of them.
//
// Not safe for concurrent use. The queue belongs to one backend instance
// and inherits its single-operation precondition.
type errorQueue struct {
	items []queuedError
}

// push appends an error to the back of the queue.
func (q *errorQueue) push(code int, message string) {
	q.items = append(q.items, queuedError{code: code, message: message})
}

// pop removes and formats the oldest error. An empty queue reports the
// SCPI no-error response.
func (q *errorQueue) pop() string {
	if len(q.items) == 0 {
		return scpi.NoError
	}
	e := q.items[0]
	q.items = q.items[1:]
	return scpi.FormatError(e.code, e.message)
}

// clear drops every pending error.
func (q *errorQueue) clear() {
	q.items = nil
}

// depth reports how many errors are pending.
func (q *errorQueue) depth() int {
	return len(q.items)
}
