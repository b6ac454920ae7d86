// Package ringbuffer contains a bounded ring buffer used to pass messages
// between a session's cooperative tasks.
package ringbuffer

import (
	"fmt"
	"sync"
)

// RingBuffer is a bounded single-slot-per-index queue shared between one
// producer task and one consumer task.
type RingBuffer struct {
	size       uint64
	mutex      sync.Mutex
	cond       *sync.Cond
	buffer     []interface{}
	readIndex  uint64
	writeIndex uint64
	closed     bool
}

// New allocates a RingBuffer of the given size, which must be a power of
// two so that index wraparound stays within bounds.
func New(size uint64) (*RingBuffer, error) {
	if (size & (size - 1)) != 0 {
		return nil, fmt.Errorf("ringbuffer: size must be a power of two")
	}

	r := &RingBuffer{
		size:   size,
		buffer: make([]interface{}, size),
	}
	r.cond = sync.NewCond(&r.mutex)
	return r, nil
}

// Close makes Pull return false once the buffer drains.
func (r *RingBuffer) Close() {
	r.mutex.Lock()
	r.closed = true
	r.mutex.Unlock()
	r.cond.Broadcast()
}

// Push appends an item to the queue, returning false if the queue is full.
func (r *RingBuffer) Push(data interface{}) bool {
	r.mutex.Lock()

	if r.buffer[r.writeIndex] != nil {
		r.mutex.Unlock()
		return false
	}

	r.buffer[r.writeIndex] = data
	r.writeIndex = (r.writeIndex + 1) % r.size

	r.mutex.Unlock()
	r.cond.Broadcast()
	return true
}

// Pull blocks until an item is available or the buffer is closed and
// drained.
func (r *RingBuffer) Pull() (interface{}, bool) {
	for {
		r.mutex.Lock()

		data := r.buffer[r.readIndex]
		if data != nil {
			r.buffer[r.readIndex] = nil
			r.readIndex = (r.readIndex + 1) % r.size
			r.mutex.Unlock()
			return data, true
		}

		if r.closed {
			r.mutex.Unlock()
			return nil, false
		}

		r.cond.Wait()
		r.mutex.Unlock()
	}
}
