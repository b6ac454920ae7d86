// Package asyncprocessor runs a cooperative task loop: a single goroutine
// draining a bounded queue of func() error callbacks, for any task that must
// serialize work behind a queue. The Client and Receiver facades do not use
// it; the receiver's audio and control read loops run as plain goroutines.
package asyncprocessor

import (
	"context"

	"github.com/jburnhams/airplay2/internal/ringbuffer"
)

// Processor detaches the goroutine pushing work from the goroutine that
// executes it, so callers never block on I/O done by the processor.
type Processor struct {
	BufferSize int
	OnError    func(context.Context, error)

	running   bool
	buffer    *ringbuffer.RingBuffer
	ctx       context.Context
	ctxCancel func()

	done chan struct{}
}

// Initialize prepares the processor's queue and cancellation context.
func (p *Processor) Initialize() {
	p.buffer, _ = ringbuffer.New(uint64(p.BufferSize))
	p.ctx, p.ctxCancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})
}

// Close cancels the processor's context and waits for its goroutine to
// exit, draining gracefully.
func (p *Processor) Close() {
	p.ctxCancel()
	p.buffer.Close()

	if p.running {
		<-p.done
	}
}

// Start launches the processor's goroutine.
func (p *Processor) Start() {
	p.running = true
	go p.run()
}

func (p *Processor) run() {
	defer close(p.done)

	err := p.runInner()
	if err != nil && p.OnError != nil {
		p.OnError(p.ctx, err)
	}
}

func (p *Processor) runInner() error {
	for {
		tmp, ok := p.buffer.Pull()
		if !ok {
			return nil
		}

		if err := tmp.(func() error)(); err != nil {
			return err
		}
	}
}

// Push enqueues a callback for the processor's goroutine to run, returning
// false if the queue is full.
func (p *Processor) Push(cb func() error) bool {
	return p.buffer.Push(cb)
}
