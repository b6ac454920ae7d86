package asyncprocessor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseBeforeStart(_ *testing.T) {
	p := &Processor{BufferSize: 8}
	p.Initialize()
	defer p.Close()
}

func TestCloseAfterError(t *testing.T) {
	done := make(chan struct{})

	p := &Processor{
		BufferSize: 8,
		OnError: func(_ context.Context, err error) {
			require.EqualError(t, err, "boom")
			close(done)
		},
	}
	p.Initialize()
	defer p.Close()

	p.Push(func() error { return fmt.Errorf("boom") })
	p.Start()

	<-done
}

func TestPushRunsInOrder(t *testing.T) {
	var order []int
	done := make(chan struct{})

	p := &Processor{
		BufferSize: 8,
		OnError:    func(context.Context, error) {},
	}
	p.Initialize()
	defer p.Close()

	p.Push(func() error { order = append(order, 1); return nil })
	p.Push(func() error { order = append(order, 2); return nil })
	p.Push(func() error { order = append(order, 3); close(done); return nil })
	p.Start()

	<-done
	require.Equal(t, []int{1, 2, 3}, order)
}
