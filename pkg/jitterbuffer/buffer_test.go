package jitterbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cfg() Config {
	return Config{MinDepth: 2, TargetDepth: 4, MaxDepth: 8, Concealment: ConcealSilence}
}

func TestBufferingToPlayingAtMinDepth(t *testing.T) {
	b := New(cfg())
	require.Equal(t, Buffering, b.State())

	b.Insert(Packet{Sequence: 1})
	require.Equal(t, Buffering, b.State())

	b.Insert(Packet{Sequence: 2})
	require.Equal(t, Playing, b.State())
}

func TestPopReturnsInSequenceOrder(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 5, Samples: []int16{1}})
	b.Insert(Packet{Sequence: 6, Samples: []int16{2}})

	p, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(5), p.Sequence)

	p, ok = b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(6), p.Sequence)
}

func TestLateSequenceDropped(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 10})
	b.Insert(Packet{Sequence: 11})
	b.Pop() // nextPlaySeq now 11

	b.Insert(Packet{Sequence: 9}) // behind nextPlaySeq, should drop
	require.Equal(t, 1, b.Depth())
}

func TestFullBufferDropsOldest(t *testing.T) {
	b := New(Config{MinDepth: 1, TargetDepth: 2, MaxDepth: 2, Concealment: ConcealSilence})
	b.Insert(Packet{Sequence: 1})
	b.Insert(Packet{Sequence: 2})
	b.Insert(Packet{Sequence: 3})

	require.Equal(t, 2, b.Depth())
	p, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(2), p.Sequence, "oldest sequence 1 should have been evicted")
}

func TestUnderrunWhenDepthReachesZeroDuringPop(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 1})
	b.Insert(Packet{Sequence: 2})
	require.Equal(t, Playing, b.State())

	b.Pop()
	b.Pop()
	require.Equal(t, Underrun, b.State())
}

func TestUnderrunConcealsThenReturnsToPlayingOnRefill(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 1, Samples: []int16{100}})
	b.Insert(Packet{Sequence: 2, Samples: []int16{200}})
	b.Pop()
	_, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, Underrun, b.State())

	// concealment while underrun, no packet available for seq 3.
	_, ok = b.Pop()
	require.False(t, ok)

	b.Insert(Packet{Sequence: 4})
	b.Insert(Packet{Sequence: 5})
	require.Equal(t, Playing, b.State())
}

func TestConcealRepeatLast(t *testing.T) {
	cfg := Config{MinDepth: 1, TargetDepth: 2, MaxDepth: 8, Concealment: ConcealRepeatLast}
	b := New(cfg)
	b.Insert(Packet{Sequence: 1, Samples: []int16{42, 43}})
	p, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, []int16{42, 43}, p.Samples)

	concealed, ok := b.Pop()
	require.False(t, ok)
	require.Equal(t, []int16{42, 43}, concealed.Samples)
}

func TestFlushResetsToBuffering(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 1})
	b.Insert(Packet{Sequence: 2})
	require.Equal(t, Playing, b.State())

	b.Flush()
	require.Equal(t, Buffering, b.State())
	require.Equal(t, 0, b.Depth())
}

func TestFlushBeforeRemovesOnlyOlderTimestamps(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 1, RTPTimestamp: 100})
	b.Insert(Packet{Sequence: 2, RTPTimestamp: 200})
	b.Insert(Packet{Sequence: 3, RTPTimestamp: 300})

	b.FlushBefore(200)
	require.Equal(t, 2, b.Depth())
}

func TestSequenceWraparoundHandledSafely(t *testing.T) {
	b := New(cfg())
	b.Insert(Packet{Sequence: 65534})
	b.Insert(Packet{Sequence: 65535})
	b.Insert(Packet{Sequence: 0})

	p, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(65534), p.Sequence)
	p, ok = b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(65535), p.Sequence)
	p, ok = b.Pop()
	require.True(t, ok)
	require.Equal(t, uint16(0), p.Sequence)
}
