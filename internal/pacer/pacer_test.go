package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextAdvancesByFixedPeriodNotCumulativeSleep(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(start, 8*time.Millisecond)

	d0 := p.Next()
	d1 := p.Next()
	d2 := p.Next()

	require.Equal(t, start, d0)
	require.Equal(t, start.Add(8*time.Millisecond), d1)
	require.Equal(t, start.Add(16*time.Millisecond), d2)
}

func TestResetRestartsSchedule(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(start, time.Millisecond)
	p.Next()
	p.Next()
	require.Equal(t, uint64(2), p.Count())

	newStart := start.Add(time.Hour)
	p.Reset(newStart)
	require.Equal(t, uint64(0), p.Count())
	require.Equal(t, newStart, p.Next())
}

func TestWaitNextDoesNotSleepWhenBehindSchedule(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	p := New(past, time.Millisecond)

	slept := false
	p.WaitNext(func(time.Duration) { slept = true })
	require.False(t, slept)
}
