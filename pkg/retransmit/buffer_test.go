package retransmit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	b := New(4)
	b.Put(10, []byte("packet-10"))

	got, ok := b.Get(10)
	require.True(t, ok)
	require.Equal(t, []byte("packet-10"), got)
}

func TestPutCopiesPacket(t *testing.T) {
	b := New(4)
	original := []byte("mutable")
	b.Put(1, original)
	original[0] = 'X'

	got, ok := b.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("mutable"), got)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	b := New(2)
	b.Put(1, []byte("a"))
	b.Put(2, []byte("b"))
	b.Put(3, []byte("c"))

	_, ok := b.Get(1)
	require.False(t, ok, "oldest entry should have been evicted")

	_, ok = b.Get(2)
	require.True(t, ok)
	_, ok = b.Get(3)
	require.True(t, ok)
	require.Equal(t, 2, b.Len())
}

func TestRangeSkipsMissingSequences(t *testing.T) {
	b := New(8)
	b.Put(100, []byte("a"))
	b.Put(102, []byte("c"))

	got := b.Range(100, 3)
	require.Equal(t, [][]byte{{'a'}, {'c'}}, got)
}

func TestRangeWrapsAcross16BitBoundary(t *testing.T) {
	b := New(8)
	b.Put(65534, []byte("x"))
	b.Put(65535, []byte("y"))
	b.Put(0, []byte("z"))

	got := b.Range(65534, 3)
	require.Equal(t, [][]byte{{'x'}, {'y'}, {'z'}}, got)
}

func TestResetClearsAll(t *testing.T) {
	b := New(4)
	b.Put(1, []byte("a"))
	b.Reset()
	require.Equal(t, 0, b.Len())
	_, ok := b.Get(1)
	require.False(t, ok)
}
