// Package retransmit implements the sender's ring-buffered retransmit
// cache: a bounded history of recently sent audio packets keyed by RTP
// sequence number, so a receiver's retransmit request can be served without
// re-encoding.
package retransmit

import "sync"

// DefaultCapacity is the default number of packets retained.
const DefaultCapacity = 128

// Buffer is a fixed-capacity, wraparound-safe store of recently sent
// packets, indexed by their 16-bit RTP sequence number. Once full, the
// oldest packet is evicted to make room for the newest.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint16][]byte
	order    []uint16 // insertion order, oldest first
}

// New creates a Buffer retaining at most capacity packets.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		entries:  make(map[uint16]([]byte), capacity),
	}
}

// Put stores a copy of packet under sequence, evicting the oldest entry if
// the buffer is at capacity.
func (b *Buffer) Put(sequence uint16, packet []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[sequence]; !exists {
		if len(b.order) >= b.capacity {
			oldest := b.order[0]
			b.order = b.order[1:]
			delete(b.entries, oldest)
		}
		b.order = append(b.order, sequence)
	}

	cp := make([]byte, len(packet))
	copy(cp, packet)
	b.entries[sequence] = cp
}

// Get returns the packet stored under sequence, if still present.
func (b *Buffer) Get(sequence uint16) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.entries[sequence]
	return p, ok
}

// Range returns the packets for [first, first+count) in sequence order,
// skipping any sequence numbers that have already been evicted. The range
// wraps correctly across the 16-bit sequence boundary.
func (b *Buffer) Range(first uint16, count uint16) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([][]byte, 0, count)
	seq := first
	for i := uint16(0); i < count; i++ {
		if p, ok := b.entries[seq]; ok {
			result = append(result, p)
		}
		seq++
	}
	return result
}

// Len reports the number of packets currently retained.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Reset clears all retained packets, as on a Flush.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[uint16][]byte, b.capacity)
	b.order = nil
}
