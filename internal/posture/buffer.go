package posture

// DefaultBufferCapacity number of recent readings retained
const DefaultBufferCapacity = 100

// ReadingBuffer fixed-capacity FIFO. Push is O(1); the oldest entry is evicted on overflow.
// Not safe for concurrent use; the engine guards it.
type ReadingBuffer struct {
	items []Reading
	start int
	size  int
}

// NewReadingBuffer capacity <= 0 falls back to DefaultBufferCapacity
func NewReadingBuffer(capacity int) *ReadingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &ReadingBuffer{items: make([]Reading, capacity)}
}

// Push appends r and reports whether an older reading was evicted
func (b *ReadingBuffer) Push(r Reading) bool {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = r
		b.size++
		return false
	}

	b.items[b.start] = r
	b.start = (b.start + 1) % capacity
	return true
}

// Readings copy ordered oldest to newest
func (b *ReadingBuffer) Readings() []Reading {
	out := make([]Reading, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}

// Latest newest reading, if any
func (b *ReadingBuffer) Latest() (Reading, bool) {
	if b.size == 0 {
		return Reading{}, false
	}
	return b.items[(b.start+b.size-1)%len(b.items)], true
}

func (b *ReadingBuffer) Len() int { return b.size }

func (b *ReadingBuffer) Cap() int { return len(b.items) }

// Clear drops every reading
func (b *ReadingBuffer) Clear() {
	for i := range b.items {
		b.items[i] = Reading{}
	}
	b.start = 0
	b.size = 0
}
