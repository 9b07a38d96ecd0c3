// Package output holds the bounded record store behind the output panel.
package output

// DefaultCapacity is the record capacity used when none is configured.
const DefaultCapacity = 1000

// Record is one sanitized line of pipeline output.
type Record struct {
	// Seq is the arrival sequence number, monotonic across evictions.
	Seq  uint64
	Text string
}

// Buffer is a fixed-capacity FIFO of records with a scroll offset.
// When full, Push evicts the oldest record; the newest is never dropped.
// Buffer is owned by a single goroutine and is not safe for concurrent use.
type Buffer struct {
	ring    []Record
	head    int // index of the oldest record
	size    int
	nextSeq uint64
	offset  int
}

// New creates a buffer holding at most capacity records.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: make([]Record, capacity)}
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return len(b.ring) }

// Len returns the number of records held.
func (b *Buffer) Len() int { return b.size }

// Offset returns the index of the first visible record.
func (b *Buffer) Offset() int { return b.offset }

// Push appends a record, evicting the oldest one when at capacity. The
// offset moves back with an eviction so a scrolled view keeps showing the
// same records until they are gone.
func (b *Buffer) Push(text string) Record {
	rec := Record{Seq: b.nextSeq, Text: text}
	b.nextSeq++

	if b.size == len(b.ring) {
		b.ring[b.head] = rec
		b.head = (b.head + 1) % len(b.ring)
		b.offset--
		b.clampOffset()
		return rec
	}

	b.ring[(b.head+b.size)%len(b.ring)] = rec
	b.size++
	return rec
}

// PushAll appends texts in order. Only the last Cap() of them can survive,
// so earlier ones are numbered and counted as dropped without being stored.
func (b *Buffer) PushAll(texts []string) {
	if skip := len(texts) - len(b.ring); skip > 0 {
		b.nextSeq += uint64(skip)
		b.offset -= skip
		b.clampOffset()
		texts = texts[skip:]
	}
	for _, text := range texts {
		b.Push(text)
	}
}

// Scroll moves the view offset by delta, clamped to [0, Len). It reports
// whether the offset changed.
func (b *Buffer) Scroll(delta int) bool {
	prev := b.offset
	b.offset += delta
	b.clampOffset()
	return b.offset != prev
}

// ScrollToEnd positions the view so the last visible window ends at the
// newest record.
func (b *Buffer) ScrollToEnd(window int) bool {
	prev := b.offset
	b.offset = b.size - window
	b.clampOffset()
	return b.offset != prev
}

// Reset clears all records and the view offset. Sequence numbers keep
// increasing so records from different runs never share a number.
func (b *Buffer) Reset() {
	for i := range b.ring {
		b.ring[i] = Record{}
	}
	b.head = 0
	b.size = 0
	b.offset = 0
}

// At returns the i-th record counted from the oldest.
func (b *Buffer) At(i int) (Record, bool) {
	if i < 0 || i >= b.size {
		return Record{}, false
	}
	return b.ring[(b.head+i)%len(b.ring)], true
}

// Records returns a copy of every record, oldest first.
func (b *Buffer) Records() []Record {
	out := make([]Record, 0, b.size)
	for i := 0; i < b.size; i++ {
		rec, _ := b.At(i)
		out = append(out, rec)
	}
	return out
}

// Window returns up to n records starting at the view offset.
func (b *Buffer) Window(n int) []Record {
	if n <= 0 || b.size == 0 {
		return nil
	}
	end := b.offset + n
	if end > b.size {
		end = b.size
	}
	out := make([]Record, 0, end-b.offset)
	for i := b.offset; i < end; i++ {
		rec, _ := b.At(i)
		out = append(out, rec)
	}
	return out
}

// Dropped returns how many records numbered sinceSeq or later were evicted,
// detected as the gap between sinceSeq and the oldest record still held.
func (b *Buffer) Dropped(sinceSeq uint64) uint64 {
	if b.size == 0 {
		return 0
	}
	oldest, _ := b.At(0)
	if oldest.Seq <= sinceSeq {
		return 0
	}
	return oldest.Seq - sinceSeq
}

// NextSeq returns the sequence number the next Push will receive.
func (b *Buffer) NextSeq() uint64 { return b.nextSeq }

func (b *Buffer) clampOffset() {
	if b.offset >= b.size {
		b.offset = b.size - 1
	}
	if b.offset < 0 {
		b.offset = 0
	}
}
