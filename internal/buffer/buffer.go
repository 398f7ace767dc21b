package buffer

// Buffer is an append-only accumulator of unparsed bytes with a hard capacity limit.
// Consumed bytes are dropped from the front, and the memory is compacted lazily, so
// consecutive messages reuse the same allocation.
type Buffer struct {
	memory  []byte
	head    int
	maxSize int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Append writes data, checking whether the new amount of unconsumed bytes doesn't exceed the
// limit, otherwise discarding the data and returning false.
func (b *Buffer) Append(data []byte) (ok bool) {
	if b.Len()+len(data) > b.maxSize {
		return false
	}

	if b.head > 0 && len(b.memory)+len(data) > cap(b.memory) {
		b.compact()
	}

	b.memory = append(b.memory, data...)
	return true
}

// Bytes returns unconsumed bytes. The returned slice is valid until the next
// call to Append, Drain or Clear.
func (b *Buffer) Bytes() []byte {
	return b.memory[b.head:]
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.memory) - b.head
}

// Drain consumes first n bytes.
func (b *Buffer) Drain(n int) {
	if n > b.Len() {
		n = b.Len()
	}

	b.head += n
	if b.head == len(b.memory) {
		b.Clear()
	}
}

// Clear just resets the pointers, so old values may be overridden by new ones.
func (b *Buffer) Clear() {
	b.head = 0
	b.memory = b.memory[:0]
}

func (b *Buffer) compact() {
	n := copy(b.memory, b.memory[b.head:])
	b.memory = b.memory[:n]
	b.head = 0
}
