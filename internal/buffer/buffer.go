// Package buffer provides a move-only, owned byte region used to carry
// chunk data through the compression pipeline without aliasing.
package buffer

import "fmt"

// Buffer is a contiguous byte region with a capacity and a logical size.
// Bytes past size are unspecified. A Buffer is meant to be owned by a
// single holder at a time and passed by swapping, never copied and
// shared concurrently.
type Buffer struct {
	bytes []byte
	size  int
}

// New allocates a Buffer with the given capacity and zero size.
func New(capacity int) *Buffer {
	return &Buffer{bytes: make([]byte, capacity)}
}

// Size returns the logical number of valid bytes.
func (b *Buffer) Size() int { return b.size }

// Capacity returns the total addressable capacity.
func (b *Buffer) Capacity() int { return cap(b.bytes) }

// Data returns the valid portion of the buffer, bytes[0:size].
func (b *Buffer) Data() []byte { return b.bytes[:b.size] }

// Raw returns the full backing array, including bytes past size. Used by
// codecs that need to write into unused capacity (e.g. Compress output).
func (b *Buffer) Raw() []byte { return b.bytes[:cap(b.bytes)] }

// SetSize marks n bytes as valid. Fails if n exceeds capacity.
func (b *Buffer) SetSize(n int) error {
	if n > cap(b.bytes) {
		return fmt.Errorf("buffer: set_size %d exceeds capacity %d", n, cap(b.bytes))
	}
	b.bytes = b.bytes[:cap(b.bytes)][:n]
	b.size = n
	return nil
}

// SetData replaces the buffer's contents with d. Fails if d exceeds capacity.
func (b *Buffer) SetData(d []byte) error {
	if len(d) > cap(b.bytes) {
		return fmt.Errorf("buffer: set_data of %d bytes exceeds capacity %d", len(d), cap(b.bytes))
	}
	b.bytes = b.bytes[:cap(b.bytes)]
	copy(b.bytes, d)
	b.size = len(d)
	b.bytes = b.bytes[:b.size]
	return nil
}

// Resize grows the buffer's capacity to newCapacity. A no-op if
// newCapacity is less than the current size (never shrinks below data
// already held).
func (b *Buffer) Resize(newCapacity int) {
	if newCapacity < b.size {
		return
	}
	if newCapacity <= cap(b.bytes) {
		return
	}
	grown := make([]byte, newCapacity)
	copy(grown, b.bytes[:b.size])
	b.bytes = grown[:b.size]
}

// Swap exchanges contents with other. Used to pass ownership across
// pipeline stages without copying.
func (b *Buffer) Swap(other *Buffer) {
	b.bytes, other.bytes = other.bytes, b.bytes
	b.size, other.size = other.size, b.size
}
