// Package buffer holds bytes read from a transport until the frame codec or
// the handshake parser can consume them.
package buffer

// compactThreshold is the number of consumed bytes after which the backing
// array is compacted on the next write.
const compactThreshold = 4096

// Accumulator is a growable byte buffer with a read offset. Callers append
// transport reads with Write, inspect the unconsumed bytes with Bytes, and
// drop what a parser consumed with Consume.
//
// Accumulator is not safe for concurrent use.
type Accumulator struct {
	buf []byte
	off int
}

// New returns an Accumulator with room for size bytes.
func New(size int) *Accumulator {
	return &Accumulator{buf: make([]byte, 0, size)}
}

// Write appends p. It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.off > 0 && (a.off >= compactThreshold || a.off == len(a.buf)) {
		a.compact()
	}
	a.buf = append(a.buf, p...)
	return len(p), nil
}

// Bytes returns the unconsumed bytes. The slice aliases the buffer and is
// only valid until the next Write, Consume or Reset.
func (a *Accumulator) Bytes() []byte {
	return a.buf[a.off:]
}

// Len returns the number of unconsumed bytes.
func (a *Accumulator) Len() int {
	return len(a.buf) - a.off
}

// Consume drops the first n unconsumed bytes. Consuming more than Len
// empties the buffer.
func (a *Accumulator) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= a.Len() {
		a.Reset()
		return
	}
	a.off += n
}

// Take removes the first n unconsumed bytes and returns them in a new slice.
func (a *Accumulator) Take(n int) []byte {
	if n > a.Len() {
		n = a.Len()
	}
	out := make([]byte, n)
	copy(out, a.buf[a.off:a.off+n])
	a.Consume(n)
	return out
}

// Reset discards all data but keeps the allocated capacity.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
	a.off = 0
}

func (a *Accumulator) compact() {
	n := copy(a.buf, a.buf[a.off:])
	a.buf = a.buf[:n]
	a.off = 0
}
