// Package stats provides the wrapping byte counters kept per connection direction.
package stats

import (
	"fmt"
	"math/big"
	"math/bits"
)

// ByteCount is a 64-bit byte accumulator plus the number of times it has
// wrapped. The logical total is Overflows*2^64 + Bytes.
type ByteCount struct {
	Bytes     uint64
	Overflows uint64
}

// Add returns c advanced by n bytes. Each wrap of Bytes past its maximum
// increments Overflows exactly once.
func (c ByteCount) Add(n uint64) ByteCount {
	sum, carry := bits.Add64(c.Bytes, n, 0)
	return ByteCount{Bytes: sum, Overflows: c.Overflows + carry}
}

// IsZero reports whether no bytes have been counted.
func (c ByteCount) IsZero() bool {
	return c.Bytes == 0 && c.Overflows == 0
}

// Total returns the logical byte count as an arbitrary precision integer.
func (c ByteCount) Total() *big.Int {
	t := new(big.Int).SetUint64(c.Overflows)
	t.Lsh(t, 64)
	return t.Add(t, new(big.Int).SetUint64(c.Bytes))
}

func (c ByteCount) String() string {
	if c.Overflows == 0 {
		return fmt.Sprintf("%d", c.Bytes)
	}
	return c.Total().String()
}

// Counters holds both directions of one connection.
type Counters struct {
	Sent     ByteCount
	Received ByteCount
}

// AddSent counts n bytes handed to the transport.
func (c *Counters) AddSent(n int) {
	if n > 0 {
		c.Sent = c.Sent.Add(uint64(n))
	}
}

// AddReceived counts n bytes read from the transport.
func (c *Counters) AddReceived(n int) {
	if n > 0 {
		c.Received = c.Received.Add(uint64(n))
	}
}

// Reset zeroes both directions.
func (c *Counters) Reset() {
	*c = Counters{}
}
