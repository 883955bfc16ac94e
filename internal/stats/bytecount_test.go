package stats

import (
	"math"
	"testing"
)

func TestByteCountAdd(t *testing.T) {
	tests := []struct {
		name  string
		start ByteCount
		add   []uint64
		want  ByteCount
	}{
		{
			name: "from zero",
			add:  []uint64{10, 20},
			want: ByteCount{Bytes: 30},
		},
		{
			name:  "exact wrap",
			start: ByteCount{Bytes: math.MaxUint64},
			add:   []uint64{1},
			want:  ByteCount{Bytes: 0, Overflows: 1},
		},
		{
			name:  "wrap with remainder",
			start: ByteCount{Bytes: math.MaxUint64 - 4},
			add:   []uint64{10},
			want:  ByteCount{Bytes: 5, Overflows: 1},
		},
		{
			name:  "two wraps",
			start: ByteCount{Bytes: math.MaxUint64},
			add:   []uint64{1, math.MaxUint64, 1},
			want:  ByteCount{Bytes: 0, Overflows: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.start
			for _, n := range tt.add {
				c = c.Add(n)
			}
			if c != tt.want {
				t.Errorf("got %+v, want %+v", c, tt.want)
			}
		})
	}
}

func TestByteCountTotal(t *testing.T) {
	c := ByteCount{Bytes: 7, Overflows: 1}
	if got := c.String(); got != "18446744073709551623" {
		t.Errorf("String = %s", got)
	}
	if got := (ByteCount{Bytes: 42}).String(); got != "42" {
		t.Errorf("String = %s", got)
	}
}

func TestCountersReset(t *testing.T) {
	var c Counters
	c.AddSent(100)
	c.AddReceived(50)
	c.AddSent(-3)
	c.Reset()
	if !c.Sent.IsZero() || !c.Received.IsZero() {
		t.Fatalf("Reset left %+v", c)
	}

	const k = 1234
	c.AddReceived(k)
	if c.Received != (ByteCount{Bytes: k}) {
		t.Errorf("Received = %+v, want exactly %d with no overflow", c.Received, k)
	}
}
