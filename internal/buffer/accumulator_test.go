package buffer

import (
	"bytes"
	"testing"
)

func TestAccumulator(t *testing.T) {
	tests := []struct {
		name   string
		writes [][]byte
		take   int
		want   []byte
		remain []byte
	}{
		{
			name:   "single write",
			writes: [][]byte{[]byte("hello")},
			take:   2,
			want:   []byte("he"),
			remain: []byte("llo"),
		},
		{
			name:   "byte at a time",
			writes: [][]byte{{'a'}, {'b'}, {'c'}},
			take:   3,
			want:   []byte("abc"),
			remain: []byte{},
		},
		{
			name:   "take more than buffered",
			writes: [][]byte{[]byte("xy")},
			take:   10,
			want:   []byte("xy"),
			remain: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(0)
			for _, w := range tt.writes {
				if _, err := a.Write(w); err != nil {
					t.Fatalf("Write: %v", err)
				}
			}
			got := a.Take(tt.take)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Take = %q, want %q", got, tt.want)
			}
			if !bytes.Equal(a.Bytes(), tt.remain) {
				t.Errorf("remaining = %q, want %q", a.Bytes(), tt.remain)
			}
		})
	}
}

func TestAccumulatorConsumeAndCompact(t *testing.T) {
	a := New(16)
	big := bytes.Repeat([]byte{'x'}, compactThreshold+10)
	a.Write(big)
	a.Consume(compactThreshold + 5)
	if a.Len() != 5 {
		t.Fatalf("Len = %d, want 5", a.Len())
	}

	a.Write([]byte("tail"))
	if a.off != 0 {
		t.Errorf("offset = %d after compaction, want 0", a.off)
	}
	if got := string(a.Bytes()); got != "xxxxxtail" {
		t.Errorf("Bytes = %q", got)
	}

	a.Consume(-1)
	if a.Len() != 9 {
		t.Errorf("negative consume changed length to %d", a.Len())
	}
	a.Consume(100)
	if a.Len() != 0 {
		t.Errorf("Len = %d after over-consume, want 0", a.Len())
	}
}
