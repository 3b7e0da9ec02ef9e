package datasegment

import (
	"bytes"
	"errors"
	"testing"
)

func TestChunkIterator(t *testing.T) {
	payload := make([]byte, 8192*2+100)
	for i := range payload {
		payload[i] = byte(i)
	}

	tests := []struct {
		name       string
		maxSize    int
		wantChunks []int
	}{
		{"larger than payload", 65536, []int{16484}},
		{"negotiated maximum", 8192, []int{8192, 8192, 100}},
		{"unaligned maximum", 5461, []int{5461, 5461, 5461, 101}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			it, err := NewBinary(payload).Chunks(tc.maxSize)
			if err != nil {
				t.Fatal(err)
			}

			var joined []byte
			var sizes []int
			for it.HasNext() {
				c := it.Next()
				if c.Len() > tc.maxSize {
					t.Errorf("chunk length %d exceeds %d", c.Len(), tc.maxSize)
				}
				if c.Offset != len(joined) {
					t.Errorf("chunk Offset = %d, want %d", c.Offset, len(joined))
				}
				padded := c.Padded()
				if len(padded)%Alignment != 0 || len(padded) != c.PaddedLen() {
					t.Errorf("Padded() length = %d, PaddedLen() = %d", len(padded), c.PaddedLen())
				}
				if c.Last != !it.HasNext() {
					t.Errorf("Last = %v with HasNext() = %v", c.Last, it.HasNext())
				}
				sizes = append(sizes, c.Len())
				joined = append(joined, c.Data...)
			}

			if !bytes.Equal(joined, payload) {
				t.Error("joined chunks differ from payload")
			}
			if len(sizes) != len(tc.wantChunks) {
				t.Fatalf("chunk sizes = %v, want %v", sizes, tc.wantChunks)
			}
			for i := range sizes {
				if sizes[i] != tc.wantChunks[i] {
					t.Errorf("chunk sizes = %v, want %v", sizes, tc.wantChunks)
					break
				}
			}
			if it.Remaining() != 0 {
				t.Errorf("Remaining() = %d, want 0", it.Remaining())
			}
			if c := it.Next(); c.Len() != 0 || !c.Last {
				t.Errorf("Next() after end = %+v", c)
			}
		})
	}
}

func TestChunkIteratorInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewBinary([]byte{1}).Chunks(size); !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("Chunks(%d) error = %v, want %v", size, err, ErrInvalidChunk)
		}
	}
}
