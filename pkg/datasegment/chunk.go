package datasegment

// Chunk is one piece of a data segment produced by a ChunkIterator.
type Chunk struct {
	// Data is the unpadded chunk payload. It aliases the segment storage.
	Data []byte

	// Offset is the position of the chunk within the segment.
	Offset int

	// Last is true for the final chunk.
	Last bool
}

// Len returns the unpadded chunk length, the DataSegmentLength of the PDU
// that carries it.
func (c Chunk) Len() int {
	return len(c.Data)
}

// PaddedLen returns the wire length of the chunk.
func (c Chunk) PaddedLen() int {
	return PaddedLength(len(c.Data))
}

// Padded returns a copy of the chunk payload including zero padding.
func (c Chunk) Padded() []byte {
	buf := make([]byte, c.PaddedLen())
	copy(buf, c.Data)
	return buf
}

// ChunkIterator splits a payload into chunks no larger than a maximum size,
// typically the peer's MaxRecvDataSegmentLength.
type ChunkIterator struct {
	data    []byte
	maxSize int
	cursor  int
}

func newChunkIterator(data []byte, maxSize int) (*ChunkIterator, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidChunk
	}
	return &ChunkIterator{data: data, maxSize: maxSize}, nil
}

// HasNext reports whether another chunk is available.
func (it *ChunkIterator) HasNext() bool {
	return it.cursor < len(it.data)
}

// Next returns the next chunk. It returns a zero Chunk with Last set once
// the iterator is exhausted.
func (it *ChunkIterator) Next() Chunk {
	if !it.HasNext() {
		return Chunk{Offset: it.cursor, Last: true}
	}
	end := min(it.cursor+it.maxSize, len(it.data))
	c := Chunk{
		Data:   it.data[it.cursor:end],
		Offset: it.cursor,
		Last:   end == len(it.data),
	}
	it.cursor = end
	return c
}

// Remaining returns the number of payload bytes not yet returned.
func (it *ChunkIterator) Remaining() int {
	return len(it.data) - it.cursor
}
