package datasegment

// None is the empty data segment of PDUs that never carry data.
type None struct{}

// Format returns FormatNone.
func (None) Format() Format { return FormatNone }

// Len returns 0.
func (None) Len() int { return 0 }

// PaddedLen returns 0.
func (None) PaddedLen() int { return 0 }

// Bytes returns nil.
func (None) Bytes() []byte { return nil }

// SetBytes accepts only an empty payload.
func (None) SetBytes(b []byte) error {
	if len(b) != 0 {
		return ErrNotSupported
	}
	return nil
}

// Append accepts only an empty payload.
func (n None) Append(b []byte) error {
	return n.SetBytes(b)
}

// Clear does nothing.
func (None) Clear() {}

// EncodeTo writes nothing.
func (None) EncodeTo(_ []byte) (int, error) { return 0, nil }

// Chunks returns an exhausted iterator.
func (None) Chunks(maxSize int) (*ChunkIterator, error) {
	return newChunkIterator(nil, maxSize)
}
