package datasegment

// Binary is an opaque data segment.
type Binary struct {
	buffer
}

// NewBinary returns a binary data segment holding a copy of b.
func NewBinary(b []byte) *Binary {
	d := &Binary{}
	d.set(b)
	return d
}

// Format returns FormatBinary.
func (*Binary) Format() Format { return FormatBinary }

// SetBytes replaces the payload.
func (d *Binary) SetBytes(b []byte) error {
	d.set(b)
	return nil
}

// Append adds b to the payload.
func (d *Binary) Append(b []byte) error {
	d.append(b)
	return nil
}

// Clear removes the payload.
func (d *Binary) Clear() {
	d.reset()
}
