// Package datasegment implements the data segment variants carried by
// iSCSI PDUs (RFC 3720 Section 10.2.3).
//
// A data segment is transmitted as DataSegmentLength payload bytes followed
// by zero padding up to the next multiple of 4 bytes. The variant used for a
// PDU is selected by its operation code: text parameters for Login and Text
// PDUs, SCSI response data (sense data) for SCSI Response PDUs, opaque
// binary data for everything that carries data, and none otherwise.
package datasegment

// Alignment is the word size data segments are padded to.
const Alignment = 4

// Format identifies a data segment variant.
type Format uint8

const (
	// FormatNone is used by PDUs that never carry data.
	FormatNone Format = iota

	// FormatBinary carries opaque bytes (SCSI data, ping data, rejected headers).
	FormatBinary

	// FormatText carries null separated key=value pairs.
	FormatText

	// FormatSCSIResponse carries sense data and SCSI response data.
	FormatSCSIResponse
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatNone:
		return "None"
	case FormatBinary:
		return "Binary"
	case FormatText:
		return "Text"
	case FormatSCSIResponse:
		return "SCSIResponse"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the format is a defined value.
func (f Format) IsValid() bool {
	return f <= FormatSCSIResponse
}

// DataSegment is a PDU payload.
type DataSegment interface {
	// Format returns the variant.
	Format() Format

	// Len returns the payload length without padding.
	Len() int

	// PaddedLen returns the wire length including padding.
	PaddedLen() int

	// Bytes returns the unpadded payload. The slice must not be modified.
	Bytes() []byte

	// SetBytes replaces the payload with a copy of b.
	SetBytes(b []byte) error

	// Append adds a copy of b to the end of the payload.
	Append(b []byte) error

	// Clear removes the payload.
	Clear()

	// EncodeTo writes the padded payload to dst and returns the number of
	// bytes written.
	EncodeTo(dst []byte) (int, error)

	// Chunks returns an iterator over pieces of at most maxSize bytes.
	Chunks(maxSize int) (*ChunkIterator, error)
}

// New returns an empty data segment of the given format.
func New(f Format) (DataSegment, error) {
	switch f {
	case FormatNone:
		return None{}, nil
	case FormatBinary:
		return &Binary{}, nil
	case FormatText:
		return &Text{}, nil
	case FormatSCSIResponse:
		return &SCSIResponse{}, nil
	default:
		return nil, ErrUnknownFormat
	}
}

// Decode returns a data segment of the given format holding a copy of the
// unpadded payload b.
func Decode(f Format, b []byte) (DataSegment, error) {
	if f == FormatSCSIResponse {
		r, err := DecodeSCSIResponse(b)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	ds, err := New(f)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return ds, nil
	}
	if err := ds.SetBytes(b); err != nil {
		return nil, err
	}
	return ds, nil
}

// PaddingLength returns the number of zero bytes needed after n payload bytes.
func PaddingLength(n int) int {
	if rest := n % Alignment; rest > 0 {
		return Alignment - rest
	}
	return 0
}

// PaddedLength returns n rounded up to the next multiple of Alignment.
func PaddedLength(n int) int {
	return n + PaddingLength(n)
}

// encodePadded copies data into dst and zeroes the padding bytes.
func encodePadded(dst, data []byte) (int, error) {
	total := PaddedLength(len(data))
	if len(dst) < total {
		return 0, ErrBufferTooSmall
	}
	n := copy(dst, data)
	clear(dst[n:total])
	return total, nil
}

// buffer is the payload storage shared by the byte oriented variants.
type buffer struct {
	data []byte
}

func (b *buffer) Len() int {
	return len(b.data)
}

func (b *buffer) PaddedLen() int {
	return PaddedLength(len(b.data))
}

func (b *buffer) Bytes() []byte {
	return b.data
}

func (b *buffer) set(p []byte) {
	b.data = append(b.data[:0], p...)
}

func (b *buffer) append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *buffer) reset() {
	b.data = b.data[:0]
}

func (b *buffer) EncodeTo(dst []byte) (int, error) {
	return encodePadded(dst, b.data)
}

func (b *buffer) Chunks(maxSize int) (*ChunkIterator, error) {
	return newChunkIterator(b.data, maxSize)
}
