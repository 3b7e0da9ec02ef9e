package datasegment

import (
	"encoding/binary"
	"fmt"
)

// senseLengthSize is the size of the SenseLength field.
const senseLengthSize = 2

// SCSIResponse is the data segment of a SCSI Response PDU (RFC 3720
// Section 10.4.7): a two byte SenseLength, the sense data and optional
// response data. When AllocationLength is non-zero the encoded segment is
// cropped to it.
type SCSIResponse struct {
	SenseData        []byte
	ResponseData     []byte
	AllocationLength int
}

// DecodeSCSIResponse parses an unpadded SCSI response data segment.
func DecodeSCSIResponse(b []byte) (*SCSIResponse, error) {
	r := &SCSIResponse{}
	if err := r.SetBytes(b); err != nil {
		return nil, err
	}
	return r, nil
}

// Format returns FormatSCSIResponse.
func (*SCSIResponse) Format() Format { return FormatSCSIResponse }

// UncroppedLen returns the segment length before cropping.
func (r *SCSIResponse) UncroppedLen() int {
	if len(r.SenseData) == 0 && len(r.ResponseData) == 0 {
		return 0
	}
	return senseLengthSize + len(r.SenseData) + len(r.ResponseData)
}

// Len returns the encoded length after cropping.
func (r *SCSIResponse) Len() int {
	n := r.UncroppedLen()
	if r.AllocationLength > 0 && n > r.AllocationLength {
		return r.AllocationLength
	}
	return n
}

// PaddedLen returns the wire length.
func (r *SCSIResponse) PaddedLen() int {
	return PaddedLength(r.Len())
}

// ResidualOverflow reports whether cropping dropped bytes.
func (r *SCSIResponse) ResidualOverflow() bool {
	return r.AllocationLength > 0 && r.UncroppedLen() > r.AllocationLength
}

// ResidualCount returns the number of bytes dropped by cropping.
func (r *SCSIResponse) ResidualCount() int {
	if !r.ResidualOverflow() {
		return 0
	}
	return r.UncroppedLen() - r.AllocationLength
}

// Bytes returns the cropped encoding without padding.
func (r *SCSIResponse) Bytes() []byte {
	n := r.UncroppedLen()
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	binary.BigEndian.PutUint16(buf, uint16(len(r.SenseData)))
	off := senseLengthSize + copy(buf[senseLengthSize:], r.SenseData)
	copy(buf[off:], r.ResponseData)
	return buf[:r.Len()]
}

// SetBytes parses b into sense and response data. The allocation length is
// left unchanged.
func (r *SCSIResponse) SetBytes(b []byte) error {
	r.SenseData, r.ResponseData = nil, nil
	if len(b) == 0 {
		return nil
	}
	if len(b) < senseLengthSize {
		return fmt.Errorf("%w: missing sense length", ErrMalformedSense)
	}
	senseLen := int(binary.BigEndian.Uint16(b))
	if senseLengthSize+senseLen > len(b) {
		return fmt.Errorf("%w: sense length %d exceeds segment", ErrMalformedSense, senseLen)
	}
	rest := b[senseLengthSize:]
	if senseLen > 0 {
		r.SenseData = append([]byte(nil), rest[:senseLen]...)
	}
	if len(rest) > senseLen {
		r.ResponseData = append([]byte(nil), rest[senseLen:]...)
	}
	return nil
}

// Append is not supported; set SenseData and ResponseData directly.
func (*SCSIResponse) Append(_ []byte) error {
	return ErrNotSupported
}

// Clear removes sense and response data.
func (r *SCSIResponse) Clear() {
	r.SenseData, r.ResponseData = nil, nil
}

// EncodeTo writes the padded, cropped encoding.
func (r *SCSIResponse) EncodeTo(dst []byte) (int, error) {
	return encodePadded(dst, r.Bytes())
}

// Chunks iterates over the cropped encoding.
func (r *SCSIResponse) Chunks(maxSize int) (*ChunkIterator, error) {
	return newChunkIterator(r.Bytes(), maxSize)
}
