package pdu

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/digest"
)

// Reader reads one PDU at a time from a byte stream.
type Reader struct {
	r            io.Reader
	headerDigest digest.Digest
	dataDigest   digest.Digest
	maxData      int
	buf          []byte
}

// NewReader creates a reader with no digests and no data limit.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// SetDigests selects the digests expected on subsequent PDUs.
func (sr *Reader) SetDigests(header, data digest.Digest) {
	sr.headerDigest = header
	sr.dataDigest = data
}

// SetMaxDataSegmentLength limits the accepted DataSegmentLength.
// Zero disables the check.
func (sr *Reader) SetMaxDataSegmentLength(n int) {
	sr.maxData = n
}

// Read reads and decodes the next PDU. io.EOF is returned unwrapped when
// the stream ends on a PDU boundary.
func (sr *Reader) Read() (*ProtocolDataUnit, error) {
	var header [BHSSize]byte
	if _, err := io.ReadFull(sr.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}

	var bhs BasicHeaderSegment
	if _, err := bhs.Decode(header[:]); err != nil {
		return nil, err
	}
	if sr.maxData > 0 && int(bhs.DataSegmentLength) > sr.maxData {
		return nil, fmt.Errorf("%w: %d > %d", ErrDataSegmentTooLong, bhs.DataSegmentLength, sr.maxData)
	}

	p := &ProtocolDataUnit{BHS: bhs}
	hd, dd := p.digests(sr.headerDigest, sr.dataDigest)
	total := BHSSize + bhs.AHSLength() + hd.Size()
	if bhs.DataSegmentLength > 0 {
		total += datasegment.PaddedLength(int(bhs.DataSegmentLength)) + dd.Size()
	}

	if cap(sr.buf) < total {
		sr.buf = make([]byte, total)
	}
	buf := sr.buf[:total]
	copy(buf, header[:])
	if _, err := io.ReadFull(sr.r, buf[BHSSize:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}

	if _, err := p.decode(buf, hd, dd); err != nil {
		return nil, err
	}
	p.HeaderDigest = sr.headerDigest
	p.DataDigest = sr.dataDigest
	return p, nil
}

// Writer writes PDUs to a byte stream. It is safe for concurrent use.
type Writer struct {
	mu           sync.Mutex
	w            io.Writer
	headerDigest digest.Digest
	dataDigest   digest.Digest
}

// NewWriter creates a writer with no digests.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetDigests selects the digests applied to subsequent PDUs.
func (sw *Writer) SetDigests(header, data digest.Digest) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.headerDigest = header
	sw.dataDigest = data
}

// Write encodes p with the writer's digests and writes it in one call.
func (sw *Writer) Write(p *ProtocolDataUnit) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	hd, dd := p.digests(sw.headerDigest, sw.dataDigest)
	buf := make([]byte, p.size(hd, dd))
	if _, err := p.encodeTo(buf, hd, dd); err != nil {
		return err
	}
	if _, err := sw.w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamWriteFailed, err)
	}
	return nil
}
