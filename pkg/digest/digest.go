// Package digest implements the iSCSI header and data digest algorithms.
//
// A Digest is negotiated per connection through the HeaderDigest and
// DataDigest text keys (RFC 3720 Section 12.1). Header and data digests
// are negotiated independently and the same Digest value can serve both.
package digest

import (
	"encoding/binary"
	"hash/crc32"
)

// Digest algorithm names as they appear in HeaderDigest/DataDigest values.
const (
	NameCRC32C = "CRC32C"
	NameNone   = "None"
)

// CRC32CSize is the wire size of a CRC32C digest in bytes.
const CRC32CSize = 4

// Digest computes and verifies an integrity value over one or more
// byte regions. Implementations are stateless and safe for concurrent use.
type Digest interface {
	// Name returns the negotiated name of the algorithm.
	Name() string

	// Size returns the number of bytes the digest occupies on the wire.
	Size() int

	// Append computes the digest over parts and appends its wire
	// representation to dst.
	Append(dst []byte, parts ...[]byte) []byte

	// Verify recomputes the digest over parts and compares it with the
	// received wire bytes. Returns ErrMismatch on difference.
	Verify(received []byte, parts ...[]byte) error
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C is the Castagnoli CRC mandated by RFC 3720 Section 12.1.
// The 32-bit result is transmitted least significant byte first.
type CRC32C struct{}

// Name returns "CRC32C".
func (CRC32C) Name() string { return NameCRC32C }

// Size returns 4.
func (CRC32C) Size() int { return CRC32CSize }

// Sum returns the CRC32C value over the concatenation of parts.
func (CRC32C) Sum(parts ...[]byte) uint32 {
	var crc uint32
	for _, p := range parts {
		crc = crc32.Update(crc, castagnoli, p)
	}
	return crc
}

// Append appends the little-endian CRC32C of parts to dst.
func (c CRC32C) Append(dst []byte, parts ...[]byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, c.Sum(parts...))
}

// Verify checks received against the CRC32C of parts.
func (c CRC32C) Verify(received []byte, parts ...[]byte) error {
	if len(received) != CRC32CSize {
		return ErrInvalidLength
	}
	if binary.LittleEndian.Uint32(received) != c.Sum(parts...) {
		return ErrMismatch
	}
	return nil
}

// None is the null digest. It occupies no bytes and always verifies.
type None struct{}

// Name returns "None".
func (None) Name() string { return NameNone }

// Size returns 0.
func (None) Size() int { return 0 }

// Append returns dst unchanged.
func (None) Append(dst []byte, _ ...[]byte) []byte { return dst }

// Verify succeeds for an empty received value.
func (None) Verify(received []byte, _ ...[]byte) error {
	if len(received) != 0 {
		return ErrInvalidLength
	}
	return nil
}

// ByName returns the Digest for a negotiated HeaderDigest or DataDigest
// value. An empty name selects None.
func ByName(name string) (Digest, error) {
	switch name {
	case NameCRC32C:
		return CRC32C{}, nil
	case NameNone, "":
		return None{}, nil
	default:
		return nil, ErrUnknownDigest
	}
}

// SizeOf returns d.Size(), treating a nil Digest as None.
func SizeOf(d Digest) int {
	if d == nil {
		return 0
	}
	return d.Size()
}
