package pdu

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/backkem/iscsi/pkg/datasegment"
)

// Login flag layout of BHS byte 1 (RFC 3720 Section 10.12). The transit
// flag T shares bit 7 with the final flag of other opcodes.
const (
	loginReservedMask byte = 0x30
	loginCSGMask      byte = 0x0c
	loginCSGShift          = 2
	loginNSGMask      byte = 0x03
)

// VersionSupported is the only iSCSI version defined by RFC 3720.
const VersionSupported uint8 = 0x00

// ISID is the 6-byte initiator part of the session identifier.
type ISID [6]byte

// String returns the ISID as lower case hex.
func (i ISID) String() string {
	return hex.EncodeToString(i[:])
}

// IsZero reports whether every byte is zero.
func (i ISID) IsZero() bool {
	return i == ISID{}
}

// loginFields holds the fields Login Requests and Responses share.
type loginFields struct {
	Continue   bool
	CSG        LoginStage
	NSG        LoginStage
	VersionMax uint8
	ISID       ISID
	TSIH       uint16
}

func (f *loginFields) decodeLogin(h []byte) error {
	if err := reservedBits(h, 1, loginReservedMask); err != nil {
		return err
	}
	f.Continue = flag(h[1], flagContinue)
	f.CSG = LoginStage((h[1] & loginCSGMask) >> loginCSGShift)
	f.NSG = LoginStage(h[1] & loginNSGMask)
	f.VersionMax = h[2]
	copy(f.ISID[:], h[8:14])
	f.TSIH = binary.BigEndian.Uint16(h[14:])
	return nil
}

func (f *loginFields) encodeLogin(h []byte) {
	setFlag(&h[1], flagContinue, f.Continue)
	h[1] |= (byte(f.CSG) << loginCSGShift) & loginCSGMask
	h[1] |= byte(f.NSG) & loginNSGMask
	h[2] = f.VersionMax
	copy(h[8:14], f.ISID[:])
	binary.BigEndian.PutUint16(h[14:], f.TSIH)
}

// checkLogin validates the stage fields against the transit flag.
func (f *loginFields) checkLogin(transit bool) error {
	switch {
	case transit && f.Continue:
		return invalidField("login with both transit and continue flags")
	case f.CSG != LoginStageSecurityNegotiation && f.CSG != LoginStageOperationalNegotiation:
		return invalidField("login current stage %d", f.CSG)
	case !transit && f.NSG != 0:
		return invalidField("login next stage %d without transit", f.NSG)
	case transit && !f.NSG.IsValid():
		return invalidField("login next stage %d", f.NSG)
	case transit && f.NSG <= f.CSG:
		return invalidField("login transition %v -> %v", f.CSG, f.NSG)
	case f.VersionMax != VersionSupported:
		return invalidField("login version-max %d", f.VersionMax)
	}
	return nil
}

// LoginRequestParser handles Login Request PDUs (RFC 3720 Section 10.12).
// Login PDUs are never digest protected since digests are negotiated by
// the login itself.
type LoginRequestParser struct {
	InitiatorSequence
	loginFields
	VersionMin   uint8
	ConnectionID uint16
}

func (*LoginRequestParser) OperationCode() OperationCode { return OpLoginRequest }

// CanHaveDigests returns false.
func (*LoginRequestParser) CanHaveDigests() bool { return false }

func (*LoginRequestParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatText }

func (p *LoginRequestParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if err := p.checkLogin(bhs.Final); err != nil {
		return err
	}
	if p.VersionMin != VersionSupported {
		return invalidField("login version-min %d", p.VersionMin)
	}
	return nil
}

func (p *LoginRequestParser) decode(h []byte) error {
	if err := firstError(reserved(h, 22, 24), reserved(h, 32, 48)); err != nil {
		return err
	}
	if err := p.decodeLogin(h); err != nil {
		return err
	}
	p.VersionMin = h[3]
	p.ConnectionID = binary.BigEndian.Uint16(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *LoginRequestParser) encode(h []byte) {
	p.encodeLogin(h)
	h[3] = p.VersionMin
	binary.BigEndian.PutUint16(h[20:], p.ConnectionID)
	p.encodeSequence(h)
}

// LoginResponseParser handles Login Response PDUs (RFC 3720 Section 10.13).
type LoginResponseParser struct {
	TargetSequence
	loginFields
	VersionActive uint8
	Status        LoginStatus
}

func (*LoginResponseParser) OperationCode() OperationCode { return OpLoginResponse }

// CanHaveDigests returns false.
func (*LoginResponseParser) CanHaveDigests() bool { return false }

func (*LoginResponseParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatText }

func (p *LoginResponseParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if p.Status != LoginStatusSuccess && bhs.Final {
		return invalidField("failed login response %v with transit flag", p.Status)
	}
	if err := p.checkLogin(bhs.Final); err != nil {
		return err
	}
	if p.VersionActive != VersionSupported {
		return invalidField("login version-active %d", p.VersionActive)
	}
	return nil
}

func (p *LoginResponseParser) decode(h []byte) error {
	if err := firstError(reserved(h, 20, 24), reserved(h, 38, 48)); err != nil {
		return err
	}
	if err := p.decodeLogin(h); err != nil {
		return err
	}
	p.VersionActive = h[3]
	p.decodeSequence(h)
	p.Status = LoginStatus(binary.BigEndian.Uint16(h[36:]))
	return nil
}

func (p *LoginResponseParser) encode(h []byte) {
	p.encodeLogin(h)
	h[3] = p.VersionActive
	p.encodeSequence(h)
	binary.BigEndian.PutUint16(h[36:], uint16(p.Status))
}
