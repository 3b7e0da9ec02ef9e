package pdu

import "fmt"

// LoginStage is the CSG/NSG value of Login PDUs (RFC 3720 Section 10.12.3).
type LoginStage uint8

const (
	// LoginStageSecurityNegotiation is the security negotiation stage.
	LoginStageSecurityNegotiation LoginStage = 0

	// LoginStageOperationalNegotiation is the login operational
	// negotiation stage.
	LoginStageOperationalNegotiation LoginStage = 1

	// LoginStageFullFeature is the full feature phase. It is only valid
	// as a next stage.
	LoginStageFullFeature LoginStage = 3

	// loginStageReserved is the unused value 2.
	loginStageReserved LoginStage = 2
)

// String returns a human-readable name for the stage.
func (s LoginStage) String() string {
	switch s {
	case LoginStageSecurityNegotiation:
		return "SecurityNegotiation"
	case LoginStageOperationalNegotiation:
		return "LoginOperationalNegotiation"
	case LoginStageFullFeature:
		return "FullFeaturePhase"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the stage is a defined value.
func (s LoginStage) IsValid() bool {
	return s <= LoginStageFullFeature && s != loginStageReserved
}

// LoginStatus combines the Status-Class and Status-Detail bytes of a Login
// Response (RFC 3720 Section 10.13.5).
type LoginStatus uint16

const (
	LoginStatusSuccess                 LoginStatus = 0x0000
	LoginStatusTargetMovedTemporarily  LoginStatus = 0x0101
	LoginStatusTargetMovedPermanently  LoginStatus = 0x0102
	LoginStatusInitiatorError          LoginStatus = 0x0200
	LoginStatusAuthenticationFailure   LoginStatus = 0x0201
	LoginStatusAuthorizationFailure    LoginStatus = 0x0202
	LoginStatusNotFound                LoginStatus = 0x0203
	LoginStatusTargetRemoved           LoginStatus = 0x0204
	LoginStatusUnsupportedVersion      LoginStatus = 0x0205
	LoginStatusTooManyConnections      LoginStatus = 0x0206
	LoginStatusMissingParameter        LoginStatus = 0x0207
	LoginStatusCantIncludeInSession    LoginStatus = 0x0208
	LoginStatusSessionTypeNotSupported LoginStatus = 0x0209
	LoginStatusSessionDoesNotExist     LoginStatus = 0x020a
	LoginStatusInvalidDuringLogin      LoginStatus = 0x020b
	LoginStatusTargetError             LoginStatus = 0x0300
	LoginStatusServiceUnavailable      LoginStatus = 0x0301
	LoginStatusOutOfResources          LoginStatus = 0x0302
)

var loginStatusNames = map[LoginStatus]string{
	LoginStatusSuccess:                 "Success",
	LoginStatusTargetMovedTemporarily:  "TargetMovedTemporarily",
	LoginStatusTargetMovedPermanently:  "TargetMovedPermanently",
	LoginStatusInitiatorError:          "InitiatorError",
	LoginStatusAuthenticationFailure:   "AuthenticationFailure",
	LoginStatusAuthorizationFailure:    "AuthorizationFailure",
	LoginStatusNotFound:                "NotFound",
	LoginStatusTargetRemoved:           "TargetRemoved",
	LoginStatusUnsupportedVersion:      "UnsupportedVersion",
	LoginStatusTooManyConnections:      "TooManyConnections",
	LoginStatusMissingParameter:        "MissingParameter",
	LoginStatusCantIncludeInSession:    "CantIncludeInSession",
	LoginStatusSessionTypeNotSupported: "SessionTypeNotSupported",
	LoginStatusSessionDoesNotExist:     "SessionDoesNotExist",
	LoginStatusInvalidDuringLogin:      "InvalidDuringLogin",
	LoginStatusTargetError:             "TargetError",
	LoginStatusServiceUnavailable:      "ServiceUnavailable",
	LoginStatusOutOfResources:          "OutOfResources",
}

// Class returns the Status-Class byte.
func (s LoginStatus) Class() uint8 { return uint8(s >> 8) }

// Detail returns the Status-Detail byte.
func (s LoginStatus) Detail() uint8 { return uint8(s) }

// String returns a human-readable name for the status.
func (s LoginStatus) String() string {
	if name, ok := loginStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LoginStatus(0x%04x)", uint16(s))
}

// IsValid returns true if the status is a defined value.
func (s LoginStatus) IsValid() bool {
	_, ok := loginStatusNames[s]
	return ok
}

// TaskAttributes is the ATTR field of a SCSI Command (RFC 3720 Section 10.3.1).
type TaskAttributes uint8

const (
	TaskAttributesUntagged    TaskAttributes = 0
	TaskAttributesSimple      TaskAttributes = 1
	TaskAttributesOrdered     TaskAttributes = 2
	TaskAttributesHeadOfQueue TaskAttributes = 3
	TaskAttributesACA         TaskAttributes = 4
)

// String returns a human-readable name for the task attributes.
func (a TaskAttributes) String() string {
	switch a {
	case TaskAttributesUntagged:
		return "Untagged"
	case TaskAttributesSimple:
		return "Simple"
	case TaskAttributesOrdered:
		return "Ordered"
	case TaskAttributesHeadOfQueue:
		return "HeadOfQueue"
	case TaskAttributesACA:
		return "ACA"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the attributes are a defined value.
func (a TaskAttributes) IsValid() bool {
	return a <= TaskAttributesACA
}

// TaskManagementFunction is the function code of a Task Management Request.
type TaskManagementFunction uint8

const (
	TaskManagementAbortTask        TaskManagementFunction = 1
	TaskManagementAbortTaskSet     TaskManagementFunction = 2
	TaskManagementClearACA         TaskManagementFunction = 3
	TaskManagementClearTaskSet     TaskManagementFunction = 4
	TaskManagementLogicalUnitReset TaskManagementFunction = 5
	TaskManagementTargetWarmReset  TaskManagementFunction = 6
	TaskManagementTargetColdReset  TaskManagementFunction = 7
	TaskManagementTaskReassign     TaskManagementFunction = 8
)

// IsValid returns true if the function is a defined value.
func (f TaskManagementFunction) IsValid() bool {
	return f >= TaskManagementAbortTask && f <= TaskManagementTaskReassign
}

// TaskManagementResponseCode is the Response field of a Task Management
// Response.
type TaskManagementResponseCode uint8

const (
	TaskManagementFunctionComplete                       TaskManagementResponseCode = 0
	TaskManagementTaskDoesNotExist                       TaskManagementResponseCode = 1
	TaskManagementLUNDoesNotExist                        TaskManagementResponseCode = 2
	TaskManagementTaskStillAllegiant                     TaskManagementResponseCode = 3
	TaskManagementTaskAllegianceReassignmentNotSupported TaskManagementResponseCode = 4
	TaskManagementFunctionNotSupported                   TaskManagementResponseCode = 5
	TaskManagementFunctionAuthorizationFailed            TaskManagementResponseCode = 6
	TaskManagementFunctionRejected                       TaskManagementResponseCode = 255
)

// LogoutReason is the reason code of a Logout Request.
type LogoutReason uint8

const (
	LogoutCloseSession                LogoutReason = 0
	LogoutCloseConnection             LogoutReason = 1
	LogoutRemoveConnectionForRecovery LogoutReason = 2
)

// IsValid returns true if the reason is a defined value.
func (r LogoutReason) IsValid() bool {
	return r <= LogoutRemoveConnectionForRecovery
}

// LogoutResponseCode is the Response field of a Logout Response.
type LogoutResponseCode uint8

const (
	LogoutConnectionClosed             LogoutResponseCode = 0
	LogoutCIDNotFound                  LogoutResponseCode = 1
	LogoutConnectionRecoveryNotSupport LogoutResponseCode = 2
	LogoutCleanupFailed                LogoutResponseCode = 3
)

// IsValid returns true if the response is a defined value.
func (r LogoutResponseCode) IsValid() bool {
	return r <= LogoutCleanupFailed
}

// SNACKType is the Type field of a SNACK Request.
type SNACKType uint8

const (
	SNACKDataR2T    SNACKType = 0
	SNACKStatus     SNACKType = 1
	SNACKDataACK    SNACKType = 2
	SNACKRDataSNACK SNACKType = 3
)

// IsValid returns true if the type is a defined value.
func (t SNACKType) IsValid() bool {
	return t <= SNACKRDataSNACK
}

// RejectReason is the Reason field of a Reject PDU (RFC 3720 Section 10.17.1).
type RejectReason uint8

const (
	RejectDataDigestError        RejectReason = 0x02
	RejectSNACKReject            RejectReason = 0x03
	RejectProtocolError          RejectReason = 0x04
	RejectCommandNotSupported    RejectReason = 0x05
	RejectImmediateCommandReject RejectReason = 0x06
	RejectTaskInProgress         RejectReason = 0x07
	RejectInvalidDataACK         RejectReason = 0x08
	RejectInvalidPDUField        RejectReason = 0x09
	RejectLongOperationReject    RejectReason = 0x0a
	RejectNegotiationReset       RejectReason = 0x0b
	RejectWaitingForLogout       RejectReason = 0x0c
)

// String returns a human-readable name for the reason.
func (r RejectReason) String() string {
	switch r {
	case RejectDataDigestError:
		return "DataDigestError"
	case RejectSNACKReject:
		return "SNACKReject"
	case RejectProtocolError:
		return "ProtocolError"
	case RejectCommandNotSupported:
		return "CommandNotSupported"
	case RejectImmediateCommandReject:
		return "ImmediateCommandReject"
	case RejectTaskInProgress:
		return "TaskInProgress"
	case RejectInvalidDataACK:
		return "InvalidDataACK"
	case RejectInvalidPDUField:
		return "InvalidPDUField"
	case RejectLongOperationReject:
		return "LongOperationReject"
	case RejectNegotiationReset:
		return "NegotiationReset"
	case RejectWaitingForLogout:
		return "WaitingForLogout"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the reason is a defined value.
func (r RejectReason) IsValid() bool {
	return r >= RejectDataDigestError && r <= RejectWaitingForLogout
}

// AsyncEvent is the AsyncEvent field of an Asynchronous Message.
type AsyncEvent uint8

const (
	AsyncEventSCSI                 AsyncEvent = 0
	AsyncEventLogoutRequest        AsyncEvent = 1
	AsyncEventConnectionDrop       AsyncEvent = 2
	AsyncEventSessionDrop          AsyncEvent = 3
	AsyncEventParameterNegotiation AsyncEvent = 4
	AsyncEventVendorSpecific       AsyncEvent = 255
)

// SCSI response codes (RFC 3720 Section 10.4.3).
const (
	SCSIResponseCommandCompleted uint8 = 0x00
	SCSIResponseTargetFailure    uint8 = 0x01
)

// SCSI status codes (SAM-2) carried in SCSI Response and Data-In PDUs.
const (
	SCSIStatusGood                uint8 = 0x00
	SCSIStatusCheckCondition      uint8 = 0x02
	SCSIStatusBusy                uint8 = 0x08
	SCSIStatusReservationConflict uint8 = 0x18
	SCSIStatusTaskSetFull         uint8 = 0x28
	SCSIStatusACAActive           uint8 = 0x30
	SCSIStatusTaskAborted         uint8 = 0x40
)

// ReservedTag is the reserved task tag value 0xffffffff.
const ReservedTag uint32 = 0xffffffff
