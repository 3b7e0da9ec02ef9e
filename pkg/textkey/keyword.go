package textkey

// Reserved values and frequently used key values (RFC 3720 Section 5.2).
const (
	NotUnderstood = "NotUnderstood"
	Reject        = "Reject"
	Irrelevant    = "Irrelevant"

	Yes = "Yes"
	No  = "No"

	None      = "None"
	CRC32C    = "CRC32C"
	Normal    = "Normal"
	Discovery = "Discovery"

	// All is the SendTargets value requesting every target.
	All = "All"
)

// Text syntax separators.
const (
	PairSeparator     = '\x00'
	KeyValueSeparator = '='
	ListSeparator     = ','
	RangeSeparator    = '~'
)

// Limits from RFC 3720 Section 5.1.
const (
	// MaxKeyLength is the maximum length of a key name in bytes.
	MaxKeyLength = 63

	// MaxValueLength is the maximum length of a value in bytes.
	MaxValueLength = 255

	// VendorPrefix introduces vendor specific keys.
	VendorPrefix = "X-"
)
