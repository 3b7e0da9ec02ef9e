package textkey

import (
	"fmt"
	"regexp"
	"strings"
)

var textValuePattern = regexp.MustCompile(`^[\[\]a-zA-Z0-9.:;_@/+-]+$`)

// TokenizeKeyValuePairs splits a text data segment payload into its
// "key=value" strings. Empty tokens (padding, trailing separators) are
// dropped.
func TokenizeKeyValuePairs(text string) []string {
	parts := strings.Split(text, string(PairSeparator))
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// SplitKeyValuePair splits "key=value" into key and value. The key must be
// non-empty and the pair must contain exactly one '='.
func SplitKeyValuePair(pair string) (key, value string, err error) {
	key, value, found := strings.Cut(pair, string(KeyValueSeparator))
	if !found || key == "" || strings.ContainsRune(value, KeyValueSeparator) {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedPair, pair)
	}
	if len(key) > MaxKeyLength {
		return "", "", fmt.Errorf("%w: key too long", ErrMalformedPair)
	}
	return key, value, nil
}

// ToKeyValuePair joins a key and a value.
func ToKeyValuePair(key, value string) string {
	return key + string(KeyValueSeparator) + value
}

// JoinKeyValuePairs concatenates pairs into a text payload, terminating
// every pair with a null byte.
func JoinKeyValuePairs(pairs []string) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p)
		b.WriteByte(PairSeparator)
	}
	return b.String()
}

// SplitValues splits a comma separated value list.
func SplitValues(values string) []string {
	return strings.Split(values, string(ListSeparator))
}

// JoinValues builds a comma separated value list.
func JoinValues(values []string) string {
	return strings.Join(values, string(ListSeparator))
}

// IsValidTextValue reports whether value is a non-empty simple value made
// of the characters RFC 3720 allows in names, lists and numbers.
func IsValidTextValue(value string) bool {
	return len(value) <= MaxValueLength && textValuePattern.MatchString(value)
}

// IntersectValues returns the first offered value that is also supported.
// The offering side's order decides the preference.
func IntersectValues(offered, supported []string) (string, bool) {
	for _, o := range offered {
		for _, s := range supported {
			if o == s {
				return o, true
			}
		}
	}
	return "", false
}

// ParseBoolean parses "Yes" or "No".
func ParseBoolean(value string) (bool, error) {
	switch value {
	case Yes:
		return true, nil
	case No:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBoolean, value)
	}
}

// FormatBoolean returns "Yes" or "No".
func FormatBoolean(b bool) string {
	if b {
		return Yes
	}
	return No
}

// IsVendorKey reports whether key uses the vendor specific "X-" prefix.
func IsVendorKey(key string) bool {
	return strings.HasPrefix(key, VendorPrefix)
}
