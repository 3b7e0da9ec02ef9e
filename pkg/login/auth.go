package login

import (
	"fmt"
	"slices"
	"strings"

	"github.com/backkem/iscsi/pkg/textkey"
)

// authKeyPrefixes are the key prefixes of the authentication methods of
// RFC 3720 Section 11.
var authKeyPrefixes = []string{"CHAP_", "SRP_", "KRB_", "SPKM_"}

// authenticate consumes the authentication keys of a security stage
// request and returns the remaining pairs. Only AuthMethod=None is
// accepted; keys of other methods are dropped.
func authenticate(pairs []string, response *[]string) ([]string, error) {
	rest := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key, value, err := textkey.SplitKeyValuePair(pair)
		if err != nil {
			// Reported by the negotiator.
			rest = append(rest, pair)
			continue
		}
		switch {
		case key == textkey.KeyAuthMethod.String():
			if !slices.Contains(textkey.SplitValues(value), textkey.None) {
				return nil, fmt.Errorf("%w: %q", ErrAuthMethodRejected, value)
			}
			*response = append(*response, textkey.ToKeyValuePair(key, textkey.None))
		case isAuthKey(key):
		default:
			rest = append(rest, pair)
		}
	}
	return rest, nil
}

func isAuthKey(key string) bool {
	for _, prefix := range authKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
