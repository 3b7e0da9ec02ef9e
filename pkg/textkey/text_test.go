package textkey

import (
	"errors"
	"reflect"
	"testing"
)

func TestTokenizeKeyValuePairs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single pair", "TargetName=iqn.example:disk1\x00", []string{"TargetName=iqn.example:disk1"}},
		{"padding", "A=1\x00B=2\x00\x00\x00", []string{"A=1", "B=2"}},
		{"no terminator", "A=1", []string{"A=1"}},
		{"empty", "", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenizeKeyValuePairs(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("TokenizeKeyValuePairs() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSplitKeyValuePair(t *testing.T) {
	tests := []struct {
		pair      string
		wantKey   string
		wantValue string
		wantErr   bool
	}{
		{"MaxBurstLength=1000", "MaxBurstLength", "1000", false},
		{"HeaderDigest=CRC32C,None", "HeaderDigest", "CRC32C,None", false},
		{"InitiatorAlias=", "InitiatorAlias", "", false},
		{"novalue", "", "", true},
		{"=value", "", "", true},
		{"a=b=c", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.pair, func(t *testing.T) {
			key, value, err := SplitKeyValuePair(tc.pair)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedPair) {
					t.Errorf("SplitKeyValuePair() error = %v, want %v", err, ErrMalformedPair)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitKeyValuePair() error = %v", err)
			}
			if key != tc.wantKey || value != tc.wantValue {
				t.Errorf("SplitKeyValuePair() = %q, %q; want %q, %q", key, value, tc.wantKey, tc.wantValue)
			}
		})
	}
}

func TestJoinKeyValuePairs(t *testing.T) {
	got := JoinKeyValuePairs([]string{ToKeyValuePair("A", "1"), ToKeyValuePair("B", "2")})
	if got != "A=1\x00B=2\x00" {
		t.Errorf("JoinKeyValuePairs() = %q", got)
	}
	if back := TokenizeKeyValuePairs(got); !reflect.DeepEqual(back, []string{"A=1", "B=2"}) {
		t.Errorf("TokenizeKeyValuePairs(JoinKeyValuePairs()) = %q", back)
	}
}

func TestIsValidTextValue(t *testing.T) {
	valid := []string{"None", "CRC32C", "iqn.2001-04.com.example:storage.disk2", "[::1]:3260", "a_b@c/d+e;f"}
	invalid := []string{"", "with space", "quote\"", "tab\t", string(make([]byte, 300))}

	for _, v := range valid {
		if !IsValidTextValue(v) {
			t.Errorf("IsValidTextValue(%q) = false", v)
		}
	}
	for _, v := range invalid {
		if IsValidTextValue(v) {
			t.Errorf("IsValidTextValue(%q) = true", v)
		}
	}
}

func TestIntersectValues(t *testing.T) {
	tests := []struct {
		name      string
		offered   []string
		supported []string
		want      string
		wantOK    bool
	}{
		{"offer order wins", []string{"CRC32C", "None"}, []string{"None", "CRC32C"}, "CRC32C", true},
		{"single match", []string{"SHA1", "None"}, []string{"None"}, "None", true},
		{"no match", []string{"SHA1"}, []string{"None"}, "", false},
		{"empty offer", nil, []string{"None"}, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := IntersectValues(tc.offered, tc.supported)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("IntersectValues() = %q, %v; want %q, %v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestParseBoolean(t *testing.T) {
	if v, err := ParseBoolean("Yes"); err != nil || !v {
		t.Errorf("ParseBoolean(Yes) = %v, %v", v, err)
	}
	if v, err := ParseBoolean("No"); err != nil || v {
		t.Errorf("ParseBoolean(No) = %v, %v", v, err)
	}
	if _, err := ParseBoolean("yes"); !errors.Is(err, ErrInvalidBoolean) {
		t.Errorf("ParseBoolean(yes) error = %v, want %v", err, ErrInvalidBoolean)
	}
	if FormatBoolean(true) != Yes || FormatBoolean(false) != No {
		t.Error("FormatBoolean() mismatch")
	}
}

func TestIsVendorKey(t *testing.T) {
	if !IsVendorKey("X-com.example.Feature") {
		t.Error("IsVendorKey(X-...) = false")
	}
	if IsVendorKey("MaxBurstLength") {
		t.Error("IsVendorKey(MaxBurstLength) = true")
	}
}
