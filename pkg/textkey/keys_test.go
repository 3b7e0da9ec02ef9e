package textkey

import "testing"

func TestLookupKey(t *testing.T) {
	tests := []struct {
		spelling string
		want     Key
		wantOK   bool
	}{
		{"MaxBurstLength", KeyMaxBurstLength, true},
		{"DefaultTime2Wait", KeyDefaultTime2Wait, true},
		{"Time2Wait", KeyDefaultTime2Wait, true},
		{"Time2Retain", KeyDefaultTime2Retain, true},
		{"IFMarkInt", KeyIFMarkInt, true},
		{"maxburstlength", 0, false},
		{"X-com.example.Foo", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.spelling, func(t *testing.T) {
			got, ok := LookupKey(tc.spelling)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("LookupKey(%q) = %v, %v; want %v, %v", tc.spelling, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestKeyCatalog(t *testing.T) {
	keys := AllKeys()
	if len(keys) != 27 {
		t.Fatalf("len(AllKeys()) = %d, want 27", len(keys))
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if !k.IsValid() {
			t.Errorf("%v.IsValid() = false", k)
		}
		name := k.String()
		if seen[name] {
			t.Errorf("duplicate spelling %q", name)
		}
		seen[name] = true
		if got, ok := LookupKey(name); !ok || got != k {
			t.Errorf("LookupKey(%q) = %v, %v; want %v", name, got, ok, k)
		}
	}
	if Key(0).IsValid() || Key(200).IsValid() {
		t.Error("out of range keys reported valid")
	}
	if Key(0).String() != "Unknown" {
		t.Errorf("Key(0).String() = %q, want Unknown", Key(0).String())
	}
}

func TestKeySet(t *testing.T) {
	ks := KeyDefaultTime2Retain.KeySet()
	if ks.Primary() != "DefaultTime2Retain" {
		t.Errorf("Primary() = %q, want DefaultTime2Retain", ks.Primary())
	}
	for _, s := range []string{"DefaultTime2Retain", "Time2Retain"} {
		if !ks.Matches(s) {
			t.Errorf("Matches(%q) = false", s)
		}
	}
	if ks.Matches("DefaultTime2Wait") {
		t.Error("Matches(DefaultTime2Wait) = true")
	}
	if !ks.MatchesAny([]string{"foo", "Time2Retain"}) {
		t.Error("MatchesAny() = false")
	}

	values := ks.Values()
	values[0] = "changed"
	if ks.Primary() != "DefaultTime2Retain" {
		t.Error("Values() exposed internal storage")
	}
}

func TestNewKeySetPanicsWhenEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewKeySet() did not panic")
		}
	}()
	NewKeySet()
}
