package beacon

import (
	"strings"
	"testing"
)

func TestNewCodeShape(t *testing.T) {
	code, err := NewCode(TypeCheckIn.TypePrefix())
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	prefix := TypeCheckIn.TypePrefix()
	if !strings.HasPrefix(code, prefix) {
		t.Fatalf("code %q missing prefix %q", code, prefix)
	}
	random := strings.TrimPrefix(code, prefix)
	if len(random) != CodeLength {
		t.Fatalf("random part len = %d, want %d", len(random), CodeLength)
	}
	for _, r := range random {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code rune %q outside alphabet", r)
		}
	}
}

func TestCodeAlphabetAvoidsAmbiguousSymbols(t *testing.T) {
	for _, banned := range "01IO" {
		if strings.ContainsRune(codeAlphabet, banned) {
			t.Fatalf("alphabet contains ambiguous symbol %q", banned)
		}
	}
	if len(codeAlphabet) != 32 {
		t.Fatalf("alphabet len = %d, want 32", len(codeAlphabet))
	}
}

func TestNewCodeVariesAcrossMints(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := NewCode(TypeVendor.TypePrefix())
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("code %q minted twice in 100 attempts", code)
		}
		seen[code] = struct{}{}
	}
}

func TestCanonicalCode(t *testing.T) {
	got := CanonicalCode("  cabcd2345 ")
	want := "CABCD2345"
	if got != want {
		t.Fatalf("canonical = %q, want %q", got, want)
	}
}

func TestTypePrefixesAreDistinct(t *testing.T) {
	seen := make(map[string]Type)
	for _, bt := range Types {
		prefix := bt.TypePrefix()
		if prefix == "" {
			t.Fatalf("type %q has empty prefix", bt)
		}
		if other, dup := seen[prefix]; dup {
			t.Fatalf("types %q and %q share prefix %q", bt, other, prefix)
		}
		seen[prefix] = bt
	}
}
