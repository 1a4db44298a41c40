package beacon

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet is the 32-symbol code alphabet: uppercase letters and digits
// excluding 0, 1, I, and O to avoid visual ambiguity.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of alphabet symbols in a minted code.
const CodeLength = 8

// TypePrefix returns the short human prefix minted into codes of this type.
func (t Type) TypePrefix() string {
	switch t {
	case TypeCheckIn:
		return "C"
	case TypeTicket:
		return "T"
	case TypeProductDrop:
		return "P"
	case TypeContentRelease:
		return "R"
	case TypeLiveEvent:
		return "L"
	case TypeChatRoom:
		return "H"
	case TypeVendor:
		return "V"
	case TypeReward:
		return "W"
	case TypeSponsor:
		return "S"
	}
	return "X"
}

// NewCode mints a human-shareable code from a cryptographically strong
// random source. Codes are not unique by construction; the registry
// enforces uniqueness with an insert-and-retry loop.
func NewCode(prefix string) (string, error) {
	raw := make([]byte, CodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.TrimSpace(prefix)))
	for _, v := range raw {
		b.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// CanonicalCode normalizes a code for case-insensitive comparison.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
