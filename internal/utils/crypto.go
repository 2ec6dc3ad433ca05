// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeChipID strips dashes and whitespace and upper-cases the rest, so
// every printed form of the same transponder number maps to one value.
func NormalizeChipID(chipID string) string {
	var b strings.Builder
	b.Grow(len(chipID))
	for _, r := range chipID {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// HashChipID is the only form in which a chip number is ever stored.
func HashChipID(chipID string) string {
	return HashString(NormalizeChipID(chipID))
}

func HashString(input string) string {
	return HashBytes([]byte(input))
}

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsSHA256Hex reports whether s looks like a hex-encoded sha256 digest.
func IsSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func GenerateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
