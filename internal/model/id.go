package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// IDLength is the rendered width of a 128-bit identifier.
const IDLength = 32

// NewID returns a fresh random 128-bit identifier rendered as 32
// uppercase hex characters. Sessions, auth sessions, challenges, blob
// ids, share ids and share secrets all share this format.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b[:]))
}

// NormalizeID validates that s is a 128-bit hex identifier and returns
// its canonical uppercase form. The empty string is returned for
// anything else.
func NormalizeID(s string) string {
	if len(s) != IDLength {
		return ""
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ""
	}
	return strings.ToUpper(s)
}

// DecodeID returns the raw 16-byte value of an identifier, or nil if
// the identifier is malformed. Used where comparisons must run in
// constant time.
func DecodeID(s string) []byte {
	if len(s) != IDLength {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
