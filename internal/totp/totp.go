// Package totp verifies RFC 6238 time-based one-time passwords with
// the parameters the synxit protocol fixes: HMAC-SHA1, 6 digits and a
// 30-second step, accepting the current step and one step of skew in
// either direction.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	digits = 6
	period = 30 * time.Second
	skew   = 1

	secretBytes = 20
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewSecret generates a fresh base32-encoded shared secret.
func NewSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return encoding.EncodeToString(b), nil
}

// Generate returns the code for the base32 secret at the given time.
func Generate(secret string, now time.Time) (string, error) {
	key, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}
	return hotp(key, uint64(now.Unix()/int64(period.Seconds()))), nil
}

// Validate reports whether code is valid for the base32 secret at the
// given time.
func Validate(secret, code string, now time.Time) bool {
	if len(code) != digits {
		return false
	}
	key, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return false
	}

	counter := now.Unix() / int64(period.Seconds())
	for delta := int64(-skew); delta <= skew; delta++ {
		if counter+delta < 0 {
			continue
		}
		expected := hotp(key, uint64(counter+delta))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// hotp computes one RFC 4226 value for the counter.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%06d", value%1000000)
}
