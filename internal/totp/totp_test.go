package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcKey is the shared secret from the RFC 4226 / RFC 6238 appendix
// test vectors ("12345678901234567890").
var rfcKey = []byte("12345678901234567890")

// rfcSecret is rfcKey in unpadded base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestHOTP_RFC4226Vectors(t *testing.T) {
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, code := range want {
		assert.Equal(t, code, hotp(rfcKey, uint64(counter)), "counter %d", counter)
	}
}

func TestValidate(t *testing.T) {
	// From the RFC 6238 SHA-1 vectors: T=59 falls in step 1.
	at := time.Unix(59, 0)

	assert.True(t, Validate(rfcSecret, "287082", at))
	assert.False(t, Validate(rfcSecret, "123456", at))
	assert.False(t, Validate(rfcSecret, "28708", at), "short code")
	assert.False(t, Validate("not base32!", "287082", at))
}

func TestValidate_AcceptsOneStepOfSkew(t *testing.T) {
	// Step 1's code must stay valid through step 2 and be rejected
	// from step 3 on.
	assert.True(t, Validate(rfcSecret, "287082", time.Unix(89, 0)))
	assert.False(t, Validate(rfcSecret, "287082", time.Unix(149, 0)))
}

func TestGenerate(t *testing.T) {
	code, err := Generate(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
	assert.True(t, Validate(rfcSecret, code, time.Unix(59, 0)))

	_, err = Generate("not base32!", time.Unix(59, 0))
	assert.Error(t, err)
}

func TestNewSecret(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	code := hotp(rfcKey, 0)
	assert.False(t, Validate(secret, code, time.Unix(0, 0)), "codes from another secret must fail")
}
