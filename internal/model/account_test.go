package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Valid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	session := Session{ID: NewID(), CreatedAt: now.Unix(), LastUsed: now.Unix()}

	assert.True(t, session.Valid(time.Hour, now.Add(time.Minute)))
	assert.False(t, session.Valid(time.Hour, now.Add(2*time.Hour)))
}

func TestAuthSession_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	session := AuthSession{ID: NewID(), ExpiresAt: now.Add(time.Hour).Unix()}

	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(2*time.Hour)))
}

func TestAuthSession_HasCompletedMFA(t *testing.T) {
	session := AuthSession{CompletedMFA: []uint8{5, RecoveryMethodID}}

	assert.True(t, session.HasCompletedMFA(5))
	assert.True(t, session.HasCompletedMFA(RecoveryMethodID))
	assert.False(t, session.HasCompletedMFA(7))
}

func TestMFA_Method(t *testing.T) {
	mfa := MFA{Methods: []MFAMethod{
		{ID: 3, Name: "phone", Type: MFAMethodTOTP},
		{ID: 9, Name: "key", Type: MFAMethodU2F},
	}}

	method, ok := mfa.Method(9)
	require.True(t, ok)
	assert.Equal(t, "key", method.Name)

	_, ok = mfa.Method(4)
	assert.False(t, ok)
}

func TestAccount_AuthSession_SkipsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	account := NewAccount(Handle{LocalPart: "alice", Domain: "example.com"}, "hash", "salt", "default")

	expired := AuthSession{ID: NewID(), ExpiresAt: now.Add(-time.Minute).Unix()}
	live := AuthSession{ID: NewID(), ExpiresAt: now.Add(time.Hour).Unix()}
	account.Auth.AuthSessions = []AuthSession{expired, live}

	_, ok := account.AuthSession(expired.ID, now)
	assert.False(t, ok)

	got, ok := account.AuthSession(live.ID, now)
	require.True(t, ok)
	assert.Equal(t, live.ID, got.ID)
}

func TestAccount_DeleteSession(t *testing.T) {
	account := NewAccount(Handle{LocalPart: "alice", Domain: "example.com"}, "hash", "salt", "default")
	session := Session{ID: NewID()}
	account.Sessions = []Session{session}

	assert.True(t, account.DeleteSession(session.ID))
	assert.Empty(t, account.Sessions)
	assert.False(t, account.DeleteSession(session.ID))
}
