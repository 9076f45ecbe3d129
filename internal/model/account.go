package model

import (
	"context"
	"time"
)

// AccountStore defines persistence operations for account records.
// Mutate serializes read-modify-write cycles per account: the whole
// record is loaded, changed in memory and written back atomically
// while that account's lock is held.
type AccountStore interface {
	Load(ctx context.Context, handle Handle) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Exists(ctx context.Context, handle Handle) (bool, error)
	Mutate(ctx context.Context, handle Handle, fn func(*Account) error) error
	All(ctx context.Context) ([]Handle, error)
}

// Account is the whole per-account record persisted as data.json.
// The password hash, salt and the encrypted payloads are opaque to the
// server; only the client can interpret them.
type Account struct {
	Handle         Handle         `json:"-"`
	Tier           string         `json:"tier"`
	Sessions       []Session      `json:"sessions"`
	Auth           Auth           `json:"auth"`
	ForeignKeyring string         `json:"foreign_keyring"`
}

// Auth holds the authentication material of an account.
type Auth struct {
	Hash         string        `json:"hash"`
	Salt         string        `json:"salt"`
	AuthSessions []AuthSession `json:"auth_sessions"`
	MFA          MFA           `json:"mfa"`
	Encrypted    EncryptedData `json:"encrypted"`
}

// EncryptedData carries the client-encrypted payloads stored for an
// account. The server never decrypts any of them.
type EncryptedData struct {
	MasterKey string `json:"master_key"`
	Keyring   string `json:"keyring"`
	BlobMap   string `json:"blob_map"`
}

// Session represents a completed login. Sessions have a fixed
// lifetime: LastUsed is set at creation and deliberately never
// refreshed afterwards.
type Session struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	LastUsed  int64  `json:"last_used"`
	Root      bool   `json:"root"`
}

// Valid reports whether the session is still within its lifetime.
func (s Session) Valid(timeout time.Duration, now time.Time) bool {
	return now.Unix() < s.LastUsed+int64(timeout.Seconds())
}

// AuthSession tracks one in-progress login attempt.
type AuthSession struct {
	ID              string `json:"id"`
	ExpiresAt       int64  `json:"expires_at"`
	Challenge       string `json:"challenge"`
	CompletedMFA    []uint8 `json:"completed_mfa"`
	PasswordCorrect bool   `json:"password_correct"`
}

// Expired reports whether the auth session has passed its deadline.
// Expiry is checked lazily on access; nothing sweeps it in the
// background.
func (a AuthSession) Expired(now time.Time) bool {
	return now.Unix() >= a.ExpiresAt
}

// HasCompletedMFA reports whether the given method id has already been
// completed on this auth session.
func (a AuthSession) HasCompletedMFA(id uint8) bool {
	for _, m := range a.CompletedMFA {
		if m == id {
			return true
		}
	}
	return false
}

// RecoveryMethodID is the sentinel method id recorded when a recovery
// code is consumed in place of a regular MFA method.
const RecoveryMethodID uint8 = 255

// RecoveryCodeCount is the fixed number of single-use recovery codes
// per account. A consumed code is left in place as an empty string.
const RecoveryCodeCount = 8

// MFAMethodType enumerates supported second-factor kinds.
type MFAMethodType string

const (
	MFAMethodTOTP MFAMethodType = "totp"
	MFAMethodU2F  MFAMethodType = "u2f"
)

// MFAMethod is one configured second factor. Data holds the method's
// secret material and is never exposed through listing operations.
type MFAMethod struct {
	ID      uint8         `json:"id"`
	Name    string        `json:"name"`
	Enabled bool          `json:"enabled"`
	Data    string        `json:"data"`
	Type    MFAMethodType `json:"type"`
}

// MFA is the per-account multi-factor configuration.
type MFA struct {
	Enabled       bool        `json:"enabled"`
	Methods       []MFAMethod `json:"methods"`
	RecoveryCodes []string    `json:"recovery_codes"`
	MinMethods    uint8       `json:"min_methods"`
}

// Method returns the configured method with the given id.
func (m *MFA) Method(id uint8) (MFAMethod, bool) {
	for _, method := range m.Methods {
		if method.ID == id {
			return method, true
		}
	}
	return MFAMethod{}, false
}

// NewAccount builds a fresh account record for registration.
func NewAccount(handle Handle, hash, salt, tier string) *Account {
	return &Account{
		Handle:   handle,
		Tier:     tier,
		Sessions: []Session{},
		Auth: Auth{
			Hash:         hash,
			Salt:         salt,
			AuthSessions: []AuthSession{},
			MFA: MFA{
				Methods:       []MFAMethod{},
				RecoveryCodes: []string{},
			},
		},
	}
}

// Session returns the session with the given id.
func (a *Account) Session(id string) (Session, bool) {
	id = NormalizeID(id)
	for _, s := range a.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// AuthSession returns a pointer into the auth session slice for the
// given id, skipping expired entries.
func (a *Account) AuthSession(id string, now time.Time) (*AuthSession, bool) {
	id = NormalizeID(id)
	for i := range a.Auth.AuthSessions {
		s := &a.Auth.AuthSessions[i]
		if s.ID == id && !s.Expired(now) {
			return s, true
		}
	}
	return nil, false
}

// DeleteSession removes the session with the given id and reports
// whether it was present.
func (a *Account) DeleteSession(id string) bool {
	id = NormalizeID(id)
	for i, s := range a.Sessions {
		if s.ID == id {
			a.Sessions = append(a.Sessions[:i], a.Sessions[i+1:]...)
			return true
		}
	}
	return false
}

// DeleteAuthSession removes the auth session with the given id.
func (a *Account) DeleteAuthSession(id string) {
	id = NormalizeID(id)
	for i, s := range a.Auth.AuthSessions {
		if s.ID == id {
			a.Auth.AuthSessions = append(a.Auth.AuthSessions[:i], a.Auth.AuthSessions[i+1:]...)
			return
		}
	}
}
