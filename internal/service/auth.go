package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/totp"
)

// Auth implements the login state machine: challenge issuance,
// password proof verification, MFA accumulation and session minting.
type Auth struct {
	accounts           model.AccountStore
	sessionTimeout     time.Duration
	authSessionTimeout time.Duration
	logger             *logger.Logger
	now                func() time.Time
}

// NewAuth creates the auth service.
func NewAuth(accounts model.AccountStore, sessionTimeout, authSessionTimeout time.Duration, logger *logger.Logger) *Auth {
	return &Auth{
		accounts:           accounts,
		sessionTimeout:     sessionTimeout,
		authSessionTimeout: authSessionTimeout,
		logger:             logger,
		now:                time.Now,
	}
}

// PrepareResult carries everything the client needs to compute a
// password proof locally.
type PrepareResult struct {
	AuthSessionID string
	Challenge     string
	Salt          string
}

// Prepare creates a new auth session on the account and returns its
// challenge together with the stored salt.
func (a *Auth) Prepare(ctx context.Context, handle model.Handle) (PrepareResult, error) {
	var result PrepareResult

	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		now := a.now()
		session := model.AuthSession{
			ID:           model.NewID(),
			ExpiresAt:    now.Add(a.authSessionTimeout).Unix(),
			Challenge:    model.NewID(),
			CompletedMFA: []uint8{},
		}
		account.Auth.AuthSessions = append(account.Auth.AuthSessions, session)

		result = PrepareResult{
			AuthSessionID: session.ID,
			Challenge:     session.Challenge,
			Salt:          account.Auth.Salt,
		}
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return PrepareResult{}, model.CodeUserNotFound
	}
	if err != nil {
		return PrepareResult{}, fmt.Errorf("failed to prepare auth session: %w", err)
	}
	return result, nil
}

// PasswordProof is the expected client response to a challenge: the
// hex SHA-256 of the challenge's hex rendering concatenated with the
// stored password hash, in exactly that order.
func PasswordProof(challenge, storedHash string) string {
	sum := sha256.Sum256([]byte(challenge + storedHash))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword checks the proof against the auth session's
// challenge. Each auth session accepts at most one proof; once the
// password is verified, further submissions are rejected.
func (a *Auth) VerifyPassword(ctx context.Context, handle model.Handle, authSessionID, proof string) error {
	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		session, ok := account.AuthSession(authSessionID, a.now())
		if !ok {
			return model.CodeInvalidSession
		}
		if session.PasswordCorrect {
			return model.CodeInvalidCredentials
		}

		expected := PasswordProof(session.Challenge, account.Auth.Hash)
		if !hmac.Equal([]byte(expected), []byte(proof)) {
			return model.CodeInvalidCredentials
		}
		session.PasswordCorrect = true
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

// SubmitMFA verifies a second-factor code and records the method as
// completed on the auth session. Duplicate method ids are not
// re-added.
func (a *Auth) SubmitMFA(ctx context.Context, handle model.Handle, authSessionID string, methodID uint8, code string) error {
	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		if !account.Auth.MFA.Enabled {
			return model.CodeInvalidAction
		}
		session, ok := account.AuthSession(authSessionID, a.now())
		if !ok {
			return model.CodeInvalidSession
		}

		method, ok := account.Auth.MFA.Method(methodID)
		if !ok || !method.Enabled {
			return model.CodeInvalidCredentials
		}
		if !a.checkMFACode(method, code) {
			return model.CodeInvalidCredentials
		}

		if !session.HasCompletedMFA(methodID) {
			session.CompletedMFA = append(session.CompletedMFA, methodID)
		}
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

func (a *Auth) checkMFACode(method model.MFAMethod, code string) bool {
	switch method.Type {
	case model.MFAMethodTOTP:
		return totp.Validate(method.Data, code, a.now())
	default:
		// U2F methods cannot be verified over this channel
		return false
	}
}

// SubmitRecoveryCode consumes one single-use recovery code and records
// the recovery sentinel method on the auth session. A consumed code is
// blanked in place so the slot count stays fixed.
func (a *Auth) SubmitRecoveryCode(ctx context.Context, handle model.Handle, authSessionID, code string) error {
	if len(code) != RecoveryCodeLength {
		return model.CodeInvalidCredentials
	}

	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		if !account.Auth.MFA.Enabled {
			return model.CodeInvalidAction
		}
		session, ok := account.AuthSession(authSessionID, a.now())
		if !ok {
			return model.CodeInvalidSession
		}

		consumed := false
		for i, c := range account.Auth.MFA.RecoveryCodes {
			if c != "" && c == code {
				account.Auth.MFA.RecoveryCodes[i] = ""
				consumed = true
				break
			}
		}
		if !consumed {
			return model.CodeInvalidCredentials
		}

		if !session.HasCompletedMFA(model.RecoveryMethodID) {
			session.CompletedMFA = append(session.CompletedMFA, model.RecoveryMethodID)
		}
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

// CompleteStatus describes the outcome of a completion attempt.
type CompleteStatus string

const (
	// CompleteDone means a session was minted.
	CompleteDone CompleteStatus = "complete"
	// CompleteRequirePassword means no valid proof was submitted yet.
	CompleteRequirePassword CompleteStatus = "password_required"
	// CompleteRequireMFA means more second factors are needed.
	CompleteRequireMFA CompleteStatus = "mfa_required"
)

// CompleteResult is the outcome of Complete. Missing enumerates the
// enabled methods not yet completed when Status is CompleteRequireMFA;
// secret material is stripped.
type CompleteResult struct {
	Status    CompleteStatus
	SessionID string
	Missing   []model.MFAMethod
}

// CompleteSession converts a satisfied auth session into a long-lived
// session. The auth session is deleted on success and left in place on
// any other outcome.
func (a *Auth) CompleteSession(ctx context.Context, handle model.Handle, authSessionID string) (CompleteResult, error) {
	var result CompleteResult

	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		now := a.now()
		session, ok := account.AuthSession(authSessionID, now)
		if !ok {
			return model.CodeInvalidSession
		}

		if !session.PasswordCorrect {
			result = CompleteResult{Status: CompleteRequirePassword}
			return nil
		}

		mfa := &account.Auth.MFA
		if mfa.Enabled && len(session.CompletedMFA) < int(mfa.MinMethods) {
			missing := make([]model.MFAMethod, 0, len(mfa.Methods))
			for _, m := range mfa.Methods {
				if m.Enabled && !session.HasCompletedMFA(m.ID) {
					m.Data = ""
					missing = append(missing, m)
				}
			}
			result = CompleteResult{Status: CompleteRequireMFA, Missing: missing}
			return nil
		}

		minted := model.Session{
			ID:        model.NewID(),
			CreatedAt: now.Unix(),
			LastUsed:  now.Unix(),
			Root:      account.Handle.IsRoot(),
		}
		account.Sessions = append(account.Sessions, minted)
		account.DeleteAuthSession(authSessionID)

		result = CompleteResult{Status: CompleteDone, SessionID: minted.ID}
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return CompleteResult{}, model.CodeUserNotFound
	}
	if err != nil {
		return CompleteResult{}, err
	}
	return result, nil
}

// CheckSession reports whether the session is present and within its
// fixed lifetime. LastUsed is never refreshed, so every session
// expires sessionTimeout after creation regardless of activity.
func (a *Auth) CheckSession(ctx context.Context, handle model.Handle, sessionID string) error {
	account, err := a.accounts.Load(ctx, handle)
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	session, ok := account.Session(sessionID)
	if !ok || !session.Valid(a.sessionTimeout, a.now()) {
		return model.CodeUnauthorized
	}
	return nil
}

// Logout deletes the given session.
func (a *Auth) Logout(ctx context.Context, handle model.Handle, sessionID string) error {
	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		account.DeleteSession(sessionID)
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

// LogoutAll deletes every session and in-flight auth session of the
// account.
func (a *Auth) LogoutAll(ctx context.Context, handle model.Handle) error {
	err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		account.Sessions = []model.Session{}
		account.Auth.AuthSessions = []model.AuthSession{}
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

// InvalidateAllAuthSessions wipes in-flight login attempts on every
// account. Invoked once at process start.
func (a *Auth) InvalidateAllAuthSessions(ctx context.Context) error {
	handles, err := a.accounts.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, handle := range handles {
		err := a.accounts.Mutate(ctx, handle, func(account *model.Account) error {
			account.Auth.AuthSessions = []model.AuthSession{}
			return nil
		})
		if err != nil {
			a.logger.Error("failed to invalidate auth sessions", "account", handle.LocalPart, "error", err)
		}
	}
	return nil
}
