package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/totp"
)

// RecoveryCodeLength is the fixed length of one recovery code.
const RecoveryCodeLength = 8

const recoveryCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Account manages registration, the client-encrypted payloads and the
// MFA configuration of an account.
type Account struct {
	accounts            model.AccountStore
	registrationEnabled bool
	defaultTier         string
	logger              *logger.Logger
}

// NewAccount creates the account service.
func NewAccount(accounts model.AccountStore, registrationEnabled bool, defaultTier string, logger *logger.Logger) *Account {
	return &Account{
		accounts:            accounts,
		registrationEnabled: registrationEnabled,
		defaultTier:         defaultTier,
		logger:              logger,
	}
}

// Register creates a fresh account with the client-supplied password
// hash and salt. The hash is opaque; the server never sees a
// plaintext password.
func (s *Account) Register(ctx context.Context, handle model.Handle, hash, salt string) error {
	if !s.registrationEnabled {
		return model.CodeRegistrationDisabled
	}

	account := model.NewAccount(handle, hash, salt, s.defaultTier)
	err := s.accounts.Create(ctx, account)
	if errors.Is(err, model.ErrAlreadyExists) {
		return model.CodeInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("new account registered", "account", handle.String())
	return nil
}

// ChangePassword replaces the password hash, salt and wrapped master
// key in one step. The old hash must match the stored one.
func (s *Account) ChangePassword(ctx context.Context, handle model.Handle, oldHash, newHash, newSalt, masterKey string) error {
	err := s.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		if !hmac.Equal([]byte(oldHash), []byte(account.Auth.Hash)) {
			return model.CodeInvalidCredentials
		}
		account.Auth.Hash = newHash
		account.Auth.Salt = newSalt
		account.Auth.Encrypted.MasterKey = masterKey
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}

// Encrypted returns the account's client-encrypted payloads.
func (s *Account) Encrypted(ctx context.Context, handle model.Handle) (model.EncryptedData, error) {
	account, err := s.load(ctx, handle)
	if err != nil {
		return model.EncryptedData{}, err
	}
	return account.Auth.Encrypted, nil
}

// SetMasterKey stores the wrapped master key.
func (s *Account) SetMasterKey(ctx context.Context, handle model.Handle, masterKey string) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		account.Auth.Encrypted.MasterKey = masterKey
		return nil
	})
}

// SetKeyring stores the encrypted keyring.
func (s *Account) SetKeyring(ctx context.Context, handle model.Handle, keyring string) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		account.Auth.Encrypted.Keyring = keyring
		return nil
	})
}

// SetBlobMap stores the encrypted blob index.
func (s *Account) SetBlobMap(ctx context.Context, handle model.Handle, blobMap string) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		account.Auth.Encrypted.BlobMap = blobMap
		return nil
	})
}

// SetForeignKeyring stores the keyring material exposed to federated
// callers through the foreign_key action.
func (s *Account) SetForeignKeyring(ctx context.Context, handle model.Handle, foreignKeyring string) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		account.ForeignKeyring = foreignKeyring
		return nil
	})
}

// ForeignKeyring returns the account's foreign keyring.
func (s *Account) ForeignKeyring(ctx context.Context, handle model.Handle) (string, error) {
	account, err := s.load(ctx, handle)
	if err != nil {
		return "", err
	}
	return account.ForeignKeyring, nil
}

// AddTOTPMethod creates a TOTP method with a fresh secret and a random
// free 8-bit id. The returned method includes the secret so the client
// can provision its authenticator.
func (s *Account) AddTOTPMethod(ctx context.Context, handle model.Handle, name string) (model.MFAMethod, error) {
	secret, err := totp.NewSecret()
	if err != nil {
		return model.MFAMethod{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	var method model.MFAMethod
	err = s.accounts.Mutate(ctx, handle, func(account *model.Account) error {
		id, err := freeMethodID(account.Auth.MFA.Methods)
		if err != nil {
			return err
		}
		method = model.MFAMethod{
			ID:      id,
			Name:    name,
			Enabled: true,
			Data:    secret,
			Type:    model.MFAMethodTOTP,
		}
		account.Auth.MFA.Methods = append(account.Auth.MFA.Methods, method)
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.MFAMethod{}, model.CodeUserNotFound
	}
	if err != nil {
		return model.MFAMethod{}, err
	}
	return method, nil
}

// freeMethodID draws random 8-bit ids until one does not collide with
// a configured method. The recovery sentinel id is never handed out.
func freeMethodID(methods []model.MFAMethod) (uint8, error) {
	if len(methods) >= 255 {
		return 0, model.CodeInvalidAction
	}
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to draw method id: %w", err)
		}
		id := b[0]
		if id == model.RecoveryMethodID {
			continue
		}
		taken := false
		for _, m := range methods {
			if m.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id, nil
		}
	}
}

// RemoveMethod deletes the MFA method with the given id.
func (s *Account) RemoveMethod(ctx context.Context, handle model.Handle, id uint8) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		methods := account.Auth.MFA.Methods
		for i, m := range methods {
			if m.ID == id {
				account.Auth.MFA.Methods = append(methods[:i], methods[i+1:]...)
				return nil
			}
		}
		return model.CodeInvalidAction
	})
}

// SetMFAEnabled switches multi-factor enforcement on or off.
func (s *Account) SetMFAEnabled(ctx context.Context, handle model.Handle, enabled bool) error {
	return s.mutate(ctx, handle, func(account *model.Account) error {
		account.Auth.MFA.Enabled = enabled
		if enabled && account.Auth.MFA.MinMethods == 0 {
			account.Auth.MFA.MinMethods = 1
		}
		return nil
	})
}

// ListMFA returns the MFA configuration with secret material stripped.
func (s *Account) ListMFA(ctx context.Context, handle model.Handle) (model.MFA, error) {
	account, err := s.load(ctx, handle)
	if err != nil {
		return model.MFA{}, err
	}

	mfa := account.Auth.MFA
	methods := make([]model.MFAMethod, len(mfa.Methods))
	for i, m := range mfa.Methods {
		m.Data = ""
		methods[i] = m
	}
	mfa.Methods = methods
	mfa.RecoveryCodes = nil
	return mfa, nil
}

// NewRecoveryCodes replaces all recovery codes with a fresh set of
// eight single-use codes and returns them.
func (s *Account) NewRecoveryCodes(ctx context.Context, handle model.Handle) ([]string, error) {
	codes := make([]string, model.RecoveryCodeCount)
	for i := range codes {
		code, err := randomRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}

	err := s.mutate(ctx, handle, func(account *model.Account) error {
		account.Auth.MFA.RecoveryCodes = append([]string(nil), codes...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func randomRecoveryCode() (string, error) {
	// Bytes past the last full multiple of the alphabet size are
	// rejected so every character is uniformly likely.
	const limit = 256 - 256%len(recoveryCodeAlphabet)
	code := make([]byte, 0, RecoveryCodeLength)
	buf := make([]byte, RecoveryCodeLength)
	for len(code) < RecoveryCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate recovery code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, recoveryCodeAlphabet[int(b)%len(recoveryCodeAlphabet)])
			if len(code) == RecoveryCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

func (s *Account) load(ctx context.Context, handle model.Handle) (*model.Account, error) {
	account, err := s.accounts.Load(ctx, handle)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.CodeUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Account) mutate(ctx context.Context, handle model.Handle, fn func(*model.Account) error) error {
	err := s.accounts.Mutate(ctx, handle, fn)
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeUserNotFound
	}
	return err
}
