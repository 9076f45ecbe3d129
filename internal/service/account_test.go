package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/repository/disk"
	"github.com/synxit/synxit-server/internal/testutil"
)

func newTestAccount(t *testing.T, registrationEnabled bool) (*Account, model.AccountStore) {
	t.Helper()
	repo := disk.NewAccountRepository(t.TempDir())
	svc := NewAccount(repo, registrationEnabled, "default", testutil.MakeNoopLogger())
	return svc, repo
}

func TestAccount_Register(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()

	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "hash", account.Auth.Hash)
	assert.Equal(t, "default", account.Tier)
}

func TestAccount_Register_Disabled(t *testing.T) {
	svc, _ := newTestAccount(t, false)

	err := svc.Register(context.Background(), testHandle(), "hash", "salt")
	assert.ErrorIs(t, err, model.CodeRegistrationDisabled)
}

func TestAccount_Register_Duplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccount(t, true)
	handle := testHandle()

	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	err := svc.Register(ctx, handle, "hash2", "salt2")
	assert.ErrorIs(t, err, model.CodeInvalidCredentials)
}

func TestAccount_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "old-hash", "old-salt"))

	require.NoError(t, svc.ChangePassword(ctx, handle, "old-hash", "new-hash", "new-salt", "wrapped-key"))

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", account.Auth.Hash)
	assert.Equal(t, "new-salt", account.Auth.Salt)
	assert.Equal(t, "wrapped-key", account.Auth.Encrypted.MasterKey)
}

func TestAccount_ChangePassword_WrongOldHash(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "old-hash", "old-salt"))

	err := svc.ChangePassword(ctx, handle, "wrong", "new-hash", "new-salt", "k")
	assert.ErrorIs(t, err, model.CodeInvalidCredentials)

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "old-hash", account.Auth.Hash)
}

func TestAccount_EncryptedPayloads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	require.NoError(t, svc.SetMasterKey(ctx, handle, "mk"))
	require.NoError(t, svc.SetKeyring(ctx, handle, "kr"))
	require.NoError(t, svc.SetBlobMap(ctx, handle, "bm"))

	encrypted, err := svc.Encrypted(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, model.EncryptedData{MasterKey: "mk", Keyring: "kr", BlobMap: "bm"}, encrypted)
}

func TestAccount_ForeignKeyring(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	require.NoError(t, svc.SetForeignKeyring(ctx, handle, "foreign"))

	keyring, err := svc.ForeignKeyring(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "foreign", keyring)
}

func TestAccount_AddTOTPMethod(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	method, err := svc.AddTOTPMethod(ctx, handle, "phone")
	require.NoError(t, err)
	assert.Equal(t, "phone", method.Name)
	assert.Equal(t, model.MFAMethodTOTP, method.Type)
	assert.NotEmpty(t, method.Data)
	assert.NotEqual(t, model.RecoveryMethodID, method.ID)
	assert.True(t, method.Enabled)

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	require.Len(t, account.Auth.MFA.Methods, 1)
	assert.Equal(t, method, account.Auth.MFA.Methods[0])
}

func TestAccount_RemoveMethod(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	method, err := svc.AddTOTPMethod(ctx, handle, "phone")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMethod(ctx, handle, method.ID))

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.Empty(t, account.Auth.MFA.Methods)

	err = svc.RemoveMethod(ctx, handle, method.ID)
	assert.ErrorIs(t, err, model.CodeInvalidAction)
}

func TestAccount_ListMFA_StripsSecrets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	_, err := svc.AddTOTPMethod(ctx, handle, "phone")
	require.NoError(t, err)
	_, err = svc.NewRecoveryCodes(ctx, handle)
	require.NoError(t, err)

	mfa, err := svc.ListMFA(ctx, handle)
	require.NoError(t, err)
	require.Len(t, mfa.Methods, 1)
	assert.Empty(t, mfa.Methods[0].Data)
	assert.Empty(t, mfa.RecoveryCodes)
}

func TestAccount_SetMFAEnabled(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	require.NoError(t, svc.SetMFAEnabled(ctx, handle, true))

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.True(t, account.Auth.MFA.Enabled)
	assert.Equal(t, uint8(1), account.Auth.MFA.MinMethods)

	require.NoError(t, svc.SetMFAEnabled(ctx, handle, false))

	account, err = repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.False(t, account.Auth.MFA.Enabled)
}

func TestAccount_NewRecoveryCodes(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestAccount(t, true)
	handle := testHandle()
	require.NoError(t, svc.Register(ctx, handle, "hash", "salt"))

	codes, err := svc.NewRecoveryCodes(ctx, handle)
	require.NoError(t, err)
	require.Len(t, codes, model.RecoveryCodeCount)
	for _, code := range codes {
		assert.Len(t, code, RecoveryCodeLength)
		assert.Regexp(t, "^[0-9A-Z]+$", code)
	}

	account, err := repo.Load(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, codes, account.Auth.MFA.RecoveryCodes)

	// Regenerating replaces the whole set.
	fresh, err := svc.NewRecoveryCodes(ctx, handle)
	require.NoError(t, err)
	assert.NotEqual(t, codes, fresh)
}

func TestRandomRecoveryCode_Uniform(t *testing.T) {
	const samples = 12500
	counts := make(map[byte]int)
	for i := 0; i < samples; i++ {
		code, err := randomRecoveryCode()
		require.NoError(t, err)
		for j := 0; j < len(code); j++ {
			counts[code[j]]++
		}
	}

	for _, ch := range recoveryCodeAlphabet {
		assert.Positive(t, counts[byte(ch)], "character %q never drawn", ch)
	}

	// A plain byte-modulo draw favors the first 256 mod 36 = 4 alphabet
	// characters by a factor of 8/7. Over 100000 characters that excess
	// is far outside random noise; a uniform draw stays well under the
	// bound.
	var firstFour int
	for _, ch := range recoveryCodeAlphabet[:4] {
		firstFour += counts[byte(ch)]
	}
	assert.Less(t, firstFour, 11700)
}
