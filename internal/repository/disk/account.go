package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/synxit/synxit-server/internal/model"
)

const accountFileName = "data.json"

// AccountRepository persists account records as one data.json per
// account under <root>/users/<local-part>/.
type AccountRepository struct {
	root  string
	locks *keyedMutex
}

// NewAccountRepository creates an AccountRepository rooted at the
// configured data directory.
func NewAccountRepository(root string) *AccountRepository {
	return &AccountRepository{root: root, locks: newKeyedMutex()}
}

func (r *AccountRepository) accountFile(handle model.Handle) string {
	return filepath.Join(accountDir(r.root, handle), accountFileName)
}

func (r *AccountRepository) load(handle model.Handle) (*model.Account, error) {
	data, err := os.ReadFile(r.accountFile(handle))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account record: %w", err)
	}

	account := &model.Account{}
	if err := json.Unmarshal(data, account); err != nil {
		return nil, fmt.Errorf("failed to decode account record: %w", err)
	}
	account.Handle = handle
	return account, nil
}

func (r *AccountRepository) save(account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode account record: %w", err)
	}
	return writeFileAtomic(r.accountFile(account.Handle), data)
}

// Load reads the whole account record.
func (r *AccountRepository) Load(_ context.Context, handle model.Handle) (*model.Account, error) {
	unlock := r.locks.Lock(handle.LocalPart)
	defer unlock()
	return r.load(handle)
}

// Create writes a fresh account record, failing if one already exists.
func (r *AccountRepository) Create(_ context.Context, account *model.Account) error {
	unlock := r.locks.Lock(account.Handle.LocalPart)
	defer unlock()

	if _, err := os.Stat(r.accountFile(account.Handle)); err == nil {
		return model.ErrAlreadyExists
	}
	return r.save(account)
}

// Exists reports whether an account record is present on disk.
func (r *AccountRepository) Exists(_ context.Context, handle model.Handle) (bool, error) {
	_, err := os.Stat(r.accountFile(handle))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat account record: %w", err)
	}
	return true, nil
}

// Mutate runs fn on the loaded record and writes the result back,
// holding the account's lock for the whole cycle. When fn returns an
// error nothing is written and the error is passed through.
func (r *AccountRepository) Mutate(_ context.Context, handle model.Handle, fn func(*model.Account) error) error {
	unlock := r.locks.Lock(handle.LocalPart)
	defer unlock()

	account, err := r.load(handle)
	if err != nil {
		return err
	}
	if err := fn(account); err != nil {
		return err
	}
	return r.save(account)
}

// All lists the handles of every account on this server. The domain of
// the returned handles is left empty; a server only materializes its
// own accounts.
func (r *AccountRepository) All(_ context.Context) ([]model.Handle, error) {
	entries, err := os.ReadDir(filepath.Join(r.root, "users"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}

	handles := make([]model.Handle, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		handles = append(handles, model.Handle{LocalPart: entry.Name()})
	}
	return handles, nil
}
