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

const shareFileName = "shares.json"

// ShareRepository persists the per-account share list as shares.json
// next to the account record. The list is always read and written
// whole.
type ShareRepository struct {
	root  string
	locks *keyedMutex
}

// NewShareRepository creates a ShareRepository rooted at the
// configured data directory.
func NewShareRepository(root string) *ShareRepository {
	return &ShareRepository{root: root, locks: newKeyedMutex()}
}

func (r *ShareRepository) shareFile(handle model.Handle) string {
	return filepath.Join(accountDir(r.root, handle), shareFileName)
}

func (r *ShareRepository) load(handle model.Handle) ([]model.Share, error) {
	data, err := os.ReadFile(r.shareFile(handle))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Share{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read share list: %w", err)
	}

	var shares []model.Share
	if err := json.Unmarshal(data, &shares); err != nil {
		return nil, fmt.Errorf("failed to decode share list: %w", err)
	}
	return shares, nil
}

func (r *ShareRepository) save(handle model.Handle, shares []model.Share) error {
	if shares == nil {
		shares = []model.Share{}
	}
	data, err := json.Marshal(shares)
	if err != nil {
		return fmt.Errorf("failed to encode share list: %w", err)
	}
	return writeFileAtomic(r.shareFile(handle), data)
}

// List reads the whole share list of an account. A missing file is an
// empty list.
func (r *ShareRepository) List(_ context.Context, handle model.Handle) ([]model.Share, error) {
	unlock := r.locks.Lock(handle.LocalPart)
	defer unlock()
	return r.load(handle)
}

// Mutate runs fn on the loaded list and writes the result back under
// the account's share lock.
func (r *ShareRepository) Mutate(_ context.Context, handle model.Handle, fn func([]model.Share) ([]model.Share, error)) error {
	unlock := r.locks.Lock(handle.LocalPart)
	defer unlock()

	shares, err := r.load(handle)
	if err != nil {
		return err
	}
	shares, err = fn(shares)
	if err != nil {
		return err
	}
	return r.save(handle, shares)
}
