package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/synxit/synxit-server/internal/model"
)

var _ model.BlobBackend = (*Backend)(nil)

// Backend stores blob content as one file per blob under
// <root>/users/<local-part>/blobs/<id>. Ids have passed
// model.NormalizeID before they reach this layer, so they never
// contain path separators.
type Backend struct {
	root string
}

// NewBackend creates a filesystem blob backend rooted at the
// configured data directory.
func NewBackend(root string) *Backend {
	return &Backend{root: root}
}

func (b *Backend) blobPath(handle model.Handle, id string) string {
	return filepath.Join(b.root, "users", handle.LocalPart, "blobs", id)
}

// Put writes blob content via a temporary file and rename.
func (b *Backend) Put(_ context.Context, handle model.Handle, id string, content []byte) error {
	path := b.blobPath(handle, id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create blobs directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to place blob file: %w", err)
	}
	return nil
}

// Get reads blob content.
func (b *Backend) Get(_ context.Context, handle model.Handle, id string) ([]byte, error) {
	content, err := os.ReadFile(b.blobPath(handle, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Delete removes the blob file.
func (b *Backend) Delete(_ context.Context, handle model.Handle, id string) error {
	err := os.Remove(b.blobPath(handle, id))
	if errors.Is(err, fs.ErrNotExist) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Exists reports whether the blob file is present.
func (b *Backend) Exists(_ context.Context, handle model.Handle, id string) (bool, error) {
	_, err := os.Stat(b.blobPath(handle, id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// UsedBytes walks the account's whole data directory. Encrypted
// metadata counts against quota alongside blob content.
func (b *Backend) UsedBytes(_ context.Context, handle model.Handle) (int64, error) {
	var total int64
	root := filepath.Join(b.root, "users", handle.LocalPart)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to walk account directory: %w", err)
	}
	return total, nil
}
