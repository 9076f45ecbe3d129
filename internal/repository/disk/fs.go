package disk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/synxit/synxit-server/internal/model"
)

// accountDir resolves the on-disk directory of an account. The local
// part has passed the handle grammar, so it contains no path
// separators and cannot escape the users subtree.
func accountDir(root string, handle model.Handle) string {
	return filepath.Join(root, "users", handle.LocalPart)
}

// writeFileAtomic writes content to a temporary file in the target
// directory and renames it into place, so readers never observe a
// partial record.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
