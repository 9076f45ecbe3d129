package model

import "context"

// BlobBackend stores raw blob content per account. Existence of a key
// is the only metadata; hashes are always recomputed from content.
type BlobBackend interface {
	Put(ctx context.Context, handle Handle, id string, content []byte) error
	Get(ctx context.Context, handle Handle, id string) ([]byte, error)
	Delete(ctx context.Context, handle Handle, id string) error
	Exists(ctx context.Context, handle Handle, id string) (bool, error)

	// UsedBytes is the total stored size attributed to the account,
	// counting encrypted metadata as well as blob content.
	UsedBytes(ctx context.Context, handle Handle) (int64, error)
}
