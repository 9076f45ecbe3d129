package model

import "context"

// ShareStore defines persistence for the per-account share list. The
// list is always loaded and saved whole; Mutate holds the account's
// share lock across a read-modify-write cycle.
type ShareStore interface {
	List(ctx context.Context, handle Handle) ([]Share, error)
	Mutate(ctx context.Context, handle Handle, fn func([]Share) ([]Share, error)) error
}

// Share is a secret-gated capability granting access to a list of blob
// ids, optionally with write access.
type Share struct {
	ID     string   `json:"id"`
	Blobs  []string `json:"blobs"`
	Write  bool     `json:"write"`
	Secret string   `json:"secret"`
}

// ContainsBlob reports whether the blob id is listed in the share.
func (s Share) ContainsBlob(blobID string) bool {
	blobID = NormalizeID(blobID)
	for _, b := range s.Blobs {
		if b == blobID {
			return true
		}
	}
	return false
}
