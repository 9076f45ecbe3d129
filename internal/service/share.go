package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
)

// Share manages the capability lists that expose blobs to federated
// callers.
type Share struct {
	shares model.ShareStore
	logger *logger.Logger
}

// NewShare creates the share service.
func NewShare(shares model.ShareStore, logger *logger.Logger) *Share {
	return &Share{shares: shares, logger: logger}
}

// Create registers a new share with a random id and secret. The write
// flag governs whether federated callers may modify listed blobs.
func (s *Share) Create(ctx context.Context, owner model.Handle, write bool) (model.Share, error) {
	share := model.Share{
		ID:     model.NewID(),
		Blobs:  []string{},
		Write:  write,
		Secret: model.NewID(),
	}
	err := s.shares.Mutate(ctx, owner, func(shares []model.Share) ([]model.Share, error) {
		return append(shares, share), nil
	})
	if err != nil {
		return model.Share{}, fmt.Errorf("failed to create share: %w", err)
	}
	return share, nil
}

// AddBlob appends a blob id to the share's allow-list. Adding an
// already listed blob is a no-op.
func (s *Share) AddBlob(ctx context.Context, owner model.Handle, shareID, blobID string) error {
	shareID = model.NormalizeID(shareID)
	blobID = model.NormalizeID(blobID)
	if shareID == "" || blobID == "" {
		return model.CodeShareNotFound
	}

	return s.shares.Mutate(ctx, owner, func(shares []model.Share) ([]model.Share, error) {
		for i := range shares {
			if shares[i].ID != shareID {
				continue
			}
			if !shares[i].ContainsBlob(blobID) {
				shares[i].Blobs = append(shares[i].Blobs, blobID)
			}
			return shares, nil
		}
		return nil, model.CodeShareNotFound
	})
}

// RemoveBlobEverywhere drops the blob id from every share of the
// account. Used when the blob itself is deleted.
func (s *Share) RemoveBlobEverywhere(ctx context.Context, owner model.Handle, blobID string) error {
	return s.shares.Mutate(ctx, owner, func(shares []model.Share) ([]model.Share, error) {
		for i := range shares {
			blobs := shares[i].Blobs
			kept := blobs[:0]
			for _, id := range blobs {
				if id != blobID {
					kept = append(kept, id)
				}
			}
			shares[i].Blobs = kept
		}
		return shares, nil
	})
}

// List returns the account's shares with secrets intact; callers
// exposing them over the wire decide what to strip.
func (s *Share) List(ctx context.Context, owner model.Handle) ([]model.Share, error) {
	shares, err := s.shares.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

// Get returns one share by id.
func (s *Share) Get(ctx context.Context, owner model.Handle, shareID string) (model.Share, error) {
	shareID = model.NormalizeID(shareID)
	shares, err := s.List(ctx, owner)
	if err != nil {
		return model.Share{}, err
	}
	for _, share := range shares {
		if share.ID == shareID {
			return share, nil
		}
	}
	return model.Share{}, model.CodeShareNotFound
}

// Authorize validates a federated access against a share. Checks run
// in a fixed order: share existence, secret, blob membership, then
// the write flag when write access is requested. The secret compare
// is constant time over the decoded id bytes.
func (s *Share) Authorize(ctx context.Context, owner model.Handle, shareID, secret, blobID string, write bool) (model.Share, error) {
	share, err := s.Get(ctx, owner, shareID)
	if err != nil {
		return model.Share{}, err
	}

	if !secretMatches(share.Secret, secret) {
		return model.Share{}, model.CodeWrongSecret
	}
	if blobID != "" && !share.ContainsBlob(blobID) {
		return model.Share{}, model.CodeBlobNotInShare
	}
	if write && !share.Write {
		return model.Share{}, model.CodeNoWriteAccess
	}
	return share, nil
}

func secretMatches(stored, presented string) bool {
	a := model.DecodeID(stored)
	b := model.DecodeID(presented)
	if a == nil || b == nil {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
