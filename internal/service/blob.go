package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
)

// TierLookup resolves a tier id to its definition.
type TierLookup func(id string) (model.Tier, bool)

// Blob stores and retrieves opaque encrypted blobs under the owner's
// quota. Writes to one account are serialized by a per-account lock so
// the hash compare-and-swap in Update cannot race itself.
type Blob struct {
	backend  model.BlobBackend
	accounts model.AccountStore
	shares   *Share
	tiers    TierLookup
	locks    *keyedMutex
	logger   *logger.Logger
}

// NewBlob creates the blob service.
func NewBlob(backend model.BlobBackend, accounts model.AccountStore, shares *Share, tiers TierLookup, logger *logger.Logger) *Blob {
	return &Blob{
		backend:  backend,
		accounts: accounts,
		shares:   shares,
		tiers:    tiers,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// QuotaInfo reports current usage against the account's tier limit.
// Total is zero when the tier grants unlimited storage.
type QuotaInfo struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// Quota returns the account's storage usage and limit.
func (s *Blob) Quota(ctx context.Context, owner model.Handle) (QuotaInfo, error) {
	used, err := s.backend.UsedBytes(ctx, owner)
	if err != nil {
		return QuotaInfo{}, fmt.Errorf("failed to measure usage: %w", err)
	}
	return QuotaInfo{Used: used, Total: s.quotaLimit(ctx, owner)}, nil
}

// quotaLimit resolves the owner's byte limit. Zero means unlimited;
// an unknown tier is treated as unlimited and logged.
func (s *Blob) quotaLimit(ctx context.Context, owner model.Handle) int64 {
	account, err := s.accounts.Load(ctx, owner)
	if err != nil {
		return 0
	}
	tier, ok := s.tiers(account.Tier)
	if !ok {
		s.logger.Warn("account references unknown tier, treating quota as unlimited",
			"account", owner.String(), "tier", account.Tier)
		return 0
	}
	return tier.Quota
}

func (s *Blob) quotaAllows(ctx context.Context, owner model.Handle, additional int64) (bool, error) {
	limit := s.quotaLimit(ctx, owner)
	if limit <= 0 {
		return true, nil
	}
	used, err := s.backend.UsedBytes(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("failed to measure usage: %w", err)
	}
	return used+additional <= limit, nil
}

// Create stores new content under a fresh id and returns the id and
// the content hash.
func (s *Blob) Create(ctx context.Context, owner model.Handle, content []byte) (id, hash string, err error) {
	unlock := s.locks.Lock(owner.String())
	defer unlock()

	ok, err := s.quotaAllows(ctx, owner, int64(len(content)))
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", model.CodeQuotaExceeded
	}

	for {
		id = model.NewID()
		exists, err := s.backend.Exists(ctx, owner, id)
		if err != nil {
			return "", "", fmt.Errorf("failed to check blob id: %w", err)
		}
		if !exists {
			break
		}
	}

	if err := s.backend.Put(ctx, owner, id, content); err != nil {
		return "", "", fmt.Errorf("failed to store blob: %w", err)
	}
	return id, contentHash(content), nil
}

// Read returns the blob content.
func (s *Blob) Read(ctx context.Context, owner model.Handle, id string) ([]byte, error) {
	id = model.NormalizeID(id)
	if id == "" {
		return nil, model.CodeBlobNotFound
	}
	content, err := s.backend.Get(ctx, owner, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.CodeBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Update replaces the blob's content. The caller must present the
// hash of the content it last saw; a stale hash is rejected before any
// quota accounting happens.
func (s *Blob) Update(ctx context.Context, owner model.Handle, id string, content []byte, expectedHash string) (string, error) {
	id = model.NormalizeID(id)
	if id == "" {
		return "", model.CodeBlobNotFound
	}

	unlock := s.locks.Lock(owner.String())
	defer unlock()

	current, err := s.backend.Get(ctx, owner, id)
	if errors.Is(err, model.ErrNotFound) {
		return "", model.CodeBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read blob: %w", err)
	}

	if !strings.EqualFold(contentHash(current), expectedHash) {
		return "", model.CodeBlobHashNotMatch
	}

	ok, err := s.quotaAllows(ctx, owner, int64(len(content))-int64(len(current)))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", model.CodeQuotaExceeded
	}

	if err := s.backend.Put(ctx, owner, id, content); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return contentHash(content), nil
}

// Delete removes the blob and drops its id from every share of the
// account.
func (s *Blob) Delete(ctx context.Context, owner model.Handle, id string) error {
	id = model.NormalizeID(id)
	if id == "" {
		return model.CodeBlobNotFound
	}

	unlock := s.locks.Lock(owner.String())
	defer unlock()

	err := s.backend.Delete(ctx, owner, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.CodeBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	if err := s.shares.RemoveBlobEverywhere(ctx, owner, id); err != nil {
		s.logger.Error("failed to remove deleted blob from shares",
			"account", owner.String(), "blob", id, "error", err)
	}
	return nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
