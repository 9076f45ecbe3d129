package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/synxit/synxit-server/internal/config"
	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
)

// federationPath is the well-known endpoint every peer serves.
const federationPath = "/synxit/federation"

// Envelope is the wire format exchanged between servers. Proxied
// responses are relayed without re-interpreting Data.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Federation answers share-gated requests from remote servers and
// relays outbound requests to the peer owning the target account.
type Federation struct {
	cfg      config.Federation
	domain   string
	blobs    *Blob
	shares   *Share
	accounts *Account
	client   *http.Client
	logger   *logger.Logger
}

// NewFederation creates the federation service.
func NewFederation(cfg config.Federation, domain string, blobs *Blob, shares *Share, accounts *Account, logger *logger.Logger) *Federation {
	return &Federation{
		cfg:      cfg,
		domain:   domain,
		blobs:    blobs,
		shares:   shares,
		accounts: accounts,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// Local reports whether the handle's domain is served by this
// instance.
func (s *Federation) Local(handle model.Handle) bool {
	return strings.EqualFold(handle.Domain, s.domain)
}

// Trusted applies the trust policy to a peer domain. With federation
// disabled nothing is trusted. The whitelist, when enabled, must list
// the domain; the blacklist, when enabled, must not.
func (s *Federation) Trusted(domain string) bool {
	if !s.cfg.Enabled {
		return false
	}
	if s.cfg.WhitelistEnabled && !containsFold(s.cfg.WhitelistHosts, domain) {
		return false
	}
	if s.cfg.BlacklistEnabled && containsFold(s.cfg.BlacklistHosts, domain) {
		return false
	}
	return true
}

func containsFold(hosts []string, domain string) bool {
	for _, h := range hosts {
		if strings.EqualFold(h, domain) {
			return true
		}
	}
	return false
}

// Blobs lists the blob ids reachable through the share and whether
// the share grants write access.
func (s *Federation) Blobs(ctx context.Context, owner model.Handle, shareID, secret string) ([]string, bool, error) {
	share, err := s.shares.Authorize(ctx, owner, shareID, secret, "", false)
	if err != nil {
		return nil, false, err
	}
	return share.Blobs, share.Write, nil
}

// Read returns the content of a shared blob.
func (s *Federation) Read(ctx context.Context, owner model.Handle, shareID, secret, blobID string) ([]byte, error) {
	if _, err := s.shares.Authorize(ctx, owner, shareID, secret, blobID, false); err != nil {
		return nil, err
	}
	return s.blobs.Read(ctx, owner, blobID)
}

// Create stores new content and appends it to the share's allow-list.
// Requires write access.
func (s *Federation) Create(ctx context.Context, owner model.Handle, shareID, secret string, content []byte) (id, hash string, err error) {
	share, err := s.shares.Authorize(ctx, owner, shareID, secret, "", true)
	if err != nil {
		return "", "", err
	}
	id, hash, err = s.blobs.Create(ctx, owner, content)
	if err != nil {
		return "", "", err
	}
	if err := s.shares.AddBlob(ctx, owner, share.ID, id); err != nil {
		return "", "", err
	}
	return id, hash, nil
}

// Update replaces a shared blob's content. Requires write access and
// the current content hash.
func (s *Federation) Update(ctx context.Context, owner model.Handle, shareID, secret, blobID string, content []byte, expectedHash string) (string, error) {
	if _, err := s.shares.Authorize(ctx, owner, shareID, secret, blobID, true); err != nil {
		return "", err
	}
	return s.blobs.Update(ctx, owner, blobID, content, expectedHash)
}

// Delete removes a shared blob. Requires write access and the current
// content hash, so a caller holding a stale view cannot destroy
// content it has not seen.
func (s *Federation) Delete(ctx context.Context, owner model.Handle, shareID, secret, blobID, expectedHash string) error {
	if _, err := s.shares.Authorize(ctx, owner, shareID, secret, blobID, true); err != nil {
		return err
	}
	current, err := s.blobs.Read(ctx, owner, blobID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(contentHash(current), expectedHash) {
		return model.CodeBlobHashNotMatch
	}
	return s.blobs.Delete(ctx, owner, blobID)
}

// ForeignKeyring returns the key material the account exposes to
// federated callers.
func (s *Federation) ForeignKeyring(ctx context.Context, owner model.Handle) (string, error) {
	return s.accounts.ForeignKeyring(ctx, owner)
}

// Proxy forwards a federation request to the server owning the target
// handle and returns the peer's envelope verbatim. Network failures
// surface as REMOTE_ERROR, unparseable replies as INVALID_JSON.
func (s *Federation) Proxy(ctx context.Context, domain string, body []byte) (Envelope, error) {
	if !s.Trusted(domain) {
		return Envelope{}, model.CodeRemoteError
	}

	url := fmt.Sprintf("http://%s:%s%s", domain, s.cfg.Port, federationPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to build proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("federation proxy request failed", "domain", domain, "error", err)
		return Envelope{}, model.CodeRemoteError
	}
	defer resp.Body.Close()

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		s.logger.Warn("federation peer returned malformed envelope", "domain", domain, "error", err)
		return Envelope{}, model.CodeInvalidJSON
	}
	return envelope, nil
}
