package http

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/service"
)

// BlobHandler serves the blob-store actions. Content travels base64
// encoded inside the JSON envelope.
type BlobHandler struct {
	blobs    *service.Blob
	accounts *service.Account
	auth     *service.Auth
	logger   *logger.Logger
}

// NewBlobHandler creates a new BlobHandler.
func NewBlobHandler(blobs *service.Blob, accounts *service.Account, auth *service.Auth, logger *logger.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, accounts: accounts, auth: auth, logger: logger}
}

type blobRequest struct {
	Username string `json:"username"`
	Session  string `json:"session"`
	Blob     string `json:"blob"`
	Content  string `json:"content"`
	Hash     string `json:"hash"`
	BlobMap  string `json:"blob_map"`
}

type blobResponse struct {
	Blob string `json:"blob,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// ServeHTTP dispatches a blob-endpoint action.
func (h *BlobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var payload blobRequest
	if err := decodeData(req, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}

	handle, err := parseHandle(payload.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.auth.CheckSession(r.Context(), handle, payload.Session); err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.dispatch(r.Context(), req.Action, handle, payload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, data)
}

func (h *BlobHandler) dispatch(ctx context.Context, action string, handle model.Handle, payload blobRequest) (any, error) {
	switch action {
	case "create":
		return h.create(ctx, handle, payload)
	case "read":
		return h.read(ctx, handle, payload)
	case "update":
		return h.update(ctx, handle, payload)
	case "delete":
		return nil, h.blobs.Delete(ctx, handle, payload.Blob)
	case "get_quota":
		return h.blobs.Quota(ctx, handle)
	case "get_blob_map":
		return h.getBlobMap(ctx, handle)
	case "set_blob_map":
		return nil, h.accounts.SetBlobMap(ctx, handle, payload.BlobMap)
	default:
		return nil, model.CodeInvalidAction
	}
}

// decodeContent decodes base64 blob content. Undecodable content is
// treated as a malformed request.
func decodeContent(content string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, model.CodeInvalidJSON
	}
	return decoded, nil
}

func (h *BlobHandler) create(ctx context.Context, handle model.Handle, payload blobRequest) (any, error) {
	content, err := decodeContent(payload.Content)
	if err != nil {
		return nil, err
	}
	id, hash, err := h.blobs.Create(ctx, handle, content)
	if err != nil {
		return nil, err
	}
	return blobResponse{Blob: id, Hash: hash}, nil
}

func (h *BlobHandler) read(ctx context.Context, handle model.Handle, payload blobRequest) (any, error) {
	content, err := h.blobs.Read(ctx, handle, payload.Blob)
	if err != nil {
		return nil, err
	}
	return map[string]string{"content": base64.StdEncoding.EncodeToString(content)}, nil
}

func (h *BlobHandler) update(ctx context.Context, handle model.Handle, payload blobRequest) (any, error) {
	content, err := decodeContent(payload.Content)
	if err != nil {
		return nil, err
	}
	hash, err := h.blobs.Update(ctx, handle, payload.Blob, content, payload.Hash)
	if err != nil {
		return nil, err
	}
	return blobResponse{Hash: hash}, nil
}

func (h *BlobHandler) getBlobMap(ctx context.Context, handle model.Handle) (any, error) {
	encrypted, err := h.accounts.Encrypted(ctx, handle)
	if err != nil {
		return nil, err
	}
	return map[string]string{"blob_map": encrypted.BlobMap}, nil
}
