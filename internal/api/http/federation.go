package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/service"
)

// FederationHandler serves share-gated blob access for remote servers
// and relays local clients' requests to remote peers.
type FederationHandler struct {
	federation *service.Federation
	auth       *service.Auth
	logger     *logger.Logger
}

// NewFederationHandler creates a new FederationHandler.
func NewFederationHandler(federation *service.Federation, auth *service.Auth, logger *logger.Logger) *FederationHandler {
	return &FederationHandler{federation: federation, auth: auth, logger: logger}
}

type federationRequest struct {
	Username    string `json:"username"`
	Session     string `json:"session"`
	ShareUser   string `json:"share_user"`
	ShareID     string `json:"share_id"`
	ShareSecret string `json:"share_secret"`
	Blob        string `json:"blob"`
	Content     string `json:"content"`
	Hash        string `json:"hash"`
	SubAction   string `json:"sub_action"`
}

// ServeHTTP dispatches a federation action.
func (h *FederationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var payload federationRequest
	if err := decodeData(req, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}

	handle, err := parseHandle(payload.ShareUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if req.Action == "proxy" {
		// The relay acts on behalf of a local user; only a valid
		// session may reach remote peers through this server.
		caller, err := parseHandle(payload.Username)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if err := h.auth.CheckSession(r.Context(), caller, payload.Session); err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.proxy(r.Context(), w, req, handle, payload)
		return
	}

	if !h.federation.Local(handle) {
		writeError(w, h.logger, model.CodeRemoteError)
		return
	}
	if !h.federation.Trusted(handle.Domain) {
		writeError(w, h.logger, model.CodeRemoteError)
		return
	}

	data, err := h.dispatch(r.Context(), req.Action, handle, payload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, data)
}

// proxy re-packages the caller's sub-action as a first-class action
// and forwards it to the server owning the target account. The peer's
// envelope is relayed verbatim.
func (h *FederationHandler) proxy(ctx context.Context, w http.ResponseWriter, req Request, handle model.Handle, payload federationRequest) {
	forwarded := Request{Action: payload.SubAction, Data: req.Data}
	body, err := json.Marshal(forwarded)
	if err != nil {
		writeError(w, h.logger, model.CodeInvalidJSON)
		return
	}

	envelope, err := h.federation.Proxy(ctx, handle.Domain, body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !envelope.Success {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: envelope.Success, Data: envelope.Data})
}

func (h *FederationHandler) dispatch(ctx context.Context, action string, handle model.Handle, payload federationRequest) (any, error) {
	switch action {
	case "blobs":
		blobs, write, err := h.federation.Blobs(ctx, handle, payload.ShareID, payload.ShareSecret)
		if err != nil {
			return nil, err
		}
		return map[string]any{"blobs": blobs, "write_access": write}, nil
	case "read":
		content, err := h.federation.Read(ctx, handle, payload.ShareID, payload.ShareSecret, payload.Blob)
		if err != nil {
			return nil, err
		}
		return map[string]string{"content": base64.StdEncoding.EncodeToString(content)}, nil
	case "create":
		content, err := decodeContent(payload.Content)
		if err != nil {
			return nil, err
		}
		id, hash, err := h.federation.Create(ctx, handle, payload.ShareID, payload.ShareSecret, content)
		if err != nil {
			return nil, err
		}
		return blobResponse{Blob: id, Hash: hash}, nil
	case "update":
		content, err := decodeContent(payload.Content)
		if err != nil {
			return nil, err
		}
		hash, err := h.federation.Update(ctx, handle, payload.ShareID, payload.ShareSecret, payload.Blob, content, payload.Hash)
		if err != nil {
			return nil, err
		}
		return blobResponse{Hash: hash}, nil
	case "delete":
		return nil, h.federation.Delete(ctx, handle, payload.ShareID, payload.ShareSecret, payload.Blob, payload.Hash)
	case "foreign_key":
		keyring, err := h.federation.ForeignKeyring(ctx, handle)
		if err != nil {
			return nil, err
		}
		return map[string]string{"foreign_keyring": keyring}, nil
	default:
		return nil, model.CodeInvalidAction
	}
}
