package http

import (
	"context"
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/service"
)

// ShareHandler serves the share-management actions for account
// owners. Federated access to shared blobs goes through the
// federation endpoint instead.
type ShareHandler struct {
	shares *service.Share
	auth   *service.Auth
	logger *logger.Logger
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shares *service.Share, auth *service.Auth, logger *logger.Logger) *ShareHandler {
	return &ShareHandler{shares: shares, auth: auth, logger: logger}
}

type shareRequest struct {
	Username string `json:"username"`
	Session  string `json:"session"`
	Share    string `json:"share"`
	Blob     string `json:"blob"`
	Write    bool   `json:"write"`
}

// ServeHTTP dispatches a share-endpoint action.
func (h *ShareHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var payload shareRequest
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

func (h *ShareHandler) dispatch(ctx context.Context, action string, handle model.Handle, payload shareRequest) (any, error) {
	switch action {
	case "create":
		return h.shares.Create(ctx, handle, payload.Write)
	case "add_blob":
		return nil, h.shares.AddBlob(ctx, handle, payload.Share, payload.Blob)
	case "list":
		shares, err := h.shares.List(ctx, handle)
		if err != nil {
			return nil, err
		}
		return map[string][]model.Share{"shares": shares}, nil
	case "get":
		return h.shares.Get(ctx, handle, payload.Share)
	default:
		return nil, model.CodeInvalidAction
	}
}
