package http

import (
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/service"
)

// RegisterHandler serves account registration.
type RegisterHandler struct {
	accounts *service.Account
	logger   *logger.Logger
}

// NewRegisterHandler creates a new RegisterHandler.
func NewRegisterHandler(accounts *service.Account, logger *logger.Logger) *RegisterHandler {
	return &RegisterHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Hash     string `json:"hash"`
	Salt     string `json:"salt"`
}

// ServeHTTP handles a registration request.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Action != "register" {
		writeError(w, h.logger, model.CodeInvalidAction)
		return
	}

	var payload registerRequest
	if err := decodeData(req, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	handle, err := parseHandle(payload.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.Register(r.Context(), handle, payload.Hash, payload.Salt); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, nil)
}
