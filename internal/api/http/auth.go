package http

import (
	"context"
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/service"
)

// AuthHandler serves the authentication and account-management
// actions.
type AuthHandler struct {
	auth     *service.Auth
	accounts *service.Account
	logger   *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.Auth, accounts *service.Account, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts, logger: logger}
}

type accountRequest struct {
	Username string `json:"username"`
	Session  string `json:"session"`
}

type authSessionRequest struct {
	Username    string `json:"username"`
	AuthSession string `json:"auth_session"`
	Hash        string `json:"hash"`
	Method      uint8  `json:"method"`
	Code        string `json:"code"`
}

type changePasswordRequest struct {
	Username  string `json:"username"`
	Session   string `json:"session"`
	OldHash   string `json:"old_hash"`
	NewHash   string `json:"new_hash"`
	NewSalt   string `json:"new_salt"`
	MasterKey string `json:"master_key"`
}

type payloadRequest struct {
	Username       string `json:"username"`
	Session        string `json:"session"`
	MasterKey      string `json:"master_key"`
	Keyring        string `json:"keyring"`
	ForeignKeyring string `json:"foreign_keyring"`
}

type mfaManageRequest struct {
	Username string `json:"username"`
	Session  string `json:"session"`
	Name     string `json:"name"`
	Method   uint8  `json:"method"`
}

type prepareResponse struct {
	AuthSession string `json:"auth_session"`
	Challenge   string `json:"challenge"`
	Salt        string `json:"salt"`
}

type completeResponse struct {
	Status    string            `json:"status"`
	Session   string            `json:"session,omitempty"`
	MasterKey string            `json:"master_key,omitempty"`
	Keyring   string            `json:"keyring,omitempty"`
	BlobMap   string            `json:"blob_map,omitempty"`
	Methods   []model.MFAMethod `json:"methods,omitempty"`
}

// ServeHTTP dispatches an auth-endpoint action.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.dispatch(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, data)
}

func (h *AuthHandler) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case "prepare":
		return h.prepare(ctx, req)
	case "auth":
		return h.password(ctx, req)
	case "auth_mfa":
		return h.mfa(ctx, req)
	case "is_auth":
		return h.isAuth(ctx, req)
	case "logout":
		return h.logout(ctx, req)
	case "logout_all":
		return h.logoutAll(ctx, req)
	case "change_password":
		return h.changePassword(ctx, req)
	case "get_master_key", "get_keyring":
		return h.getEncrypted(ctx, req, req.Action)
	case "set_master_key", "set_keyring", "set_foreign_keyring":
		return h.setEncrypted(ctx, req, req.Action)
	case "add_mfa":
		return h.addMFA(ctx, req)
	case "remove_mfa":
		return h.removeMFA(ctx, req)
	case "enable_mfa":
		return h.setMFAEnabled(ctx, req, true)
	case "disable_mfa":
		return h.setMFAEnabled(ctx, req, false)
	case "list_mfa":
		return h.listMFA(ctx, req)
	case "new_recovery_codes":
		return h.newRecoveryCodes(ctx, req)
	default:
		return nil, model.CodeInvalidAction
	}
}

// parseHandle maps an unparseable handle to USER_NOT_FOUND so the
// transport never distinguishes bad names from missing accounts.
func parseHandle(username string) (model.Handle, error) {
	handle, err := model.ParseHandle(username)
	if err != nil {
		return model.Handle{}, model.CodeUserNotFound
	}
	return handle, nil
}

// requireSession validates the session and returns the account handle.
func (h *AuthHandler) requireSession(ctx context.Context, username, session string) (model.Handle, error) {
	handle, err := parseHandle(username)
	if err != nil {
		return model.Handle{}, err
	}
	if err := h.auth.CheckSession(ctx, handle, session); err != nil {
		return model.Handle{}, err
	}
	return handle, nil
}

func (h *AuthHandler) prepare(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := parseHandle(payload.Username)
	if err != nil {
		return nil, err
	}

	result, err := h.auth.Prepare(ctx, handle)
	if err != nil {
		return nil, err
	}
	return prepareResponse{
		AuthSession: result.AuthSessionID,
		Challenge:   result.Challenge,
		Salt:        result.Salt,
	}, nil
}

func (h *AuthHandler) password(ctx context.Context, req Request) (any, error) {
	var payload authSessionRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := parseHandle(payload.Username)
	if err != nil {
		return nil, err
	}

	if err := h.auth.VerifyPassword(ctx, handle, payload.AuthSession, payload.Hash); err != nil {
		return nil, err
	}
	return h.complete(ctx, handle, payload.AuthSession)
}

func (h *AuthHandler) mfa(ctx context.Context, req Request) (any, error) {
	var payload authSessionRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := parseHandle(payload.Username)
	if err != nil {
		return nil, err
	}

	if payload.Method == model.RecoveryMethodID {
		err = h.auth.SubmitRecoveryCode(ctx, handle, payload.AuthSession, payload.Code)
	} else {
		err = h.auth.SubmitMFA(ctx, handle, payload.AuthSession, payload.Method, payload.Code)
	}
	if err != nil {
		return nil, err
	}
	return h.complete(ctx, handle, payload.AuthSession)
}

// complete attempts to convert the auth session into a full session
// and shapes the response for each outcome. A minted session carries
// the account's encrypted payloads so the client can unlock in one
// round trip.
func (h *AuthHandler) complete(ctx context.Context, handle model.Handle, authSessionID string) (any, error) {
	result, err := h.auth.CompleteSession(ctx, handle, authSessionID)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case service.CompleteDone:
		encrypted, err := h.accounts.Encrypted(ctx, handle)
		if err != nil {
			return nil, err
		}
		return completeResponse{
			Status:    string(service.CompleteDone),
			Session:   result.SessionID,
			MasterKey: encrypted.MasterKey,
			Keyring:   encrypted.Keyring,
			BlobMap:   encrypted.BlobMap,
		}, nil
	case service.CompleteRequireMFA:
		return completeResponse{
			Status:  string(service.CompleteRequireMFA),
			Methods: result.Missing,
		}, nil
	default:
		return completeResponse{Status: string(service.CompleteRequirePassword)}, nil
	}
}

func (h *AuthHandler) isAuth(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return map[string]string{"username": handle.String()}, nil
}

func (h *AuthHandler) logout(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return nil, h.auth.Logout(ctx, handle, payload.Session)
}

func (h *AuthHandler) logoutAll(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return nil, h.auth.LogoutAll(ctx, handle)
}

func (h *AuthHandler) changePassword(ctx context.Context, req Request) (any, error) {
	var payload changePasswordRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return nil, h.accounts.ChangePassword(ctx, handle, payload.OldHash, payload.NewHash, payload.NewSalt, payload.MasterKey)
}

func (h *AuthHandler) getEncrypted(ctx context.Context, req Request, action string) (any, error) {
	var payload payloadRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}

	encrypted, err := h.accounts.Encrypted(ctx, handle)
	if err != nil {
		return nil, err
	}
	if action == "get_master_key" {
		return map[string]string{"master_key": encrypted.MasterKey}, nil
	}
	return map[string]string{"keyring": encrypted.Keyring}, nil
}

func (h *AuthHandler) setEncrypted(ctx context.Context, req Request, action string) (any, error) {
	var payload payloadRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}

	switch action {
	case "set_master_key":
		return nil, h.accounts.SetMasterKey(ctx, handle, payload.MasterKey)
	case "set_keyring":
		return nil, h.accounts.SetKeyring(ctx, handle, payload.Keyring)
	default:
		return nil, h.accounts.SetForeignKeyring(ctx, handle, payload.ForeignKeyring)
	}
}

func (h *AuthHandler) addMFA(ctx context.Context, req Request) (any, error) {
	var payload mfaManageRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}

	method, err := h.accounts.AddTOTPMethod(ctx, handle, payload.Name)
	if err != nil {
		return nil, err
	}
	return method, nil
}

func (h *AuthHandler) removeMFA(ctx context.Context, req Request) (any, error) {
	var payload mfaManageRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return nil, h.accounts.RemoveMethod(ctx, handle, payload.Method)
}

func (h *AuthHandler) setMFAEnabled(ctx context.Context, req Request, enabled bool) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}
	return nil, h.accounts.SetMFAEnabled(ctx, handle, enabled)
}

func (h *AuthHandler) listMFA(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}

	mfa, err := h.accounts.ListMFA(ctx, handle)
	if err != nil {
		return nil, err
	}
	return mfa, nil
}

func (h *AuthHandler) newRecoveryCodes(ctx context.Context, req Request) (any, error) {
	var payload accountRequest
	if err := decodeData(req, &payload); err != nil {
		return nil, err
	}
	handle, err := h.requireSession(ctx, payload.Username, payload.Session)
	if err != nil {
		return nil, err
	}

	codes, err := h.accounts.NewRecoveryCodes(ctx, handle)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"codes": codes}, nil
}
