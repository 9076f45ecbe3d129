package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
)

// Request is the envelope every POST endpoint accepts. Data is decoded
// a second time into the action's payload struct; missing fields come
// out as zero values.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorPayload struct {
	Error model.Code `json:"error"`
}

// decodeRequest reads and parses the request envelope.
func decodeRequest(r *http.Request) (Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Request{}, model.CodeInvalidJSON
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, model.CodeInvalidJSON
	}
	return req, nil
}

// decodeData parses an action payload. An absent data object leaves
// the payload at its zero value.
func decodeData(req Request, v any) error {
	if len(req.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return model.CodeInvalidJSON
	}
	return nil
}

// writeData sends a success envelope.
func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if data == nil {
		data = struct{}{}
	}
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// writeError sends a failure envelope with HTTP 400. Errors outside
// the wire taxonomy are logged and masked as INTERNAL_ERROR.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var code model.Code
	if !errors.As(err, &code) {
		log.Error("request failed with internal error", "error", err)
		code = model.CodeInternalError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Data: errorPayload{Error: code}})
}
