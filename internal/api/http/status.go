package http

import (
	"net/http"
	"time"
)

// StatusHandler reports server identity and capabilities. Served
// unauthenticated so clients and peers can check before talking.
type StatusHandler struct {
	version             string
	domain              string
	federationEnabled   bool
	registrationEnabled bool
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(version, domain string, federationEnabled, registrationEnabled bool) *StatusHandler {
	return &StatusHandler{
		version:             version,
		domain:              domain,
		federationEnabled:   federationEnabled,
		registrationEnabled: registrationEnabled,
	}
}

type statusResponse struct {
	Version      string `json:"version"`
	Domain       string `json:"domain"`
	Timestamp    int64  `json:"timestamp"`
	Federation   bool   `json:"federation"`
	Registration bool   `json:"registration"`
}

// ServeHTTP answers a status query.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeData(w, statusResponse{
		Version:      h.version,
		Domain:       h.domain,
		Timestamp:    time.Now().Unix(),
		Federation:   h.federationEnabled,
		Registration: h.registrationEnabled,
	})
}
