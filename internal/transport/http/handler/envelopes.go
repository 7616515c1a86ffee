package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps responses of flows that authenticate a user. Tokens is
// omitted when the caller already held a session.
type AuthEnvelope struct {
	User   *domain.User   `json:"user"`
	Tokens *domain.Tokens `json:"tokens,omitempty"`
}

// ErrorEnvelope is the error body. TOTPRequired and AuthMethod tell the
// client which proof to ask for next.
type ErrorEnvelope struct {
	Error        string             `json:"error"`
	TOTPRequired bool               `json:"totp_required,omitempty"`
	AuthMethod   *domain.AuthMethod `json:"auth_method,omitempty"`
}

// OptionsEnvelope carries WebAuthn ceremony options to the browser.
type OptionsEnvelope struct {
	Options any `json:"options"`
}

type CheckMethodEnvelope struct {
	Email      string             `json:"email"`
	AuthMethod *domain.AuthMethod `json:"auth_method"`
}

type TOTPStateEnvelope struct {
	TOTPEnabled bool `json:"totp_enabled"`
}

type RecoveryEnvelope struct {
	Message     string `json:"message"`
	Token       string `json:"token,omitempty"`
	RecoveryURL string `json:"recovery_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags. It writes
// 400 for an unreadable body and 422 for a failed validation.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
