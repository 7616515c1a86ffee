package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rohansroy/giterdone/internal/application/auth"
	"github.com/rohansroy/giterdone/internal/transport/http/middleware"
)

// PasskeyHandler runs the two WebAuthn ceremonies over HTTP. Each ceremony
// is an options call followed by a verify call carrying the browser's
// credential JSON untouched.
type PasskeyHandler struct {
	svc auth.Service
}

func NewPasskeyHandler(svc auth.Service) *PasskeyHandler { return &PasskeyHandler{svc: svc} }

const msgEmailRequired = "field 'Email' failed 'required'"

type passkeyOptionsRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type passkeyVerifyRequest struct {
	Email              string          `json:"email" validate:"omitempty,email"`
	CredentialResponse json.RawMessage `json:"credential_response" validate:"required"`
	TOTPCode           string          `json:"totp_code" validate:"omitempty,len=6,numeric"`
}

func (h *PasskeyHandler) LoginOptions(w http.ResponseWriter, r *http.Request) {
	var req passkeyOptionsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, msgEmailRequired)
		return
	}
	assertion, err := h.svc.BeginPasskeyLogin(r.Context(), req.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OptionsEnvelope{Options: assertion})
}

func (h *PasskeyHandler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var req passkeyVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, msgEmailRequired)
		return
	}
	res, err := h.svc.CompletePasskeyLogin(r.Context(), req.Email, req.CredentialResponse, req.TOTPCode)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

// RegistrationOptions enrolls for the bearer's own account when a token is
// sent, otherwise for the email in the body.
func (h *PasskeyHandler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	var req passkeyOptionsRequest
	if !decode(w, r, &req) {
		return
	}
	actorID := actor(r)
	if actorID == "" && req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, msgEmailRequired)
		return
	}
	creation, err := h.svc.BeginPasskeyRegistration(r.Context(), req.Email, actorID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OptionsEnvelope{Options: creation})
}

func (h *PasskeyHandler) RegistrationVerify(w http.ResponseWriter, r *http.Request) {
	var req passkeyVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	actorID := actor(r)
	if actorID == "" && req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, msgEmailRequired)
		return
	}
	res, err := h.svc.CompletePasskeyRegistration(r.Context(), req.Email, req.CredentialResponse, req.TOTPCode, actorID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	status := http.StatusCreated
	if actorID != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

// actor returns the authenticated user id, or "" for anonymous requests.
func actor(r *http.Request) string {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}
