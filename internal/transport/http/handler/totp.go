package handler

import (
	"net/http"

	"github.com/rohansroy/giterdone/internal/application/totp"
	"github.com/rohansroy/giterdone/internal/transport/http/middleware"
)

// TOTPHandler manages the second factor of the authenticated user.
type TOTPHandler struct {
	svc totp.Service
}

func NewTOTPHandler(svc totp.Service) *TOTPHandler { return &TOTPHandler{svc: svc} }

type totpCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func (h *TOTPHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	enrollment, err := h.svc.Enroll(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *TOTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req totpCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Verify(r.Context(), claims.UserID, req.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TOTPStateEnvelope{TOTPEnabled: true})
}

func (h *TOTPHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req totpCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Disable(r.Context(), claims.UserID, req.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TOTPStateEnvelope{TOTPEnabled: false})
}
