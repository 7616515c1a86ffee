package handler

import (
	"net/http"

	"github.com/rohansroy/giterdone/internal/application/auth"
	"github.com/rohansroy/giterdone/internal/domain"
)

// RecoveryHandler lets a user who lost their credential pick a new one.
type RecoveryHandler struct {
	svc auth.Service
}

func NewRecoveryHandler(svc auth.Service) *RecoveryHandler { return &RecoveryHandler{svc: svc} }

func (h *RecoveryHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decode(w, r, &req) {
		return
	}
	ack, err := h.svc.RequestRecovery(r.Context(), req.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecoveryEnvelope{Message: ack.Message, Token: ack.Token, RecoveryURL: ack.RecoveryURL})
}

func (h *RecoveryHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req domain.RecoveryConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.ConfirmRecovery(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: u})
}
