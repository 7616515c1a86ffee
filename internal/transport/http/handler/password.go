package handler

import (
	"errors"
	"net/http"

	"github.com/rohansroy/giterdone/internal/application/password"
	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/transport/http/middleware"
)

// PasswordHandler changes the password of an authenticated password account.
type PasswordHandler struct {
	svc password.Service
}

func NewPasswordHandler(svc password.Service) *PasswordHandler { return &PasswordHandler{svc: svc} }

func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.PasswordChangeRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.svc.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword)
	var wrong *domain.WrongMethodError
	switch {
	case errors.As(err, &wrong):
		// The account switched to a passkey after this token was issued.
		writeError(w, http.StatusForbidden, wrong.Error())
		return
	case err != nil:
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}
