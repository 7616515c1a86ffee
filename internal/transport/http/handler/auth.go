package handler

import (
	"net/http"

	"github.com/rohansroy/giterdone/internal/application/auth"
	"github.com/rohansroy/giterdone/internal/domain"
)

// AuthHandler handles registration and password login.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

func (h *AuthHandler) LoginPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordLoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.LoginPassword(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: res.User, Tokens: res.Tokens})
}

func (h *AuthHandler) CheckMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decode(w, r, &req) {
		return
	}
	method, err := h.svc.CheckMethod(r.Context(), req.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckMethodEnvelope{Email: domain.NormalizeEmail(req.Email), AuthMethod: method})
}
