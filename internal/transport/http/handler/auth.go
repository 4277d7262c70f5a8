package handler

import (
	"net/http"

	"github.com/go-api-otp/internal/application/auth"
	"github.com/go-api-otp/internal/domain"
)

// AuthHandler handles the public /auth endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		businessError(w, "signup", err, map[error]string{domain.ErrConflict: msgUserExists})
		return
	}
	writeJSON(w, http.StatusCreated, UserEnvelope{User: u})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req domain.SigninRequest
	if !decode(w, r, &req) {
		return
	}
	otpID, err := h.svc.Signin(r.Context(), req)
	if err != nil {
		businessError(w, "signin", err, map[error]string{
			domain.ErrNotFound:    msgUserNotFound,
			domain.ErrUndelivered: msgUndeliverable,
		})
		return
	}
	writeJSON(w, http.StatusOK, SigninEnvelope{ID: otpID})
}

func (h *AuthHandler) UseOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.UseOTPRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.svc.UseOTP(r.Context(), req)
	if err != nil {
		businessError(w, "use otp", err, map[error]string{domain.ErrNotFound: msgInvalidCode})
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Token: sess.Token, User: sess.User})
}
