package handler

import (
	"errors"
	"net/http"

	"github.com/go-api-otp/internal/application/user"
	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/transport/http/middleware"
)

// PrivateHandler serves the authenticated profile.
type PrivateHandler struct {
	svc user.Service
}

func NewPrivateHandler(svc user.Service) *PrivateHandler { return &PrivateHandler{svc: svc} }

// Profile re-reads the user so a token for a deleted account yields 404.
func (h *PrivateHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	u, err := h.svc.Get(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, "load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}
