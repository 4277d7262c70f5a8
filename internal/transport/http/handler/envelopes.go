package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/pkg/errutil"
	"github.com/go-api-otp/internal/pkg/validate"
)

// Business and validation failures are reported with 200 and an "error"
// field; clients branch on the field, not the status.
const (
	msgInvalidBody   = "invalid request body"
	msgInternal      = "internal server error"
	msgUserNotFound  = "user not found"
	msgUserExists    = "a user with this email already exists"
	msgInvalidCode   = "invalid or expired code"
	msgUndeliverable = "could not deliver verification code"
)

const maxBodyBytes = 1 << 20

// ErrorEnvelope carries either a message string or validate.FieldErrors.
type ErrorEnvelope struct {
	Error interface{} `json:"error"`
}

type UserEnvelope struct {
	User *domain.User `json:"user"`
}

type SigninEnvelope struct {
	ID string `json:"id"`
}

type SessionEnvelope struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type PongEnvelope struct {
	Pong bool `json:"pong"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg interface{}) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

// decode reads a JSON body into dst and validates it. On failure it has
// already written the response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusOK, msgInvalidBody)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var fe validate.FieldErrors
		if errors.As(err, &fe) {
			writeError(w, http.StatusOK, fe)
			return false
		}
		internalError(w, "validate request", err)
		return false
	}
	return true
}

func internalError(w http.ResponseWriter, msg string, err error) {
	errutil.LogError(slog.Default(), msg, err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// businessError maps the sentinel in err to its user-facing message. known
// lists the sentinels the endpoint can legitimately produce.
func businessError(w http.ResponseWriter, op string, err error, known map[error]string) {
	for sentinel, msg := range known {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusOK, msg)
			return
		}
	}
	internalError(w, op, err)
}
