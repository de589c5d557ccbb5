package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/userauth/internal/errs"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="userauth"`)
	writeMessage(w, http.StatusUnauthorized, msg)
}

// writeError maps a service error to a status and a body without internals.
// Store, crypto and unknown failures are logged with the cause.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errs.ErrValidation.Error(), Details: ve.Fields})
	case errors.Is(err, errs.ErrValidation):
		writeMessage(w, http.StatusBadRequest, errs.ErrValidation.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		writeMessage(w, http.StatusConflict, "email already registered")
	case errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrTokenInvalid),
		errors.Is(err, errs.ErrTokenExpired):
		writeUnauthorized(w, "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, "too many attempts")
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "internal")
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return errs.NewValidation("body", fmt.Sprintf("must not exceed %d bytes", maxBodyBytes))
		case errors.Is(err, io.EOF):
			return errs.NewValidation("body", "is required")
		default:
			return errs.NewValidation("body", "malformed JSON: "+err.Error())
		}
	}
	if dec.More() {
		return errs.NewValidation("body", "must contain a single JSON object")
	}
	return nil
}
