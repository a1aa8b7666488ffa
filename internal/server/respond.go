package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/jar"
	"github.com/EditMySave/HyOS-sub001/internal/mods"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/validate"
)

// respondJSON writes data as a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type validationError struct {
	Error  string           `json:"error"`
	Issues []validate.Issue `json:"issues"`
}

// respondInvalid rejects a request that failed validation.
func respondInvalid(w http.ResponseWriter, message string, r *validate.Result) {
	respondJSON(w, http.StatusBadRequest, validationError{Error: message, Issues: r.Errors()})
}

// respondFailure maps err to its status and writes it.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var upstream *httpclient.StatusError

	switch {
	case errors.Is(err, mods.ErrNotFound), errors.Is(err, jar.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jar.ErrAlreadyPatched), errors.Is(err, jar.ErrNoPatchNeeded), errors.Is(err, mods.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, jar.ErrVerificationFailed):
		return http.StatusInternalServerError
	case errors.Is(err, mods.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jar.ErrInvalidArchive),
		errors.Is(err, mods.ErrNotAFile),
		errors.Is(err, mods.ErrNotArchive),
		errors.Is(err, mods.ErrInvalidSource),
		errors.Is(err, provider.ErrUnknownProvider),
		errors.Is(err, provider.ErrNotConfigured),
		errors.Is(err, provider.ErrNoDownloadURL),
		errors.Is(err, provider.ErrUntrustedURL):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, httpclient.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
