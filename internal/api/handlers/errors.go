package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/keelwise/keel/internal/api/response"
	"github.com/keelwise/keel/internal/api/validation"
	"github.com/keelwise/keel/internal/keelerrors"
)

// respondDecodeError writes 400 for malformed JSON and a validation problem otherwise.
func respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, validation.ErrInvalidBody) {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	validation.RespondValidationError(w, err)
}

// respondServiceError maps service errors to problem responses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, keelerrors.ErrValidation):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, keelerrors.ErrNotFound):
		response.RespondNotFound(w, err.Error())
	case errors.Is(err, keelerrors.ErrNoProviders):
		response.RespondServiceUnavailable(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
	}
}
