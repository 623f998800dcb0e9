package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps lineage errors to HTTP status codes and error codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, lineage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lineage.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, lineage.ErrConflictingVersionWrite):
		return http.StatusConflict, "conflict"
	case errors.Is(err, lineage.ErrContentIO):
		return http.StatusBadGateway, "content_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		message = "An internal server error occurred"
	}
	writeErrorCode(w, r, status, code, message)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorCode(w, r, http.StatusBadRequest, "invalid_input", message)
}
