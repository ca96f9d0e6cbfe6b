package json

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/emporion-io/emporion/internal/domain"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func WriteValidationError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err.Error())
}

func WriteInternalError(w http.ResponseWriter, err error) {
	log.Printf("Internal error: %v", err)
	WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

// WriteClassifiedError maps the error taxonomy to HTTP statuses and emits a
// structured {error, message, details} body with the error kind.
func WriteClassifiedError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)

	var status int
	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindUnknownOperation:
		status = http.StatusNotFound
	case domain.KindReferenceNotFound:
		status = http.StatusUnprocessableEntity
	case domain.KindGatewayTimeout:
		status = http.StatusGatewayTimeout
	case domain.KindTransientStore:
		status = http.StatusServiceUnavailable
	default:
		WriteInternalError(w, err)
		return
	}

	resp := ErrorResponse{
		Error:   kind,
		Message: err.Error(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
