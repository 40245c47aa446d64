package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certo/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and error responses.
func WriteError(w http.ResponseWriter, err error) {
	// Validation errors render the full detail list.
	var validationErr *dErrors.ValidationError
	if errors.As(err, &validationErr) {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": validationErr.Details,
		})
		return
	}

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		detail := []map[string]string{{"msg": domainErr.Error(), "type": string(domainErr.Code)}}
		WriteJSON(w, status, map[string]any{"detail": detail})
		return
	}

	// Fallback for unexpected errors; never leak internals.
	WriteJSON(w, http.StatusInternalServerError, map[string]any{
		"detail": []map[string]string{{"msg": "internal server error", "type": string(dErrors.CodeInternal)}},
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeMixedHolders, dErrors.CodeNothingToIssue:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeUnprocessable, dErrors.CodeInvalidProtocol:
		return http.StatusUnprocessableEntity
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidSession:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUpstream:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
