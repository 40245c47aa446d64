package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound      Code = "not_found"
	CodeBadRequest    Code = "bad_request"
	CodeInvalidInput  Code = "invalid_input"
	CodeValidation    Code = "validation_failed"
	CodeUnprocessable Code = "unprocessable"
	CodeInternal      Code = "internal_error"
	CodeConflict      Code = "conflict"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeUpstream      Code = "upstream_error"
	CodeTimeout       Code = "timeout"

	// Domain-level rejections of a submission as a whole.
	CodeMixedHolders    Code = "mixed_holders"
	CodeNothingToIssue  Code = "nothing_to_issue"
	CodeInvalidSession  Code = "invalid_session"
	CodeInvalidProtocol Code = "invalid_protocol"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Detail is one entry of a validation failure list, mirrored on the wire as
// {"loc": [...], "msg": "...", "type": "..."}.
type Detail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError carries a list of structured validation details so the
// transport layer can render the full {"detail": [...]} envelope.
type ValidationError struct {
	Details []Detail
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return string(CodeValidation)
	}
	return e.Details[0].Msg
}

// NewValidation creates a validation error from one or more details.
func NewValidation(details ...Detail) error {
	return &ValidationError{Details: details}
}
