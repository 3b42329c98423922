package models

import "fmt"

// ValidationError describes a malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConfigError is a fatal startup configuration problem; the server does not
// bind its listener when one is raised.
type ConfigError struct {
	Option  string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Option, e.Message)
}

func NewConfigError(option, message string) *ConfigError {
	return &ConfigError{Option: option, Message: message}
}

// AuthError rejects a request before any other processing
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// RetrievalSourceError is a per-source failure during the retrieval fan-out.
// A single source failing is recovered locally; it only escalates when every
// configured source fails.
type RetrievalSourceError struct {
	Source string
	Err    error
}

func (e *RetrievalSourceError) Error() string {
	return fmt.Sprintf("retrieval source %s failed: %v", e.Source, e.Err)
}

func (e *RetrievalSourceError) Unwrap() error {
	return e.Err
}

// OperationError is a failure of an external capability call (embedding,
// inference, or a fully failed retrieval) surfaced to the client as a server
// error. The gateway does not retry.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func NewOperationError(op string, err error) *OperationError {
	return &OperationError{Op: op, Err: err}
}

// ErrorDetail is the machine-readable error body content
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorResponse is the JSON error body returned on request failures
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func NewErrorResponse(errType, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}}
}
