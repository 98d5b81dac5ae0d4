package apperrors

import (
	"errors"
	"fmt"
)

// Error codes surfaced to API consumers
const (
	CodeBitsInvalid   = "BITS_INVALID"
	CodeMissingImage  = "MISSING_IMAGE"
	CodeDBWriteFailed = "DB_WRITE_FAILED"
	CodeWriteFailed   = "WRITE_FAILED"
	CodeAuthRequired  = "AUTH_REQUIRED"
)

// ErrAuthRequired is returned when a protected read is attempted without
// valid credentials.
var ErrAuthRequired = errors.New("authorization required")

// ValidationError reports caller input that was rejected before any write.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StorageError reports a failure of the durable store or artifact backend.
type StorageError struct {
	Code string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Validation builds a ValidationError with the given code.
func Validation(code, message string) error {
	return &ValidationError{Code: code, Message: message}
}

// Storage wraps err as a StorageError with the given code.
func Storage(code string, err error) error {
	return &StorageError{Code: code, Err: err}
}

// CodeOf returns the code carried by a ValidationError or StorageError
// anywhere in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, ErrAuthRequired) {
		return CodeAuthRequired
	}
	return ""
}
