package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBadRequest      = errors.New("bad request")
	ErrInternal        = errors.New("internal server error")
	ErrValidation      = errors.New("validation error")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrTransform       = errors.New("transform failed")
	ErrMerge           = errors.New("merge failed")
	ErrStaging         = errors.New("staging storage failure")
	ErrOcrBoundary     = errors.New("ocr boundary failure")
	ErrChunkingAborted = errors.New("chunked processing aborted")
	ErrNotConfigured   = errors.New("collaborator not configured")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// UnsupportedFile is returned when a file's category cannot be determined.
// Callers should exclude the file before dispatch.
func UnsupportedFile(filename string) *AppError {
	return &AppError{
		Err:        ErrUnsupportedFile,
		Code:       "UNSUPPORTED_FILE",
		Message:    fmt.Sprintf("unsupported file type: %s", filename),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// TransformFailed wraps a category transformer failure. Recorded per file,
// the batch continues.
func TransformFailed(filename string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrTransform, err),
		Code:       "TRANSFORM_FAILED",
		Message:    fmt.Sprintf("failed to compress %s", filename),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// MergeFailed wraps a combined-document append failure
func MergeFailed(filename string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrMerge, err),
		Code:       "MERGE_FAILED",
		Message:    fmt.Sprintf("failed to append %s to combined document", filename),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// StagingFailed wraps an upload/download/delete failure against the
// temporary object storage
func StagingFailed(op string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrStaging, err),
		Code:       "STAGING_FAILED",
		Message:    fmt.Sprintf("staging storage %s failed", op),
		StatusCode: http.StatusBadGateway,
	}
}

// OcrBoundaryFailed wraps a remote analysis failure
func OcrBoundaryFailed(status int, body string) *AppError {
	return &AppError{
		Err:        ErrOcrBoundary,
		Code:       "OCR_BOUNDARY_FAILED",
		Message:    fmt.Sprintf("ocr service returned %d: %s", status, body),
		StatusCode: http.StatusBadGateway,
	}
}

// ChunkingAborted signals that too many chunks failed for the run to continue
func ChunkingAborted(failed, attempted int) *AppError {
	return &AppError{
		Err:        ErrChunkingAborted,
		Code:       "CHUNKING_ABORTED",
		Message:    fmt.Sprintf("aborted after %d of %d chunks failed", failed, attempted),
		StatusCode: http.StatusBadGateway,
	}
}

// NotConfigured signals that an external collaborator is missing credentials
func NotConfigured(collaborator string) *AppError {
	return &AppError{
		Err:        ErrNotConfigured,
		Code:       "NOT_CONFIGURED",
		Message:    fmt.Sprintf("%s is not configured", collaborator),
		StatusCode: http.StatusServiceUnavailable,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
