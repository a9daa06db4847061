package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes
const (
	// Model errors
	CodeModelUnavailable = "MODEL_UNAVAILABLE"

	// Client input errors
	CodeMissingField        = "MISSING_FIELD"
	CodeEmptyInput          = "EMPTY_INPUT"
	CodeNoValidContent      = "NO_VALID_CONTENT"
	CodeNoFile              = "NO_FILE"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeNoTextColumn        = "NO_TEXT_COLUMN"
	CodeNotFound            = "NOT_FOUND"

	// Internal errors
	CodePredictionFailed      = "PREDICTION_FAILED"
	CodeBatchProcessingFailed = "BATCH_PROCESSING_FAILED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can compare
// against the sentinel values below with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Wrap creates an AppError around an underlying error
func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func ModelUnavailable(reason string) *AppError {
	return &AppError{
		Code:    CodeModelUnavailable,
		Message: fmt.Sprintf("model not available: %s", reason),
		Status:  http.StatusServiceUnavailable,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("Missing %s field in request", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func EmptyInput(field string) *AppError {
	return &AppError{
		Code:    CodeEmptyInput,
		Message: fmt.Sprintf("%s text cannot be empty", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func NoValidContent() *AppError {
	return &AppError{
		Code:    CodeNoValidContent,
		Message: "Email contains no valid text after cleaning",
		Status:  http.StatusBadRequest,
	}
}

func NoFile(message string) *AppError {
	return &AppError{
		Code:    CodeNoFile,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func UnsupportedFileType(allowed []string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedFileType,
		Message: fmt.Sprintf("Only %s files are allowed", strings.ToUpper(strings.Join(allowed, ", "))),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"allowed_extensions": allowed},
	}
}

// NoTextColumn reports the headers that were available so the caller can fix the upload.
func NoTextColumn(available []string) *AppError {
	return &AppError{
		Code:    CodeNoTextColumn,
		Message: fmt.Sprintf("Could not find message column. Available columns: %v", available),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"available_columns": available},
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func PredictionFailed(err error) *AppError {
	return &AppError{
		Code:    CodePredictionFailed,
		Message: fmt.Sprintf("Prediction failed: %v", err),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func BatchProcessingFailed(err error) *AppError {
	return &AppError{
		Code:    CodeBatchProcessingFailed,
		Message: fmt.Sprintf("CSV processing failed: %v", err),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons
var (
	ErrModelUnavailable      = &AppError{Code: CodeModelUnavailable}
	ErrMissingField          = &AppError{Code: CodeMissingField}
	ErrEmptyInput            = &AppError{Code: CodeEmptyInput}
	ErrNoValidContent        = &AppError{Code: CodeNoValidContent}
	ErrNoFile                = &AppError{Code: CodeNoFile}
	ErrUnsupportedFileType   = &AppError{Code: CodeUnsupportedFileType}
	ErrNoTextColumn          = &AppError{Code: CodeNoTextColumn}
	ErrNotFound              = &AppError{Code: CodeNotFound}
	ErrPredictionFailed      = &AppError{Code: CodePredictionFailed}
	ErrBatchProcessingFailed = &AppError{Code: CodeBatchProcessingFailed}
)

// AsAppError returns err as an AppError, wrapping unknown errors as internal errors
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// GetHTTPStatus returns the status carried by err, or 500
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
