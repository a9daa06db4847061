package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		code    string
		status  int
		message string
	}{
		{"missing field", MissingField("email"), CodeMissingField, http.StatusBadRequest, "Missing email field in request"},
		{"empty input", EmptyInput("Email"), CodeEmptyInput, http.StatusBadRequest, "Email text cannot be empty"},
		{"no valid content", NoValidContent(), CodeNoValidContent, http.StatusBadRequest, "Email contains no valid text after cleaning"},
		{"no file", NoFile("No file selected"), CodeNoFile, http.StatusBadRequest, "No file selected"},
		{"unsupported type", UnsupportedFileType([]string{"csv"}), CodeUnsupportedFileType, http.StatusBadRequest, "Only CSV files are allowed"},
		{"not found", NotFound("File"), CodeNotFound, http.StatusNotFound, "File not found"},
		{"model unavailable", ModelUnavailable("artifacts missing"), CodeModelUnavailable, http.StatusServiceUnavailable, "model not available: artifacts missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.message, tt.err.Message)
		})
	}
}

func TestNoTextColumnDetails(t *testing.T) {
	err := NoTextColumn([]string{"id", "subject"})

	assert.Equal(t, "Could not find message column. Available columns: [id subject]", err.Message)
	assert.Equal(t, []string{"id", "subject"}, err.Details["available_columns"])
}

func TestWrappedErrors(t *testing.T) {
	cause := errors.New("disk full")
	err := BatchProcessingFailed(cause)

	assert.Equal(t, "CSV processing failed: disk full", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[BATCH_PROCESSING_FAILED] CSV processing failed: disk full: disk full", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", EmptyInput("Email"))

	assert.ErrorIs(t, wrapped, ErrEmptyInput)
	assert.NotErrorIs(t, wrapped, ErrMissingField)
}

func TestAsAppError(t *testing.T) {
	known := NotFound("File")
	assert.Same(t, known, AsAppError(fmt.Errorf("wrap: %w", known)))

	unknown := AsAppError(errors.New("boom"))
	require.NotNil(t, unknown)
	assert.Equal(t, CodeInternalError, unknown.Code)
	assert.Equal(t, http.StatusInternalServerError, unknown.Status)
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(NotFound("File")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(New("X", "no status", 0)))
}

func TestWithDetail(t *testing.T) {
	err := New(CodeInternalError, "failed", http.StatusInternalServerError).WithDetail("row", 3)
	assert.Equal(t, 3, err.Details["row"])
}
