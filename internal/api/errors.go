package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/labstack/echo/v4"
)

// APIError is the JSON error body of every failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func NewValidationError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: message}
}

func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func NewConflictError(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: "CONFLICT", Message: message}
}

func NewInternalError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromIngestError maps pre-flight rejections of the ingest service.
func fromIngestError(err error) *APIError {
	switch {
	case errors.Is(err, common.ErrEmptySelection), errors.Is(err, common.ErrCategoryRequired):
		return NewValidationError(err.Error())
	case errors.Is(err, common.ErrBatchInProgress):
		return NewConflictError(err.Error())
	}
	return NewInternalError("failed to start upload", err)
}

// ErrorHandler renders any handler error as an APIError.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	_ = c.JSON(apiErr.Status, apiErr)
}
