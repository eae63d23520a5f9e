package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"owl-location/internal/repository"
	"owl-location/internal/service"

	"go.uber.org/zap"
)

// Success 成功响应: {data, status, metadata?}
type Success[T any] struct {
	Data     T   `json:"data"`
	Status   int `json:"status"`
	Metadata any `json:"metadata,omitempty"`
}

// ErrorItem is one entry of an error response. Code is "VALIDATING" for
// validation failures and the HTTP status otherwise.
type ErrorItem struct {
	Code     any    `json:"code"`
	Message  string `json:"message"`
	Metadata any    `json:"metadata,omitempty"`
}

// ErrorResponse 错误响应: {errors, status}
type ErrorResponse struct {
	Errors []ErrorItem `json:"errors"`
	Status int         `json:"status"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ListMetadata accompanies paged list responses.
type ListMetadata struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

const (
	CodeValidating          = "VALIDATING"
	MessageValidationFailed = "Validation failed"
)

func Ok[T any](status int, data T, metadata any) Success[T] {
	return Success[T]{Data: data, Status: status, Metadata: metadata}
}

func writeOk[T any](w http.ResponseWriter, status int, data T, metadata any) {
	writeJSON(w, status, Ok(status, data, metadata))
}

func writeErrors(w http.ResponseWriter, status int, items ...ErrorItem) {
	writeJSON(w, status, ErrorResponse{Errors: items, Status: status})
}

func writeValidationFailed(w http.ResponseWriter, fields []FieldError) {
	writeErrors(w, http.StatusBadRequest, ErrorItem{
		Code:     CodeValidating,
		Message:  MessageValidationFailed,
		Metadata: map[string]any{"fields": fields},
	})
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeErrors(w, http.StatusNotFound, ErrorItem{
		Code:    http.StatusNotFound,
		Message: fmt.Sprintf("Not found location with [id: %s]", id),
	})
}

// writeServiceError maps service/repository errors to responses. Anything
// unrecognised is a 500 and is logged.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidParent):
		writeValidationFailed(w, []FieldError{{Name: "parentId", Message: "parentId does not exist"}})
	case errors.Is(err, service.ErrNotFound):
		writeErrors(w, http.StatusNotFound, ErrorItem{Code: http.StatusNotFound, Message: err.Error()})
	case errors.Is(err, service.ErrInvalidArgument):
		writeErrors(w, http.StatusBadRequest, ErrorItem{Code: http.StatusBadRequest, Message: err.Error()})
	case errors.Is(err, repository.ErrUnknownField):
		writeErrors(w, http.StatusBadRequest, ErrorItem{Code: http.StatusBadRequest, Message: err.Error()})
	case errors.Is(err, service.ErrCyclicHierarchy), errors.Is(err, service.ErrMaxDepthExceeded):
		logger.Error(op+" failed", zap.Error(err))
		writeErrors(w, http.StatusConflict, ErrorItem{Code: http.StatusConflict, Message: err.Error()})
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeErrors(w, http.StatusInternalServerError, ErrorItem{
			Code:    http.StatusInternalServerError,
			Message: "Internal server error",
		})
	}
}
