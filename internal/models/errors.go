package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every AppError wraps exactly one of these so callers can use
// errors.Is without caring about the message.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrStore        = errors.New("store unavailable")
)

// Wire codes.
const (
	CodeInvalidSubmission = "invalid_submission"
	CodeInvalidMessage    = "invalid_message"
	CodeInvalidRequest    = "invalid_request"
	CodeMissingID         = "missing_id"
	CodeRateLimited       = "rate_limited"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeDatabaseError     = "database_error"
	CodeEditingDisabled   = "editing_disabled"
	CodeInternalError     = "internal_error"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *AppError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// NewInvalidInputError reports a rejected submission or malformed request.
func NewInvalidInputError(code, message string) *AppError {
	return &AppError{Kind: ErrInvalidInput, Code: code, Message: message}
}

// NewRateLimitedError reports a submission inside the rate-limit window.
func NewRateLimitedError(message string) *AppError {
	return &AppError{Kind: ErrRateLimited, Code: CodeRateLimited, Message: message}
}

// NewUnauthorizedError reports a missing or mismatched admin credential.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: ErrUnauthorized, Code: CodeUnauthorized, Message: message}
}

// NewNotFoundError reports an operation on an id that does not exist.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewForbiddenError reports an owner-scoped operation by a non-owner.
func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: ErrForbidden, Code: CodeForbidden, Message: message}
}

// StoreError is a backend failure surfaced by the persistent store.
type StoreError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStore) match any store failure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// NewStoreError wraps a backend error. Context errors and failed connection
// attempts are marked retryable.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, Retryable: isRetryable(err)}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.Timeout(err)
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrStore):
		var se *StoreError
		if errors.As(err, &se) && se.Retryable {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response.
// The status is derived from the error kind.
func RespondWithError(c *fiber.Ctx, err error) error {
	return RespondWithStatus(c, StatusFor(err), err)
}

// RespondWithStatus writes err with an explicit status.
func RespondWithStatus(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	var storeErr *StoreError
	switch {
	case errors.As(err, &appErr):
		response = ErrorResponse{
			Error: appErr.Code,
			Code:  appErr.Code,
		}
		if appErr.Message != "" {
			response.Details = appErr.Message
		}
	case errors.As(err, &storeErr):
		// backend details stay in the logs
		response = ErrorResponse{
			Error: CodeDatabaseError,
			Code:  CodeDatabaseError,
		}
	default:
		slog.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
		response = ErrorResponse{
			Error: CodeInternalError,
			Code:  CodeInternalError,
		}
	}

	return c.Status(status).JSON(response)
}
