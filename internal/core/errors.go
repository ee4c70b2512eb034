// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the engine's error taxonomy. Services wrap them with
// fmt.Errorf("op: %w", err); the HTTP edge maps them to stable codes.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrFeatureDisabled  = errors.New("feature disabled")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrRateLimited      = errors.New("rate limited")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrTokenInvalid     = errors.New("token invalid")
)

// AppError carries a stable machine-readable code alongside the HTTP status
// the edge should use. The engine itself never touches transport; handlers
// translate via JSONError.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func NotFoundError(resource string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func ConflictError(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
	}
}

func ValidationAppError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func PermissionDeniedError(message string) *AppError {
	return &AppError{
		Code:    "PERMISSION_DENIED",
		Message: message,
		Status:  http.StatusForbidden,
	}
}

func FeatureDisabledError(feature string) *AppError {
	return &AppError{
		Code:    "FEATURE_DISABLED",
		Message: fmt.Sprintf("%s is disabled", feature),
		Status:  http.StatusForbidden,
	}
}

func CapacityExceededError(message string) *AppError {
	return &AppError{
		Code:    "CAPACITY_EXCEEDED",
		Message: message,
		Status:  http.StatusConflict,
	}
}

func RateLimitedError(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

func UnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func ForbiddenError(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
	}
}

func TokenExpiredError() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "access token has expired",
		Status:  http.StatusUnauthorized,
	}
}

func TokenRevokedError() *AppError {
	return &AppError{
		Code:    "TOKEN_REVOKED",
		Message: "access token has been revoked",
		Status:  http.StatusUnauthorized,
	}
}

func TokenInvalidError() *AppError {
	return &AppError{
		Code:    "TOKEN_INVALID",
		Message: "access token is invalid",
		Status:  http.StatusUnauthorized,
	}
}

// MapError converts a wrapped sentinel into the AppError the edge should
// return. Unrecognized errors become an opaque 500.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource")
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateKey):
		return ConflictError("request conflicts with current state")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return ValidationAppError(err.Error())
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrForbidden):
		return PermissionDeniedError("insufficient permissions")
	case errors.Is(err, ErrFeatureDisabled):
		return FeatureDisabledError("feature")
	case errors.Is(err, ErrCapacityExceeded):
		return CapacityExceededError("capacity exceeded")
	case errors.Is(err, ErrRateLimited):
		return RateLimitedError("too many requests")
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("authentication required")
	default:
		return &AppError{
			Code:    "INTERNAL",
			Message: "internal server error",
			Status:  http.StatusInternalServerError,
		}
	}
}
