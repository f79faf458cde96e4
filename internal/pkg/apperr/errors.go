package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Business Error Codes
const (
	CodeSuccess          = 0
	CodeBadRequest       = 400
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeNotFound         = 404
	CodeConflict         = 409
	CodeTooManyRequests  = 429
	CodeInternalError    = 500
	CodeDatabaseError    = 1001
	CodeCacheError       = 1002
	CodeThreadNotFound   = 2001
	CodeThreadCreateErr  = 2002
	CodeThreadUpdateErr  = 2003
	CodeForumNotFound    = 2101
	CodeHierarchyTooDeep = 3001
	CodeEnrichment       = 3002
)

// Business Errors
var (
	ErrNotFound         = errors.New("not found")
	ErrThreadNotFound   = fmt.Errorf("thread %w", ErrNotFound)
	ErrForumNotFound    = fmt.Errorf("forum %w", ErrNotFound)
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrHierarchyTooDeep = errors.New("forum hierarchy too deep")
	ErrEnrichment       = errors.New("thread enrichment failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
)

// AppError Application Error with code and message
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError Create new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Validation 输入校验失败，errors.Is(err, ErrValidation) 成立
func Validation(err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrValidation, err),
	}
}

// Validationf 输入校验失败
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Errorf(format, args...))
}

// Conflict 并发写入冲突，重试可能成功
func Conflict(err error) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrConflict, err),
	}
}

// WrapError Wrap error with code
func WrapError(err error, code int) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}

// Classify 将任意错误映射为业务码和 HTTP 状态
func Classify(err error) (code int, status int) {
	var ae *AppError
	switch {
	case errors.As(err, &ae):
		return ae.Code, statusFor(ae.Code)
	case errors.Is(err, ErrThreadNotFound):
		return CodeThreadNotFound, http.StatusNotFound
	case errors.Is(err, ErrForumNotFound):
		return CodeForumNotFound, http.StatusNotFound
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return CodeBadRequest, http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return CodeConflict, http.StatusConflict
	case errors.Is(err, ErrHierarchyTooDeep):
		return CodeHierarchyTooDeep, http.StatusInternalServerError
	case errors.Is(err, ErrEnrichment):
		return CodeEnrichment, http.StatusInternalServerError
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden, http.StatusForbidden
	default:
		return CodeInternalError, http.StatusInternalServerError
	}
}

func statusFor(code int) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeThreadNotFound, CodeForumNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
