package models

import (
	"errors"
	"fmt"
)

// APIError represents a standardized error response for the API
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error code constants
const (
	// General errors
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrInvalidID        = "INVALID_ID"
	ErrInvalidPage      = "INVALID_PAGINATION"

	// Authentication errors
	ErrInvalidCredentials = "INVALID_CREDENTIALS"
	ErrTokenMissing       = "TOKEN_MISSING"
	ErrTokenInvalid       = "TOKEN_INVALID"
	ErrTokenExpired       = "TOKEN_EXPIRED"
	ErrTokenRevoked       = "TOKEN_REVOKED"

	// User errors
	ErrUserNotFound         = "USER_NOT_FOUND"
	ErrEmailTaken           = "EMAIL_TAKEN"
	ErrInvalidRole          = "INVALID_ROLE"
	ErrSelfDemotion         = "SELF_DEMOTION_FORBIDDEN"
	ErrLastAdmin            = "LAST_ADMIN"
	ErrSearchQueryTooShort  = "SEARCH_QUERY_TOO_SHORT"
	ErrAdminRequired        = "ADMIN_REQUIRED"

	// Template errors
	ErrTemplateNotFound     = "TEMPLATE_NOT_FOUND"
	ErrTemplateAccessDenied = "TEMPLATE_ACCESS_DENIED"
	ErrTemplateLimitReached = "TEMPLATE_LIMIT_REACHED"
	ErrTemplateInvalidData  = "TEMPLATE_INVALID_DATA"
	ErrInvalidTopic         = "INVALID_TOPIC"
	ErrInvalidQuestionType  = "INVALID_QUESTION_TYPE"
	ErrQuestionSetMismatch  = "QUESTION_SET_MISMATCH"
	ErrGrantNotFound        = "GRANT_NOT_FOUND"
	ErrGrantToOwner         = "GRANT_TO_OWNER"

	// Form errors
	ErrFormNotFound          = "FORM_NOT_FOUND"
	ErrFormAccessDenied      = "FORM_ACCESS_DENIED"
	ErrAnswersRequired       = "ANSWERS_REQUIRED"
	ErrAnswerLimitExceeded   = "ANSWER_LIMIT_EXCEEDED"
	ErrInvalidAnswerFormat   = "INVALID_ANSWER_FORMAT"
	ErrDuplicateAnswer       = "DUPLICATE_ANSWER"
	ErrUnknownQuestion       = "UNKNOWN_QUESTION"
	ErrAmendWindowClosed     = "AMEND_WINDOW_CLOSED"

	// OAuth/Auth errors (maintain RFC 6749 compatibility)
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidClient        = "invalid_client"
	ErrInvalidGrant         = "invalid_grant"
	ErrUnauthorizedClient   = "unauthorized_client"
	ErrUnsupportedGrantType = "unsupported_grant_type"
	ErrInvalidScope         = "invalid_scope"
)

// NewAPIError creates a new API error with the given code and message
func NewAPIError(code, message string, details ...map[string]interface{}) APIError {
	err := APIError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// ErrorKind classifies a failure so the HTTP layer can pick a status code
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

// AppError is the error every service returns. Err holds the underlying
// cause and is never sent to clients in production.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-safe details to the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func NewValidationError(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

func NewAuthenticationError(code, message string) *AppError {
	return &AppError{Kind: KindAuthentication, Code: code, Message: message}
}

func NewForbiddenError(code, message string) *AppError {
	return &AppError{Kind: KindAuthorization, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

func NewInvariantError(code, message string) *AppError {
	return &AppError{Kind: KindInvariant, Code: code, Message: message}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: ErrInternalServer, Message: "An unexpected error occurred", Err: err}
}

// AsAppError unwraps err into an *AppError when it carries one
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

// OAuth2Error represents an OAuth2 error response (RFC 6749)
type OAuth2Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// NewOAuth2Error creates a new OAuth2 error response
func NewOAuth2Error(error, description string) OAuth2Error {
	return OAuth2Error{
		Error:            error,
		ErrorDescription: description,
	}
}
