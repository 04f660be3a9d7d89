package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	ErrCodeNegativeNetAmount    ErrorCode = "NEGATIVE_NET_AMOUNT"
	ErrCodeInvalidDescription   ErrorCode = "INVALID_DESCRIPTION"
	ErrCodeInvalidTaxCode       ErrorCode = "INVALID_TAX_CODE"
	ErrCodeInvalidDocumentType  ErrorCode = "INVALID_DOCUMENT_TYPE"
	ErrCodeInvalidAction        ErrorCode = "INVALID_ACTION"
	ErrCodeNoteRequired         ErrorCode = "NOTE_REQUIRED"
	ErrCodeSubmissionIncomplete ErrorCode = "SUBMISSION_INCOMPLETE"
	ErrCodeMissingAttachment    ErrorCode = "MISSING_ATTACHMENT"
	ErrCodeSPMNotApproved       ErrorCode = "SPM_NOT_APPROVED"

	ErrCodeSPMNotFound         ErrorCode = "SPM_NOT_FOUND"
	ErrCodeSP2DNotFound        ErrorCode = "SP2D_NOT_FOUND"
	ErrCodeAttachmentNotFound  ErrorCode = "ATTACHMENT_NOT_FOUND"
	ErrCodeNotificationMissing ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeUnauthorizedAccess  ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeCannotModifySPM     ErrorCode = "CANNOT_MODIFY_SPM"
	ErrCodeInvalidSPMStatus    ErrorCode = "INVALID_SPM_STATUS"
	ErrCodeInvalidSP2DStatus   ErrorCode = "INVALID_SP2D_STATUS"
	ErrCodeWrongStage          ErrorCode = "WRONG_STAGE"
	ErrCodeRoleRequired        ErrorCode = "ROLE_REQUIRED"
	ErrCodeStatusCollision     ErrorCode = "STATUS_COLLISION"
	ErrCodeSP2DAlreadyExists   ErrorCode = "SP2D_ALREADY_EXISTS"
	ErrCodeDuplicateNumber     ErrorCode = "DUPLICATE_DOCUMENT_NUMBER"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeAuthCodeInvalid    ErrorCode = "AUTH_CODE_INVALID"
	ErrCodeAuthCodeRequired   ErrorCode = "AUTH_CODE_REQUIRED"

	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeStorageFailed     ErrorCode = "STORAGE_FAILED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so package level sentinels can be used with errors.Is
// even after WithCause/WithDetails produced a copy.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy carrying cause, leaving shared sentinels untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewPersistenceError wraps a store failure. It is fatal to the request and never retried here.
func NewPersistenceError(op string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodePersistenceFailed,
		Message:    fmt.Sprintf("failed to %s", op),
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrSPMNotFound          = NewNotFoundError("SPM not found", ErrCodeSPMNotFound)
	ErrSP2DNotFound         = NewNotFoundError("SP2D not found", ErrCodeSP2DNotFound)
	ErrAttachmentNotFound   = NewNotFoundError("attachment not found", ErrCodeAttachmentNotFound)
	ErrNotificationNotFound = NewNotFoundError("notification not found", ErrCodeNotificationMissing)
	ErrUserNotFound         = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrUnauthorizedAccess   = NewForbiddenError("unauthorized access to document", ErrCodeUnauthorizedAccess)
	ErrCannotModifySPM      = NewValidationError("SPM can only be changed while draft or perlu_revisi", ErrCodeCannotModifySPM)
	ErrInvalidSPMStatus     = NewValidationError("invalid SPM status for this operation", ErrCodeInvalidSPMStatus)
	ErrInvalidSP2DStatus    = NewValidationError("invalid SP2D status for this operation", ErrCodeInvalidSP2DStatus)
	ErrSPMNotApproved       = NewValidationError("SP2D can only be created from an approved SPM", ErrCodeSPMNotApproved)
	ErrNegativeNetAmount    = NewValidationError("deductions exceed the gross amount", ErrCodeNegativeNetAmount)
	ErrNoteRequired         = NewValidationError("a note is required when requesting revision", ErrCodeNoteRequired)
	ErrInvalidAction        = NewValidationError("action must be approve or revise", ErrCodeInvalidAction)

	ErrWrongStage       = NewForbiddenError("not authorized to act at this stage", ErrCodeWrongStage)
	ErrRoleRequired     = NewForbiddenError("user does not hold the acting role", ErrCodeRoleRequired)
	ErrStatusCollision  = NewConflictError("document status changed concurrently, reload and try again", ErrCodeStatusCollision)
	ErrSP2DExists       = NewConflictError("an SP2D already exists for this SPM", ErrCodeSP2DAlreadyExists)
	ErrDuplicateNumber  = NewConflictError("document number already in use", ErrCodeDuplicateNumber)
	ErrAuthCodeInvalid  = NewUnauthorizedError("code invalid or expired, request a new PIN", ErrCodeAuthCodeInvalid)
	ErrAuthCodeRequired = NewUnauthorizedError("a PIN or OTP is required for this action", ErrCodeAuthCodeRequired)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
