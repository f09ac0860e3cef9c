package apperror

import "errors"

type Code string

const (
	CodeValidation   Code = "validation"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by services. Two errors match under
// errors.Is when their Code and Reason are equal, so the package-level
// sentinels can be compared against copies carrying details.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Reason == "" {
		return e.Code == other.Code
	}
	return e.Code == other.Code && e.Reason == other.Reason
}

// WithDetails returns a copy of e carrying the given field details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	cp := *e
	cp.Details = append([]FieldError(nil), details...)
	return &cp
}

// WithMessage returns a copy of e with a different human readable message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// Wrap returns a copy of e that unwraps to cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func newReason(code Code, reason, message string) *Error {
	return &Error{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

// Validation builds a validation error from field details.
func Validation(message string, details ...FieldError) *Error {
	return ErrValidation.WithMessage(message).WithDetails(details...)
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// DetailsOf returns the field details attached to err, if any.
func DetailsOf(err error) []FieldError {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

var (
	ErrValidation = newReason(CodeValidation, "validation_failed", "validation failed")
	ErrNotFound   = newReason(CodeNotFound, "not_found", "resource not found")
	ErrConflict   = newReason(CodeConflict, "conflict", "resource with the same unique attributes already exists")

	ErrTokenMissing      = newReason(CodeUnauthorized, "token_missing", "access token required")
	ErrTokenInvalid      = newReason(CodeUnauthorized, "token_invalid", "invalid or expired token")
	ErrInvalidCredential = newReason(CodeUnauthorized, "invalid_credential", "invalid credentials")
	ErrAccountInactive   = newReason(CodeUnauthorized, "account_inactive", "account is not active")
	ErrForbidden         = newReason(CodeForbidden, "forbidden", "insufficient permissions")

	ErrDuplicateUser       = newReason(CodeConflict, "duplicate_user", "user with this email already exists")
	ErrDuplicateInvitation = newReason(CodeConflict, "duplicate_invitation", "invitation already sent to this email")
	ErrFirstLoginCompleted = newReason(CodeConflict, "first_login_completed", "user has already completed first-time login")
	ErrInvalidState        = newReason(CodeConflict, "invalid_state", "onboarding is not in a state that allows this action")

	ErrInvitationExpired   = newReason(CodeValidation, "invitation_expired", "invitation has expired")
	ErrProfileIncomplete   = newReason(CodeValidation, "profile_incomplete", "please complete your profile first")
	ErrMissingDocuments    = newReason(CodeValidation, "missing_documents", "please upload all required documents")
	ErrOnboardingMissing   = newReason(CodeValidation, "onboarding_missing", "no onboarding record found")
	ErrProfileLocked       = newReason(CodeValidation, "profile_locked", "profile has already been approved")
	ErrInvalidDocumentType = newReason(CodeValidation, "invalid_document_type", "invalid document type")
	ErrFileTooLarge        = newReason(CodeValidation, "file_too_large", "file exceeds the maximum upload size")
	ErrUnsupportedFormat   = newReason(CodeValidation, "unsupported_format", "only images, PDFs, and Word documents are allowed")
	ErrMissingFile         = newReason(CodeValidation, "missing_file", "no file uploaded")
	ErrDocumentLimit       = newReason(CodeValidation, "document_limit", "too many documents of this type")
)
