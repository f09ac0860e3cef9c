package apperror

import (
	"errors"
	"net/http"
)

// HTTPStatus maps err to a response status. Conflicts are reported as 400
// to keep the original API contract.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeValidation, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope.
type Body struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Details []FieldError `json:"details,omitempty"`
}

// BodyOf builds the envelope for err. Internal errors never expose their message.
func BodyOf(err error) Body {
	code := GetCode(err)
	if code == CodeInternal || code == "" {
		return Body{Error: "internal server error", Code: string(CodeInternal)}
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		return Body{Error: "internal server error", Code: string(CodeInternal)}
	}
	reason := appErr.Reason
	if reason == "" {
		reason = string(appErr.Code)
	}
	return Body{Error: appErr.Message, Code: reason, Details: appErr.Details}
}
