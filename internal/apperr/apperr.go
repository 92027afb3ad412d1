// Package apperr defines the domain error taxonomy shared by every service.
// Each error carries a stable machine-readable code and a human message so
// HTTP handlers can translate without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified domain error.
type Error struct {
	Status  int
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is treats two errors with the same code as equal so services can compare
// against the package sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithMessage returns a copy of e carrying a more specific human message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Status: e.Status, Code: e.Code, Message: msg, cause: e.cause}
}

// Wrap returns a copy of e recording cause for logs; the code and message
// shown to callers are unchanged.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Code: e.Code, Message: e.Message, cause: cause}
}

func define(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Authentication and authorization.
var (
	ErrUnauthorized         = define(http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	ErrForbidden            = define(http.StatusForbidden, "FORBIDDEN", "access denied")
	ErrInvalidToken         = define(http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
	ErrExpiredToken         = define(http.StatusUnauthorized, "EXPIRED_TOKEN", "expired token")
	ErrRefreshTokenNotFound = define(http.StatusUnauthorized, "REFRESH_TOKEN_NOT_FOUND", "refresh token not found")
)

// Missing resources.
var (
	ErrNotFound           = define(http.StatusNotFound, "NOT_FOUND", "requested resource not found")
	ErrUserNotFound       = define(http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	ErrTeamNotFound       = define(http.StatusNotFound, "TEAM_NOT_FOUND", "team not found")
	ErrScheduleNotFound   = define(http.StatusNotFound, "SCHEDULE_NOT_FOUND", "schedule not found")
	ErrScheduleArchived   = define(http.StatusGone, "SCHEDULE_ARCHIVED", "schedule has been archived")
	ErrInvitationNotFound = define(http.StatusNotFound, "INVITATION_NOT_FOUND", "invitation not found")
)

// Bad requests.
var (
	ErrBadRequest                 = define(http.StatusBadRequest, "BAD_REQUEST", "bad request")
	ErrInvalidDateRange           = define(http.StatusBadRequest, "INVALID_DATE_RANGE", "end time must be after start time")
	ErrInvitationExpired          = define(http.StatusBadRequest, "INVITATION_EXPIRED", "invitation has expired")
	ErrInvitationAlreadyResponded = define(http.StatusBadRequest, "INVITATION_ALREADY_RESPONDED", "invitation has already been responded to")
)

// Conflicts.
var (
	ErrConflict          = define(http.StatusConflict, "CONFLICT", "resource already exists")
	ErrAlreadyTeamMember = define(http.StatusConflict, "ALREADY_TEAM_MEMBER", "user is already a member of this team")
	ErrMaxTeamExceeded   = define(http.StatusConflict, "MAX_TEAM_EXCEEDED", "maximum team membership count exceeded")
	ErrDuplicateKakaoID  = define(http.StatusConflict, "DUPLICATE_KAKAO_ID", "kakao account is already registered")
)

// Server-side failures.
var (
	ErrInternal               = define(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
	ErrKakaoAPI               = define(http.StatusInternalServerError, "KAKAO_API_ERROR", "kakao API call failed")
	ErrNotificationSendFailed = define(http.StatusInternalServerError, "NOTIFICATION_SEND_FAILED", "notification delivery failed")
)

// From classifies err for HTTP responses. Unclassified errors map to
// ErrInternal so internals never leak to callers.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}
