package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// Is reports whether target carries the same code, so wrapped copies
// still match their sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// WithDetail appends a formatted detail to the message
func (e *Error) WithDetail(format string, args ...any) *Error {
	return &Error{
		Code: e.Code,
		Msg:  e.Msg + ": " + fmt.Sprintf(format, args...),
	}
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrUnavailable    = New(1002, "service unavailable, please retry")
	ErrUnauthorized   = New(1003, "unauthorized")
	ErrForbidden      = New(1004, "forbidden")
	ErrNotFound       = New(1005, "not found")
	ErrTooManyRequest = New(1006, "too many requests")

	// Auth errors (2xxx)
	ErrTokenInvalid = New(2001, "token invalid")
	ErrTokenExpired = New(2002, "token expired")
	ErrTokenMissing = New(2003, "token missing")

	// Participant and target errors (3xxx)
	ErrInvalidParticipant = New(3001, "invalid participant")
	ErrTargetNotFound     = New(3002, "target not found")

	// Message errors (4xxx)
	ErrEmptyMessage      = New(4001, "message has neither body nor attachments")
	ErrInvalidAttachment = New(4002, "invalid attachment descriptor")

	// Attachment errors (41xx)
	ErrFileTooLarge       = New(4101, "file too large")
	ErrFileTypeNotAllowed = New(4102, "file type not allowed")
	ErrNoFiles            = New(4103, "no files in upload")
	ErrTooManyFiles       = New(4104, "too many files in upload")
)
