package domain

import "errors"

// ErrorKind classifies failures for transport mapping.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindLocked         ErrorKind = "locked"
	KindUnavailable    ErrorKind = "unavailable"
	KindInternal       ErrorKind = "internal"
)

// Error is a classified failure with a stable machine readable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

// NewError constructs a classified error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the kind of the first classified error in the chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first classified error in the chain, or "InternalError".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "InternalError"
}

// MessageOf returns the public message of the first classified error in the chain.
func MessageOf(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Message, true
	}
	return "", false
}

// Token validation failures shared by the central service and the gate.
var (
	ErrNoToken         = NewError(KindAuthentication, "NoToken", "no token provided")
	ErrTokenExpired    = NewError(KindAuthentication, "TokenExpired", "token expired")
	ErrTokenMalformed  = NewError(KindAuthentication, "TokenMalformed", "token malformed")
	ErrAccountNotFound = NewError(KindAuthentication, "UserNotFound", "account not found")
	ErrAccountInactive = NewError(KindAuthentication, "AccountInactive", "account is not active")
	ErrAccountLocked   = NewError(KindLocked, "AccountLocked", "account is temporarily locked")
)
