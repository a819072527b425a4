package share_fetch

import (
	"errors"
	"fmt"

	"github.com/alanbriolat/share-fetch/generic"
)

// ErrorKind classifies why resolving or downloading a link failed. ErrorKind values are themselves errors, so
// errors.Is(err, MalformedLink) works on any error chain containing an *Error of that kind.
type ErrorKind string

const (
	// MalformedLink means the URL does not match any known shape for its service.
	MalformedLink ErrorKind = "malformed link"
	// ApiRejected means the remote service returned an error or an unexpected payload, e.g. an expired link.
	ApiRejected ErrorKind = "api rejected"
	// ConfirmationTokenMissing means a large-file confirmation page had no usable token.
	ConfirmationTokenMissing ErrorKind = "confirmation token missing"
	// AccessDenied means the service refused access (permissions, quota exceeded, sign-in required).
	AccessDenied ErrorKind = "access denied"
	NetworkFailure ErrorKind = "network failure"
	HttpError      ErrorKind = "http error"
	// FileSystem means the destination file could not be created or written.
	FileSystem ErrorKind = "filesystem error"
)

func (k ErrorKind) Error() string {
	return string(k)
}

// Error is the error type returned for every failed link, carrying enough context for the user to act on it.
type Error struct {
	Kind ErrorKind
	// Op is the pipeline stage that failed: "match", "resolve" or "download".
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.URL, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, kind) match on the Kind of the Error.
func (e *Error) Is(target error) bool {
	if k, ok := target.(ErrorKind); ok {
		return e.Kind == k
	}
	return false
}

// NewError creates an *Error; err may be nil.
func NewError(kind ErrorKind, op string, url string, err error) *Error {
	return &Error{Kind: kind, Op: op, URL: url, Err: err}
}

// Errorf is a shortcut for NewError with a formatted inner error.
func Errorf(kind ErrorKind, op string, url string, format string, args ...interface{}) *Error {
	return NewError(kind, op, url, fmt.Errorf(format, args...))
}

// KindOf returns the ErrorKind of the first *Error in the chain, if any.
func KindOf(err error) generic.Option[ErrorKind] {
	var e *Error
	if errors.As(err, &e) {
		return generic.Some(e.Kind)
	}
	return generic.None[ErrorKind]()
}
