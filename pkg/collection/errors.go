package collection

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

// Error kinds. A cancelled operation is never reported as an error, so there
// is no kind for it.
const (
	KindTransportFailure Kind = iota
	KindInvalidArgument
	KindNotFound
	KindParseFailure
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindParseFailure:
		return "parse_failure"
	default:
		return "transport_failure"
	}
}

// Sentinel errors for use with errors.Is. An *Error matches the sentinel of
// its Kind.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrTransportFailure = &Error{Kind: KindTransportFailure, Message: "transport failure"}
	ErrParseFailure     = &Error{Kind: KindParseFailure, Message: "parse failure"}
)

// Error is the structured failure delivered by pipes and stores.
type Error struct {
	// Kind is the error category.
	Kind Kind
	// Domain names where the error originated (e.g. "pipe", "store", "rest").
	Domain string
	// Message is human readable.
	Message string
	// Status is the remote status code, when the failure came from a response.
	Status int
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Domain != "" {
		msg = e.Domain + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. This lets callers
// write errors.Is(err, collection.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode returns the HTTP status code for this error.
func (e *Error) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindParseFailure:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindInvalidArgument:
		return "Check that the record carries a value for the collection's identity field."
	case KindNotFound:
		return "Check the identity value. List the collection to see available records."
	case KindParseFailure:
		return "The response was not valid JSON or did not contain the configured response root."
	default:
		return "Check connectivity to the remote endpoint and its status."
	}
}

// StatusCodeError is an interface for errors that have an HTTP status code.
type StatusCodeError interface {
	error
	StatusCode() int
}

// HintError is an interface for errors that provide resolution hints.
type HintError interface {
	error
	Hint() string
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, domain, format string, args ...any) *Error {
	return &Error{Kind: kind, Domain: domain, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument builds an InvalidArgument error.
func InvalidArgument(domain, format string, args ...any) *Error {
	return NewError(KindInvalidArgument, domain, format, args...)
}

// NotFound builds a NotFound error for the given identity.
func NotFound(domain, collection string, id any) *Error {
	return NewError(KindNotFound, domain, "collection %q record %q not found", collection, IdentityKey(id))
}

// TransportFailure wraps err as a TransportFailure.
func TransportFailure(domain string, err error) *Error {
	return &Error{Kind: KindTransportFailure, Domain: domain, Message: "transport failure", Err: err}
}

// ParseFailure wraps err as a ParseFailure.
func ParseFailure(domain string, err error) *Error {
	return &Error{Kind: KindParseFailure, Domain: domain, Message: "unable to parse response", Err: err}
}

// KindOf classifies err. Errors that are not an *Error are transport failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransportFailure
}
