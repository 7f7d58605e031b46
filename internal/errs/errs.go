package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status code
type Kind int

const (
	// Internal is the zero Kind; anything unclassified ends up here
	Internal Kind = iota
	MethodNotAllowed
	Configuration
	Validation
	Auth
	AuthorizationGap
	UpstreamUnreachable
	UpstreamProtocol
	UpstreamRejected
)

func (k Kind) String() string {
	switch k {
	case MethodNotAllowed:
		return "method_not_allowed"
	case Configuration:
		return "configuration"
	case Validation:
		return "validation"
	case Auth:
		return "auth"
	case AuthorizationGap:
		return "authorization_gap"
	case UpstreamUnreachable:
		return "upstream_unreachable"
	case UpstreamProtocol:
		return "upstream_protocol"
	case UpstreamRejected:
		return "upstream_rejected"
	default:
		return "internal"
	}
}

// Status returns the HTTP status used when an error of this Kind reaches a client.
// UpstreamRejected has no fixed status: the upstream's own status is relayed.
func (k Kind) Status() int {
	switch k {
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case Validation, AuthorizationGap:
		return http.StatusBadRequest
	case Auth:
		return http.StatusUnauthorized
	case UpstreamUnreachable, UpstreamProtocol, UpstreamRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to return to callers;
// Err is the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates a classified error around cause
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf reports the Kind of err, or Internal when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// StatusOf maps err to an HTTP status
func StatusOf(err error) int {
	return KindOf(err).Status()
}

// PublicMessage returns the message that may be shown to a caller
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// Rejected carries an upstream non-success response that is relayed verbatim
type Rejected struct {
	Status int
	Body   []byte
}

func (r *Rejected) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", r.Status)
}

// AsRejected unwraps a relayable upstream rejection
func AsRejected(err error) (*Rejected, bool) {
	var r *Rejected
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
