package authlink

import (
	"errors"
	"fmt"
)

// RefreshErrorKind classifies why a refresh failed.
type RefreshErrorKind int

const (
	// NetworkFailure is transient. A later operation may start a new episode.
	NetworkFailure RefreshErrorKind = iota + 1

	// Rejected means the server refused the refresh credential. The session is
	// over until the user logs in again.
	Rejected

	// MalformedResponse means the server answered outside the protocol.
	MalformedResponse
)

func (k RefreshErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case Rejected:
		return "rejected"
	case MalformedResponse:
		return "malformed response"
	}
	return fmt.Sprintf("RefreshErrorKind(%d)", int(k))
}

// Sentinels for errors.Is matching against a *RefreshError
var (
	ErrNetworkFailure    = errors.New("refresh network failure")
	ErrRefreshRejected   = errors.New("refresh rejected")
	ErrMalformedResponse = errors.New("malformed refresh response")
)

// RefreshError is returned by a RefreshGateway and delivered unchanged to every
// waiter of the episode that produced it.
type RefreshError struct {
	Kind RefreshErrorKind

	// StatusCode is the HTTP status of the refresh response, 0 if none was received.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

func (e *RefreshError) Error() string {
	msg := "refresh failed: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *RefreshError) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == NetworkFailure
	case ErrRefreshRejected:
		return e.Kind == Rejected
	case ErrMalformedResponse:
		return e.Kind == MalformedResponse
	}
	return false
}

// IsTerminal reports whether err ends the session, i.e. the user must log in again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRefreshRejected)
}
