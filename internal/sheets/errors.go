package sheets

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by every call when no endpoint is set.
	ErrNotConfigured = errors.New("sheets api not configured")
	// ErrRemoteNotFound is returned when the store answers a lookup with no record.
	ErrRemoteNotFound = errors.New("record not found in remote store")
	// ErrEmptyResult is returned by Do when a result was expected but the body was null or empty.
	ErrEmptyResult = errors.New("empty result from remote store")
)

// TransportError is a network failure or a non-success HTTP status.
type TransportError struct {
	Action     Action
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sheets %s: status %d: %v", e.Action, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sheets %s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteApplicationError is an error reported inside an otherwise successful response.
type RemoteApplicationError struct {
	Action  Action
	Message string
}

func (e *RemoteApplicationError) Error() string {
	return fmt.Sprintf("sheets %s: remote error: %s", e.Action, e.Message)
}

// IsRemoteFailure reports whether err came from talking to the remote store,
// as opposed to a local validation failure.
func IsRemoteFailure(err error) bool {
	var te *TransportError
	var ae *RemoteApplicationError
	return errors.As(err, &te) || errors.As(err, &ae)
}
