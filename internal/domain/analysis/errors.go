package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle indicates the submitted profile could not be turned into a handle.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrRemoteUnavailable indicates an upstream service could not be reached or failed.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrPersistenceConflict indicates the analysis succeeded but the remote copy was not saved.
	ErrPersistenceConflict = errors.New("analysis saved locally but not remotely")

	// ErrUnauthorized indicates a missing or unknown session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrQuotaExceeded indicates the note provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrSuperseded indicates a newer analysis for the same session replaced this one.
	ErrSuperseded = errors.New("analysis superseded by a newer request")
)

// RemoteError carries the status and `detail` message returned by an upstream service.
// It unwraps to ErrRemoteUnavailable.
type RemoteError struct {
	Service string
	Status  int
	Detail  string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Status)
}

func (e *RemoteError) Unwrap() error { return ErrRemoteUnavailable }

// InvalidHandleError explains why a profile input was rejected.
type InvalidHandleError struct {
	Input  string
	Reason string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid handle %q: %s", e.Input, e.Reason)
}

func (e *InvalidHandleError) Unwrap() error { return ErrInvalidHandle }
