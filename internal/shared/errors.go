package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrAlreadyLocked = fmt.Errorf("another instance is already running")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrApplyFailed        = fmt.Errorf("failed to apply playlist")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// AuthorizationError reports missing or rejected credentials for a provider or the media server.
type AuthorizationError struct {
	Service string
	Err     error
}

func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Service, ErrAuthFailed)
	}
	return fmt.Sprintf("%s: %v: %v", e.Service, ErrAuthFailed, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAuthFailed) hold for every AuthorizationError.
func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthFailed }

// FetchError reports a transient network or API failure while reading from a service.
type FetchError struct {
	Service  string
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v (%s): %v", e.Service, ErrAPIRequest, e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrAPIRequest }

// ApplyError reports a failed write to a target playlist.
type ApplyError struct {
	PlaylistID string
	Op         string
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%v %s (%s): %v", ErrApplyFailed, e.PlaylistID, e.Op, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

func (e *ApplyError) Is(target error) bool { return target == ErrApplyFailed }

// NewAuthorizationError wraps err as an [AuthorizationError] for service.
func NewAuthorizationError(service string, err error) error {
	return &AuthorizationError{Service: service, Err: err}
}

// NewFetchError wraps err as a [FetchError] unless it already is an [AuthorizationError] or [FetchError].
func NewFetchError(service, resource string, err error) error {
	var authErr *AuthorizationError
	var fetchErr *FetchError
	if errors.As(err, &authErr) || errors.As(err, &fetchErr) {
		return err
	}
	return &FetchError{Service: service, Resource: resource, Err: err}
}

// NewApplyError wraps err as an [ApplyError].
func NewApplyError(playlistID, op string, err error) error {
	return &ApplyError{PlaylistID: playlistID, Op: op, Err: err}
}

// IsAuthorization reports whether err is (or wraps) an [AuthorizationError].
func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}
