package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindUnauthorized means the session is invalid or expired. The
	// client has already cleared the session store by the time this is
	// returned; recovery is fresh authentication.
	KindUnauthorized ErrorKind = iota

	// KindServer means the server answered with a non-2xx status other
	// than 401, or a 2xx body that could not be decoded.
	KindServer

	// KindNetwork means no response was received at all.
	KindNetwork
)

// FetchError is the typed failure returned by every Client call. It
// never escapes the client as a panic or untyped error; callers branch
// on Kind to choose blocking vs. transient treatment.
type FetchError struct {
	Kind   ErrorKind
	Status int
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return fmt.Sprintf("%s: unauthorized", e.Op)
	case KindNetwork:
		return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: server error (%d)", e.Op, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err (or any error in its chain) is an
// unauthorized FetchError.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindUnauthorized
}

// AsFetchError extracts a FetchError from err's chain, if present.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
