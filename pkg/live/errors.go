// Package live keeps an in-memory snapshot per remote live query
package live

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey indicates a subscription without a query key
	ErrEmptyKey = errors.New("live: empty query key")

	// ErrNoSource indicates a cache built without a source
	ErrNoSource = errors.New("live: no source")

	// ErrNoIdentity indicates a user-scoped key requested without a user
	ErrNoIdentity = errors.New("live: no identity")
)

// ErrorKind classifies why a live listener failed.
type ErrorKind string

const (
	KindPermission ErrorKind = "permission"
	KindTransport  ErrorKind = "transport"
	KindQuery      ErrorKind = "query"
)

// SubscriptionError is delivered through the error callback when the remote
// listener for Key fails. No snapshots follow it on the same subscription.
type SubscriptionError struct {
	Key  string
	Kind ErrorKind
	Err  error
}

// NewSubscriptionError wraps err for key.
func NewSubscriptionError(key string, kind ErrorKind, err error) *SubscriptionError {
	return &SubscriptionError{Key: key, Kind: kind, Err: err}
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("live: %s error on %q: %v", e.Kind, e.Key, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// AsSubscriptionError returns err as a SubscriptionError for key, wrapping
// it as a transport failure when it is not one already.
func AsSubscriptionError(key string, err error) *SubscriptionError {
	var se *SubscriptionError
	if errors.As(err, &se) {
		return se
	}
	return NewSubscriptionError(key, KindTransport, err)
}
