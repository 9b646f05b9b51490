// Package store keeps listing collections in an embedded bbolt database and
// pushes full collection state to watchers on every change
package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPath indicates a malformed collection path
	ErrInvalidPath = errors.New("store: invalid collection path")

	// ErrClosed indicates an operation on a closed store
	ErrClosed = errors.New("store: closed")
)

// ValidatePath checks that p names a collection: non-empty segments
// alternating collection/document, ending on a collection, e.g. "Listing"
// or "User/u1/saved".
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(p, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q names a document, not a collection", ErrInvalidPath, p)
	}
	return nil
}
