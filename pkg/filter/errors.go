// Package filter implements client-side numeric range filtering of snapshots
package filter

import "errors"

var (
	// ErrNonFinite indicates a NaN or infinite bound in a spec
	ErrNonFinite = errors.New("filter: non-finite bound")

	// ErrBadBound indicates bound text that is not an integer
	ErrBadBound = errors.New("filter: invalid bound")
)
