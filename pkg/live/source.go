package live

import (
	"context"
	"fmt"
	"strings"

	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// Sink receives the pushes of one remote listener. A source calls it from
// one goroutine at a time per listener and in the order it observed the
// changes.
type Sink interface {
	// Snapshot delivers the full current document set.
	Snapshot(records []record.Record)
	// Error reports a terminal listener failure.
	Error(err error)
}

// Source is the remote capability behind the cache: attach a listener to a
// named query and push the full document set on every change.
type Source interface {
	// Listen starts a listener. The returned stop function detaches it; it
	// must not wait for an in-flight sink call to return.
	Listen(ctx context.Context, key string, sink Sink) (stop func())
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key string, sink Sink) func()

func (f SourceFunc) Listen(ctx context.Context, key string, sink Sink) func() {
	return f(ctx, key, sink)
}

// ListingsKey is the query key of the public listings collection.
const ListingsKey = "Listing"

// SavedKey returns the query key of a user's saved listings. The user is an
// explicit input so that a change of signed-in user is a change of key.
func SavedKey(uid string) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", ErrNoIdentity
	}
	if strings.Contains(uid, "/") {
		return "", fmt.Errorf("live: invalid user id %q", uid)
	}
	return "User/" + uid + "/saved", nil
}
