package live

import (
	"context"
	"sync"

	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// UserScope keeps one subscription bound to the signed-in user, replacing it
// whenever the identity changes.
type UserScope struct {
	cache      *Cache
	keyFor     func(uid string) (string, error)
	onSnapshot func(record.Snapshot)
	onError    func(error)

	mu     sync.Mutex
	uid    string
	handle *Handle
}

// NewUserScope creates a scope that derives its query key with keyFor,
// typically SavedKey.
func NewUserScope(cache *Cache, keyFor func(uid string) (string, error), onSnapshot func(record.Snapshot), onError func(error)) *UserScope {
	return &UserScope{
		cache:      cache,
		keyFor:     keyFor,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
}

// SetIdentity tears down the subscription of the previous user and, unless
// uid is empty (signed out), subscribes to the key of the new one. Setting
// the current identity again is a no-op while its subscription is healthy
// and resubscribes once it has failed.
func (s *UserScope) SetIdentity(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uid == s.uid && (uid == "" || (s.handle != nil && !s.handle.Failed())) {
		return nil
	}

	var key string
	if uid != "" {
		k, err := s.keyFor(uid)
		if err != nil {
			return err
		}
		key = k
	}

	if s.handle != nil {
		s.cache.Unsubscribe(s.handle)
		s.handle = nil
	}
	s.uid = uid
	if uid == "" {
		return nil
	}
	s.handle = s.cache.Subscribe(ctx, key, s.onSnapshot, s.onError)
	return nil
}

// Identity returns the user the scope is bound to.
func (s *UserScope) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

// Handle returns the current subscription, nil when signed out.
func (s *UserScope) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Close drops the current subscription.
func (s *UserScope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.cache.Unsubscribe(s.handle)
		s.handle = nil
	}
	s.uid = ""
}
