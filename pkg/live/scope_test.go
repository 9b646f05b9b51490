package live

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserScopeFollowsIdentity(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(src)
	rec := newRecorder()
	scope := NewUserScope(c, SavedKey, rec.onSnapshot, rec.onError)
	ctx := context.Background()

	require.NoError(t, scope.SetIdentity(ctx, "u1"))
	assert.Equal(t, "u1", scope.Identity())
	u1 := src.listener(t, 0)
	assert.Equal(t, "User/u1/saved", u1.key)

	// same user again does not resubscribe
	require.NoError(t, scope.SetIdentity(ctx, "u1"))
	src.mu.Lock()
	assert.Len(t, src.listeners, 1)
	src.mu.Unlock()

	require.NoError(t, scope.SetIdentity(ctx, "u2"))
	u2 := src.listener(t, 1)
	assert.True(t, u1.stopped.Load())
	assert.Equal(t, "User/u2/saved", u2.key)
	assert.Equal(t, "User/u2/saved", scope.Handle().Key())

	u1.sink.Snapshot(recs("stale"))
	u2.sink.Snapshot(recs("fresh"))
	assert.Equal(t, [][]string{{"fresh"}}, rec.ids())

	// signed out
	require.NoError(t, scope.SetIdentity(ctx, ""))
	assert.True(t, u2.stopped.Load())
	assert.Nil(t, scope.Handle())
	assert.Empty(t, c.Keys())
}

func TestUserScopeRejectsBadIdentity(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(src)
	scope := NewUserScope(c, SavedKey, nil, nil)

	require.NoError(t, scope.SetIdentity(context.Background(), "u1"))
	assert.Error(t, scope.SetIdentity(context.Background(), "bad/id"))

	// the previous subscription survives a rejected identity
	assert.Equal(t, "u1", scope.Identity())
	assert.False(t, src.listener(t, 0).stopped.Load())

	scope.Close()
	assert.True(t, src.listener(t, 0).stopped.Load())
	assert.Equal(t, "", scope.Identity())
}

func TestUserScopeResubscribesAfterFailure(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(src)
	rec := newRecorder()
	scope := NewUserScope(c, SavedKey, rec.onSnapshot, rec.onError)
	ctx := context.Background()

	require.NoError(t, scope.SetIdentity(ctx, "u1"))
	first := scope.Handle()
	src.listener(t, 0).sink.Error(NewSubscriptionError("User/u1/saved", KindTransport, errors.New("offline")))
	require.Len(t, rec.errs, 1)
	assert.True(t, first.Failed())

	require.NoError(t, scope.SetIdentity(ctx, "u1"))
	retry := src.listener(t, 1)
	assert.Equal(t, "User/u1/saved", retry.key)
	assert.NotEqual(t, first.ID(), scope.Handle().ID())

	retry.sink.Snapshot(recs("back"))
	assert.Equal(t, [][]string{{"back"}}, rec.ids())
	assert.Equal(t, []string{"User/u1/saved"}, c.Keys())
}
