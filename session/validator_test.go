package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"awsnav/profile"
)

type fakeCache struct {
	expiry time.Time
	found  bool
	err    error
	calls  int
}

func (f *fakeCache) CachedSessionExpiry(_ context.Context, _ profile.Profile) (time.Time, bool, error) {
	f.calls++
	return f.expiry, f.found, f.err
}

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		cache *fakeCache
		want  State
	}{
		{"valid", &fakeCache{expiry: now.Add(time.Hour), found: true}, Valid},
		{"expired", &fakeCache{expiry: now.Add(-time.Minute), found: true}, Expired},
		{"expires now", &fakeCache{expiry: now, found: true}, Expired},
		{"nothing cached", &fakeCache{}, Unknown},
		{"unreadable cache", &fakeCache{err: errors.New("bad json")}, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validator{Cache: tt.cache, Now: func() time.Time { return now }}
			got := v.Check(context.Background(), profile.Profile{Name: "acme-dev-admin"})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != Valid, got.NeedsLogin())
		})
	}
}

func TestCheck_ForceAlwaysExpired(t *testing.T) {
	caches := []*fakeCache{
		{expiry: now.Add(time.Hour), found: true},
		{expiry: now.Add(-time.Hour), found: true},
		{},
		{err: errors.New("unreadable")},
	}

	for _, cache := range caches {
		v := Validator{Cache: cache, Force: true, Now: func() time.Time { return now }}
		assert.Equal(t, Expired, v.Check(context.Background(), profile.Profile{Name: "acme-dev-admin"}))
		assert.Zero(t, cache.calls, "forced checks must not consult the cache")
	}
}

func TestCheck_NoCache(t *testing.T) {
	assert.Equal(t, Unknown, Validator{}.Check(context.Background(), profile.Profile{}))
}
