package session

import (
	"context"
	"time"

	"awsnav/logging"
	"awsnav/profile"
)

// State describes whether a profile's cached SSO session can be reused
type State int

const (
	Unknown State = iota
	Valid
	Expired
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// NeedsLogin reports whether the login step has to run
func (s State) NeedsLogin() bool {
	return s != Valid
}

// CredentialCache looks up cached SSO session metadata
type CredentialCache interface {
	// CachedSessionExpiry returns the expiry of the cached session, false if none is cached
	CachedSessionExpiry(ctx context.Context, p profile.Profile) (time.Time, bool, error)
}

// Validator decides whether a cached session is still usable. It never mutates the cache.
type Validator struct {
	Cache CredentialCache
	Force bool
	Now   func() time.Time
}

// Check returns the session state of p
func (v Validator) Check(ctx context.Context, p profile.Profile) State {
	if v.Force {
		logging.Logger.Debug("Forcing reauthentication", "profile", p.Name)
		return Expired
	}

	if v.Cache == nil {
		return Unknown
	}

	expiry, ok, err := v.Cache.CachedSessionExpiry(ctx, p)
	if err != nil {
		logging.Logger.Debug("Cannot read cached session", "profile", p.Name, "error", err)
		return Unknown
	}
	if !ok {
		return Unknown
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	if expiry.After(now()) {
		return Valid
	}
	return Expired
}
