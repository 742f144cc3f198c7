package aws

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"awsnav/profile"
)

// legacyExpiryLayout is the expiresAt format older AWS CLI versions wrote
const legacyExpiryLayout = "2006-01-02T15:04:05UTC"

// CachedToken mirrors an entry of the AWS CLI SSO token cache
type CachedToken struct {
	StartURL              string `json:"startUrl,omitempty"`
	Region                string `json:"region,omitempty"`
	AccessToken           string `json:"accessToken"`
	ExpiresAt             string `json:"expiresAt"`
	ClientID              string `json:"clientId,omitempty"`
	ClientSecret          string `json:"clientSecret,omitempty"`
	RegistrationExpiresAt string `json:"registrationExpiresAt,omitempty"`
	RefreshToken          string `json:"refreshToken,omitempty"`
}

// Expiry parses ExpiresAt
func (t CachedToken) Expiry() (time.Time, error) {
	return parseExpiry(t.ExpiresAt)
}

func parseExpiry(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(legacyExpiryLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token expiration %q: %w", value, err)
	}
	return ts, nil
}

// TokenCache reads and writes the SSO token cache shared with the AWS CLI
type TokenCache struct {
	dir string
	now func() time.Time
}

// DefaultTokenCacheDir returns ~/.aws/sso/cache
func DefaultTokenCacheDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".aws", "sso", "cache"), nil
}

// NewTokenCache creates a cache rooted at dir
func NewTokenCache(dir string) *TokenCache {
	return &TokenCache{dir: dir, now: time.Now}
}

// Path returns the cache file for a session name or start URL
func (c *TokenCache) Path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Load returns the cached token for key, nil if none is cached
func (c *TokenCache) Load(key string) (*CachedToken, error) {
	data, err := os.ReadFile(c.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var token CachedToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token cache %s: %w", c.Path(key), err)
	}

	return &token, nil
}

// Save writes token under key
func (c *TokenCache) Save(key string, token CachedToken) error {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(c.Path(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}

	return nil
}

// CachedSessionExpiry returns the expiry of the token cached for p
func (c *TokenCache) CachedSessionExpiry(_ context.Context, p profile.Profile) (time.Time, bool, error) {
	token, err := c.Load(p.CacheKey())
	if err != nil || token == nil {
		return time.Time{}, false, err
	}

	expiry, err := token.Expiry()
	if err != nil {
		return time.Time{}, false, err
	}

	return expiry, true, nil
}

// AccessToken returns a cached access token for key that has not expired yet
func (c *TokenCache) AccessToken(key string) (string, bool, error) {
	token, err := c.Load(key)
	if err != nil || token == nil {
		return "", false, err
	}

	expiry, err := token.Expiry()
	if err != nil {
		return "", false, err
	}

	if token.AccessToken == "" || !c.now().Before(expiry) {
		return "", false, nil
	}

	return token.AccessToken, true, nil
}
