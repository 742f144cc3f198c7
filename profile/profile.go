package profile

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the client, account and role segments of a profile name
const Delimiter = "-"

var (
	ErrMalformedName         = errors.New("malformed profile name")
	ErrDuplicateName         = errors.New("duplicate profile name")
	ErrMissingSessionBinding = errors.New("missing sso session binding")
)

// Profile represents an AWS SSO profile named client-account-role
type Profile struct {
	Name    string
	Client  string
	Account string
	Role    string

	// Exactly one of SSOSession or SSOStartURL+SSORegion is set in the config
	SSOSession  string
	SSOStartURL string
	SSORegion   string

	SSOAccountID string
	SSORoleName  string

	// StartURL and Region are resolved from the sso-session block for named bindings
	StartURL string
	Region   string

	// ProfileRegion is the profile's own region key, empty if unset
	ProfileRegion string
}

// SSOSession represents an [sso-session name] block
type SSOSession struct {
	Name               string
	StartURL           string
	Region             string
	RegistrationScopes string
}

// CacheKey returns the key the AWS CLI uses for this profile's SSO token cache entry
func (p Profile) CacheKey() string {
	if p.SSOSession != "" {
		return p.SSOSession
	}
	return p.StartURL
}

// Label renders the profile for flat lists
func (p Profile) Label() string {
	return fmt.Sprintf("%s | %s | %s | %s", p.Client, p.Account, p.Role, p.Name)
}

// ParseName splits a profile name into client, account and role.
// The name must contain exactly two delimiters and three non-empty segments.
func ParseName(name string) (client, account, role string, err error) {
	if strings.Count(name, Delimiter) != 2 {
		return "", "", "", fmt.Errorf("%w: %q must have the form client-account-role", ErrMalformedName, name)
	}

	first := strings.Index(name, Delimiter)
	last := strings.LastIndex(name, Delimiter)

	client = name[:first]
	account = name[first+len(Delimiter) : last]
	role = name[last+len(Delimiter):]

	if client == "" || account == "" || role == "" {
		return "", "", "", fmt.Errorf("%w: %q has an empty segment", ErrMalformedName, name)
	}

	return client, account, role, nil
}

// JoinName builds a profile name from its segments
func JoinName(client, account, role string) string {
	return strings.Join([]string{client, account, role}, Delimiter)
}

// normalizeName collapses whitespace in a raw section name
func normalizeName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
