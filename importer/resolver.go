package importer

import (
	"strings"
	"unicode"

	"awsnav/logging"
	"awsnav/profile"
)

// DefaultOutput is written as the output format of imported profiles
const DefaultOutput = "json"

// Grant is an account/role pair an SSO session can assume
type Grant struct {
	AccountID   string
	AccountName string
	RoleName    string
}

// SessionRef identifies the SSO session the grants were discovered under
type SessionRef struct {
	Name     string
	StartURL string
	Region   string
}

// Addition describes a profile section to append to the AWS config
type Addition struct {
	Name       string
	SSOSession string
	AccountID  string
	RoleName   string
	Region     string
	Output     string
}

// Present is a grant some existing profile already binds
type Present struct {
	Grant   Grant
	Profile profile.Profile
}

// Conflict is a grant whose derived name is already taken by something else
type Conflict struct {
	Grant Grant
	Name  string

	// Existing is the clashing profile; nil when the name belongs to a skipped
	// section or an earlier addition in the same plan
	Existing *profile.Profile
}

// Plan partitions discovered grants
type Plan struct {
	New       []Addition
	Present   []Present
	Conflicts []Conflict
}

// Namer derives a profile name for a grant
type Namer func(session string, g Grant) string

// DefaultNamer builds session-account-role, where account is the account name
// (or id when unnamed) and every segment is sanitized so the result parses as a profile name
func DefaultNamer(session string, g Grant) string {
	account := Sanitize(g.AccountName)
	if account == "" {
		account = Sanitize(g.AccountID)
	}
	role := Sanitize(g.RoleName)
	if role == "" {
		role = "role"
	}
	client := Sanitize(session)
	if client == "" {
		client = "sso"
	}
	return profile.JoinName(client, account, role)
}

// Sanitize removes spaces and folds every other run of non-alphanumeric characters into
// a single underscore, trimming underscores at both ends
func Sanitize(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		switch {
		case r == ' ':
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}

// Resolve reconciles grants against the catalog. Grants are examined in order, so an
// earlier grant wins a name both would derive.
func Resolve(ref SessionRef, grants []Grant, catalog *profile.Catalog, namer Namer) Plan {
	if namer == nil {
		namer = DefaultNamer
	}

	var plan Plan
	pending := make(map[string]struct{})

	for _, g := range grants {
		if existing, ok := findBinding(ref, g, catalog); ok {
			logging.Logger.Debug("Grant already configured", "account_id", g.AccountID, "role", g.RoleName, "profile", existing.Name)
			plan.Present = append(plan.Present, Present{Grant: g, Profile: existing})
			continue
		}

		name := namer(ref.Name, g)

		if existing, ok := catalog.Get(name); ok {
			plan.Conflicts = append(plan.Conflicts, Conflict{Grant: g, Name: name, Existing: &existing})
			continue
		}
		if _, taken := pending[name]; taken || catalog.Reserved(name) {
			plan.Conflicts = append(plan.Conflicts, Conflict{Grant: g, Name: name})
			continue
		}

		pending[name] = struct{}{}
		plan.New = append(plan.New, Addition{
			Name:       name,
			SSOSession: ref.Name,
			AccountID:  g.AccountID,
			RoleName:   g.RoleName,
			Region:     ref.Region,
			Output:     DefaultOutput,
		})
	}

	return plan
}

func findBinding(ref SessionRef, g Grant, catalog *profile.Catalog) (profile.Profile, bool) {
	for _, p := range catalog.Profiles() {
		if p.SSOAccountID != g.AccountID || p.SSORoleName != g.RoleName {
			continue
		}
		if p.SSOSession == ref.Name {
			return p, true
		}
		if p.SSOSession == "" && ref.StartURL != "" && p.StartURL == ref.StartURL {
			return p, true
		}
	}
	return profile.Profile{}, false
}
