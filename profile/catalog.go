package profile

import (
	"fmt"
	"slices"
	"strings"

	"awsnav/logging"
)

const (
	profilePrefix = "profile "
	sessionPrefix = "sso-session "
)

// Config keys read from profile and sso-session sections
const (
	KeySSOSession            = "sso_session"
	KeySSOStartURL           = "sso_start_url"
	KeySSORegion             = "sso_region"
	KeySSOAccountID          = "sso_account_id"
	KeySSORoleName           = "sso_role_name"
	KeySSORegistrationScopes = "sso_registration_scopes"
	KeyRegion                = "region"
	KeyOutput                = "output"
)

// RawSection is one section of the AWS config file as read from disk
type RawSection struct {
	Header string
	Keys   map[string]string
}

// Skipped reports a profile section that was left out of the catalog
type Skipped struct {
	Name string
	Err  error
}

func (s Skipped) Error() string {
	return fmt.Sprintf("profile %q skipped: %v", s.Name, s.Err)
}

// Filter narrows a lookup; empty fields match everything
type Filter struct {
	Client  string
	Account string
	Role    string
}

// IsEmpty reports whether no field is set
func (f Filter) IsEmpty() bool {
	return f.Client == "" && f.Account == "" && f.Role == ""
}

func (f Filter) String() string {
	var parts []string
	if f.Client != "" {
		parts = append(parts, "client="+f.Client)
	}
	if f.Account != "" {
		parts = append(parts, "account="+f.Account)
	}
	if f.Role != "" {
		parts = append(parts, "role="+f.Role)
	}
	return strings.Join(parts, " ")
}

// Matches reports whether p satisfies every set field of f
func (f Filter) Matches(p Profile) bool {
	return (f.Client == "" || f.Client == p.Client) &&
		(f.Account == "" || f.Account == p.Account) &&
		(f.Role == "" || f.Role == p.Role)
}

// Catalog is an immutable, name-ordered set of profiles with client/account/role indices
type Catalog struct {
	profiles []Profile
	byName   map[string]int
	clients  []string
	accounts map[string][]string
	roles    map[accountKey][]string
	sessions map[string]SSOSession
	reserved map[string]struct{}
}

type accountKey struct {
	client  string
	account string
}

// Load builds a catalog from raw config sections.
// Sections that cannot become profiles are reported and skipped.
func Load(sections []RawSection) (*Catalog, []Skipped) {
	sessions := make(map[string]SSOSession)
	for _, section := range sections {
		header := normalizeName(section.Header)
		name, ok := strings.CutPrefix(header, sessionPrefix)
		if !ok {
			continue
		}
		if _, exists := sessions[name]; exists {
			continue
		}
		sessions[name] = SSOSession{
			Name:               name,
			StartURL:           section.Keys[KeySSOStartURL],
			Region:             section.Keys[KeySSORegion],
			RegistrationScopes: section.Keys[KeySSORegistrationScopes],
		}
	}

	var (
		profiles []Profile
		skipped  []Skipped
		seen     = make(map[string]struct{})
	)

	for _, section := range sections {
		header := normalizeName(section.Header)
		name, ok := strings.CutPrefix(header, profilePrefix)
		if !ok {
			continue
		}

		_, duplicate := seen[name]
		seen[name] = struct{}{}

		p, err := parseProfile(name, section.Keys, sessions)
		if err == nil && duplicate {
			err = fmt.Errorf("%w: %q is defined more than once", ErrDuplicateName, name)
		}
		if err != nil {
			logging.Logger.Debug("Skipping profile", "profile", name, "error", err)
			skipped = append(skipped, Skipped{Name: name, Err: err})
			continue
		}

		profiles = append(profiles, p)
	}

	sessionList := make([]SSOSession, 0, len(sessions))
	for _, s := range sessions {
		sessionList = append(sessionList, s)
	}

	catalog := New(profiles, sessionList)
	for name := range seen {
		catalog.reserved[name] = struct{}{}
	}

	return catalog, skipped
}

func parseProfile(name string, keys map[string]string, sessions map[string]SSOSession) (Profile, error) {
	client, account, role, err := ParseName(name)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Name:          name,
		Client:        client,
		Account:       account,
		Role:          role,
		SSOSession:    keys[KeySSOSession],
		SSOStartURL:   keys[KeySSOStartURL],
		SSORegion:     keys[KeySSORegion],
		SSOAccountID:  keys[KeySSOAccountID],
		SSORoleName:   keys[KeySSORoleName],
		ProfileRegion: keys[KeyRegion],
	}

	hasInline := p.SSOStartURL != "" || p.SSORegion != ""
	switch {
	case p.SSOSession != "" && hasInline:
		return Profile{}, fmt.Errorf("%w: both sso_session and sso_start_url/sso_region are set", ErrMissingSessionBinding)
	case p.SSOSession != "":
		session, ok := sessions[p.SSOSession]
		if !ok {
			return Profile{}, fmt.Errorf("%w: sso-session %q is not defined", ErrMissingSessionBinding, p.SSOSession)
		}
		p.StartURL = session.StartURL
		p.Region = session.Region
	case p.SSOStartURL != "" && p.SSORegion != "":
		p.StartURL = p.SSOStartURL
		p.Region = p.SSORegion
	case hasInline:
		return Profile{}, fmt.Errorf("%w: inline binding needs both sso_start_url and sso_region", ErrMissingSessionBinding)
	default:
		return Profile{}, fmt.Errorf("%w: no sso_session or sso_start_url", ErrMissingSessionBinding)
	}

	if p.SSOAccountID == "" || p.SSORoleName == "" {
		return Profile{}, fmt.Errorf("%w: sso_account_id and sso_role_name are required", ErrMissingSessionBinding)
	}

	return p, nil
}

// New indexes already validated profiles. Profiles are kept as given apart from ordering,
// so two entries sharing a client/account/role triple stay visible to callers.
func New(profiles []Profile, sessions []SSOSession) *Catalog {
	c := &Catalog{
		profiles: slices.Clone(profiles),
		byName:   make(map[string]int, len(profiles)),
		accounts: make(map[string][]string),
		roles:    make(map[accountKey][]string),
		sessions: make(map[string]SSOSession, len(sessions)),
		reserved: make(map[string]struct{}, len(profiles)),
	}

	slices.SortStableFunc(c.profiles, func(a, b Profile) int {
		return strings.Compare(a.Name, b.Name)
	})

	for i, p := range c.profiles {
		if _, ok := c.byName[p.Name]; !ok {
			c.byName[p.Name] = i
		}
		c.reserved[p.Name] = struct{}{}

		if !slices.Contains(c.clients, p.Client) {
			c.clients = append(c.clients, p.Client)
		}
		if !slices.Contains(c.accounts[p.Client], p.Account) {
			c.accounts[p.Client] = append(c.accounts[p.Client], p.Account)
		}
		key := accountKey{p.Client, p.Account}
		if !slices.Contains(c.roles[key], p.Role) {
			c.roles[key] = append(c.roles[key], p.Role)
		}
	}

	slices.Sort(c.clients)
	for client := range c.accounts {
		slices.Sort(c.accounts[client])
	}
	for key := range c.roles {
		slices.Sort(c.roles[key])
	}

	for _, s := range sessions {
		c.sessions[s.Name] = s
	}

	return c
}

// Len returns the number of profiles
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Profiles returns every profile ordered by name
func (c *Catalog) Profiles() []Profile {
	return slices.Clone(c.profiles)
}

// Get returns the profile with the given name
func (c *Catalog) Get(name string) (Profile, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Profile{}, false
	}
	return c.profiles[i], true
}

// Lookup returns the profiles matching f ordered by name
func (c *Catalog) Lookup(f Filter) []Profile {
	var matched []Profile
	for _, p := range c.profiles {
		if f.Matches(p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Clients returns all clients in lexicographic order
func (c *Catalog) Clients() []string {
	return slices.Clone(c.clients)
}

// Accounts returns the accounts of a client in lexicographic order
func (c *Catalog) Accounts(client string) []string {
	return slices.Clone(c.accounts[client])
}

// Roles returns the roles of a client's account in lexicographic order
func (c *Catalog) Roles(client, account string) []string {
	return slices.Clone(c.roles[accountKey{client, account}])
}

// Session returns a named sso-session block
func (c *Catalog) Session(name string) (SSOSession, bool) {
	s, ok := c.sessions[name]
	return s, ok
}

// Reserved reports whether a profile section with this name exists in the source,
// including sections that were skipped
func (c *Catalog) Reserved(name string) bool {
	_, ok := c.reserved[name]
	return ok
}
