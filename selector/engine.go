package selector

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"awsnav/logging"
	"awsnav/profile"
	"awsnav/recent"
)

var (
	ErrNoMatchingProfile   = errors.New("no matching profile")
	ErrDuplicateResolution = errors.New("selection matches more than one profile")
	ErrUserCancelled       = errors.New("selection cancelled")

	// ErrCancelled is returned by Picker implementations when the user backs out
	ErrCancelled = errors.New("picker cancelled")
)

// Mode selects between the three-step walk and the single flat list
type Mode int

const (
	Stepwise Mode = iota
	Unified
)

// State is a step of the selection state machine
type State int

const (
	StateChooseClient State = iota
	StateChooseAccount
	StateChooseRole
	StateChooseProfile
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateChooseClient:
		return "choose-client"
	case StateChooseAccount:
		return "choose-account"
	case StateChooseRole:
		return "choose-role"
	case StateChooseProfile:
		return "choose-profile"
	default:
		return "resolved"
	}
}

// Item is one labelled picker row
type Item struct {
	Label       string
	Description string
}

// Picker presents items and returns the index of the chosen one, or ErrCancelled
type Picker interface {
	Pick(ctx context.Context, prompt string, items []Item) (int, error)
}

// Request carries the pre-fixed values and flags for one resolution
type Request struct {
	Client      string
	Account     string
	Role        string
	Mode        Mode
	RecentFirst bool
}

// Selection holds what has been fixed so far
type Selection struct {
	Client  string
	Account string
	Role    string
}

func (s Selection) filter() profile.Filter {
	return profile.Filter{Client: s.Client, Account: s.Account, Role: s.Role}
}

func (s Selection) complete() bool {
	return s.Client != "" && s.Account != "" && s.Role != ""
}

// choice is the input event consumed by a transition
type choice struct {
	value   string
	profile profile.Profile
	item    Item
}

// Engine narrows a catalog down to one profile through picker interactions
type Engine struct {
	catalog *profile.Catalog
	recent  *recent.Tracker
	picker  Picker
}

// New creates an engine. tracker may be nil when no history is available.
func New(catalog *profile.Catalog, tracker *recent.Tracker, picker Picker) *Engine {
	return &Engine{
		catalog: catalog,
		recent:  tracker,
		picker:  picker,
	}
}

// initial returns the first state for a selection
func initial(sel Selection, mode Mode) State {
	if mode == Unified {
		if sel.complete() {
			return StateResolved
		}
		return StateChooseProfile
	}

	switch {
	case sel.Client == "":
		return StateChooseClient
	case sel.Account == "":
		return StateChooseAccount
	case sel.Role == "":
		return StateChooseRole
	default:
		return StateResolved
	}
}

// transition applies the choice made in state and returns the next state
func transition(state State, sel Selection, c choice, mode Mode) (State, Selection) {
	switch state {
	case StateChooseClient:
		sel.Client = c.value
	case StateChooseAccount:
		sel.Account = c.value
	case StateChooseRole:
		sel.Role = c.value
	case StateChooseProfile:
		sel = Selection{Client: c.profile.Client, Account: c.profile.Account, Role: c.profile.Role}
	case StateResolved:
		return StateResolved, sel
	}
	return initial(sel, mode), sel
}

// Resolve runs the state machine until exactly one profile is left
func (e *Engine) Resolve(ctx context.Context, req Request) (profile.Profile, error) {
	sel := Selection{Client: req.Client, Account: req.Account, Role: req.Role}

	if f := sel.filter(); !f.IsEmpty() && len(e.catalog.Lookup(f)) == 0 {
		return profile.Profile{}, fmt.Errorf("%w for %s", ErrNoMatchingProfile, f)
	}

	state := initial(sel, req.Mode)
	for state != StateResolved {
		choices := e.choices(state, sel, req.RecentFirst)
		if len(choices) == 0 {
			return profile.Profile{}, fmt.Errorf("%w for %s", ErrNoMatchingProfile, sel.filter())
		}

		idx := 0
		if len(choices) > 1 {
			items := make([]Item, len(choices))
			for i, c := range choices {
				items[i] = c.item
			}

			var err error
			idx, err = e.picker.Pick(ctx, prompt(state, sel), items)
			if errors.Is(err, ErrCancelled) {
				return profile.Profile{}, ErrUserCancelled
			}
			if err != nil {
				return profile.Profile{}, err
			}
			if idx < 0 || idx >= len(choices) {
				return profile.Profile{}, fmt.Errorf("picker returned index %d for %d items", idx, len(choices))
			}
		}

		logging.Logger.Debug("Selection step", "state", state.String(), "choice", choices[idx].item.Label, "candidates", len(choices))
		state, sel = transition(state, sel, choices[idx], req.Mode)
	}

	matches := e.catalog.Lookup(sel.filter())
	switch len(matches) {
	case 0:
		return profile.Profile{}, fmt.Errorf("%w for %s", ErrNoMatchingProfile, sel.filter())
	case 1:
		return matches[0], nil
	default:
		return profile.Profile{}, fmt.Errorf("%w: %d profiles for %s", ErrDuplicateResolution, len(matches), sel.filter())
	}
}

// List returns the candidates left after the fixed filters, without any interaction
func (e *Engine) List(req Request) []profile.Profile {
	sel := Selection{Client: req.Client, Account: req.Account, Role: req.Role}
	return e.rank(e.catalog.Lookup(sel.filter()), req.RecentFirst)
}

func (e *Engine) rank(profiles []profile.Profile, recentFirst bool) []profile.Profile {
	if !recentFirst || e.recent == nil {
		return profiles
	}
	return e.recent.Ranked(profiles)
}

func (e *Engine) choices(state State, sel Selection, recentFirst bool) []choice {
	profiles := e.catalog.Lookup(sel.filter())

	switch state {
	case StateChooseProfile:
		ranked := e.rank(profiles, recentFirst)
		choices := make([]choice, len(ranked))
		for i, p := range ranked {
			choices[i] = choice{
				value:   p.Name,
				profile: p,
				item:    Item{Label: p.Label(), Description: fmt.Sprintf("Account ID: %s, Role: %s", p.SSOAccountID, p.SSORoleName)},
			}
		}
		return choices

	case StateChooseClient:
		return e.levelChoices(profiles, recentFirst, func(p profile.Profile) string { return p.Client }, func(client string) string {
			return plural(len(e.catalog.Accounts(client)), "account")
		})

	case StateChooseAccount:
		return e.levelChoices(profiles, recentFirst, func(p profile.Profile) string { return p.Account }, func(account string) string {
			return plural(len(e.catalog.Roles(sel.Client, account)), "role")
		})

	case StateChooseRole:
		byRole := make(map[string]profile.Profile, len(profiles))
		for _, p := range profiles {
			byRole[p.Role] = p
		}
		return e.levelChoices(profiles, recentFirst, func(p profile.Profile) string { return p.Role }, func(role string) string {
			p := byRole[role]
			return fmt.Sprintf("%s (%s)", p.Name, p.SSOAccountID)
		})
	}

	return nil
}

// levelChoices lists the distinct values of key across profiles. With recentFirst, values
// are ordered by their most recently used profile and unused values follow alphabetically.
func (e *Engine) levelChoices(profiles []profile.Profile, recentFirst bool, key func(profile.Profile) string, describe func(string) string) []choice {
	var sorted []string
	for _, p := range profiles {
		if v := key(p); !slices.Contains(sorted, v) {
			sorted = append(sorted, v)
		}
	}
	slices.Sort(sorted)

	values := sorted
	if recentFirst && e.recent != nil {
		values = nil
		for _, p := range e.recent.Ranked(profiles) {
			if _, used := e.recent.Position(p.Name); !used {
				break
			}
			if v := key(p); !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
		for _, v := range sorted {
			if !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
	}

	choices := make([]choice, len(values))
	for i, v := range values {
		choices[i] = choice{value: v, item: Item{Label: v, Description: describe(v)}}
	}
	return choices
}

func prompt(state State, sel Selection) string {
	switch state {
	case StateChooseClient:
		return "Select Client"
	case StateChooseAccount:
		return fmt.Sprintf("Select Account for %s", sel.Client)
	case StateChooseRole:
		return fmt.Sprintf("Select Role for %s", profile.JoinName(sel.Client, sel.Account, "*"))
	default:
		return "Select Profile"
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
