package recent

import (
	"slices"
	"time"

	"awsnav/logging"
	"awsnav/profile"
)

// DefaultMaxEntries is used when no positive cap is configured
const DefaultMaxEntries = 100

// Entry records when a profile was last used
type Entry struct {
	Name     string
	LastUsed time.Time
}

// Store persists recency entries
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Tracker keeps profile names ordered most-recently-used first, bounded to a cap
type Tracker struct {
	store   Store
	max     int
	entries []Entry
	now     func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source used by RecordUse
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Load reads history from store. A store that cannot be read is treated as empty history.
// Entries beyond max are dropped straight away.
func Load(store Store, max int, opts ...Option) *Tracker {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	t := &Tracker{
		store: store,
		max:   max,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	entries, err := store.Load()
	if err != nil {
		logging.Logger.Warn("Ignoring unreadable recent profiles", "error", err)
		entries = nil
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.LastUsed.Compare(a.LastUsed)
	})

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		t.entries = append(t.entries, e)
	}
	t.trim()

	return t
}

// RecordUse moves name to the front of the history
func (t *Tracker) RecordUse(name string) {
	t.entries = slices.DeleteFunc(t.entries, func(e Entry) bool {
		return e.Name == name
	})
	t.entries = slices.Insert(t.entries, 0, Entry{Name: name, LastUsed: t.now()})
	t.trim()
}

// Entries returns a copy of the history, most recent first
func (t *Tracker) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Position returns the rank of name in the history, 0 being the most recent
func (t *Tracker) Position(name string) (int, bool) {
	i := slices.IndexFunc(t.entries, func(e Entry) bool {
		return e.Name == name
	})
	return i, i >= 0
}

// Ranked orders candidates with recently used profiles first, in recency order.
// The rest keep their given order.
func (t *Tracker) Ranked(candidates []profile.Profile) []profile.Profile {
	var used, unused []profile.Profile
	for _, p := range candidates {
		if _, ok := t.Position(p.Name); ok {
			used = append(used, p)
		} else {
			unused = append(unused, p)
		}
	}

	slices.SortStableFunc(used, func(a, b profile.Profile) int {
		pa, _ := t.Position(a.Name)
		pb, _ := t.Position(b.Name)
		return pa - pb
	})

	return append(used, unused...)
}

// Persist writes the history to the store
func (t *Tracker) Persist() error {
	return t.store.Save(t.entries)
}

func (t *Tracker) trim() {
	if len(t.entries) > t.max {
		t.entries = t.entries[:t.max]
	}
}
