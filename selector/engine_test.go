package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awsnav/profile"
	"awsnav/recent"
)

// scriptedPicker picks by label, or returns err once the script runs out
type scriptedPicker struct {
	labels  []string
	err     error
	prompts []string
	shown   [][]Item
}

func (s *scriptedPicker) Pick(_ context.Context, prompt string, items []Item) (int, error) {
	s.prompts = append(s.prompts, prompt)
	s.shown = append(s.shown, items)

	if len(s.labels) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, ErrCancelled
	}

	label := s.labels[0]
	s.labels = s.labels[1:]
	for i, item := range items {
		if item.Label == label {
			return i, nil
		}
	}
	return 0, errors.New("label not offered: " + label)
}

func labels(items []Item) []string {
	var out []string
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

type memoryStore struct{ entries []recent.Entry }

func (m *memoryStore) Load() ([]recent.Entry, error) { return m.entries, nil }
func (m *memoryStore) Save(entries []recent.Entry) error {
	m.entries = entries
	return nil
}

func newProfile(name, accountID string) profile.Profile {
	client, account, role, err := profile.ParseName(name)
	if err != nil {
		panic(err)
	}
	return profile.Profile{Name: name, Client: client, Account: account, Role: role, SSOAccountID: accountID, SSORoleName: role}
}

func testCatalog() *profile.Catalog {
	return profile.New([]profile.Profile{
		newProfile("acme-dev-admin", "111111111111"),
		newProfile("acme-dev-readonly", "111111111111"),
		newProfile("acme-prod-admin", "222222222222"),
		newProfile("globex-prod-admin", "333333333333"),
		newProfile("initech-sandbox-dev", "444444444444"),
	}, nil)
}

func newTracker(used ...string) *recent.Tracker {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := recent.Load(&memoryStore{}, 10, recent.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	for _, name := range used {
		tracker.RecordUse(name)
	}
	return tracker
}

func TestResolve_Stepwise(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"acme", "dev", "readonly"}}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "acme-dev-readonly", p.Name)
	assert.Equal(t, []string{"Select Client", "Select Account for acme", "Select Role for acme-dev-*"}, picker.prompts)
	assert.Equal(t, []string{"acme", "globex", "initech"}, labels(picker.shown[0]))
	assert.Equal(t, []string{"dev", "prod"}, labels(picker.shown[1]))
	assert.Equal(t, []string{"admin", "readonly"}, labels(picker.shown[2]))
}

func TestResolve_FixedClientWithoutProfiles(t *testing.T) {
	picker := &scriptedPicker{}
	engine := New(testCatalog(), nil, picker)

	_, err := engine.Resolve(context.Background(), Request{Client: "acme-corp"})

	require.ErrorIs(t, err, ErrNoMatchingProfile)
	assert.Empty(t, picker.prompts)
}

func TestResolve_FixedClientWithSingleProfile(t *testing.T) {
	picker := &scriptedPicker{}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{Client: "initech"})

	require.NoError(t, err)
	assert.Equal(t, "initech-sandbox-dev", p.Name)
	assert.Empty(t, picker.prompts)
}

func TestResolve_FixedValuesSkipStates(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"admin"}}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{Client: "acme", Account: "dev"})

	require.NoError(t, err)
	assert.Equal(t, "acme-dev-admin", p.Name)
	assert.Equal(t, []string{"Select Role for acme-dev-*"}, picker.prompts)
}

func TestResolve_FixedAccountNarrowsClients(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"globex"}}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{Account: "prod", Role: "admin"})

	require.NoError(t, err)
	assert.Equal(t, "globex-prod-admin", p.Name)
	require.Len(t, picker.shown, 1)
	assert.Equal(t, []string{"acme", "globex"}, labels(picker.shown[0]))
}

func TestResolve_FixedCombinationWithoutProfiles(t *testing.T) {
	engine := New(testCatalog(), nil, &scriptedPicker{})

	_, err := engine.Resolve(context.Background(), Request{Client: "globex", Account: "dev"})

	assert.ErrorIs(t, err, ErrNoMatchingProfile)
}

func TestResolve_CancelAtAccountStep(t *testing.T) {
	tracker := newTracker("acme-prod-admin")
	before := tracker.Entries()
	picker := &scriptedPicker{labels: []string{"acme"}}
	engine := New(testCatalog(), tracker, picker)

	_, err := engine.Resolve(context.Background(), Request{RecentFirst: true})

	require.ErrorIs(t, err, ErrUserCancelled)
	assert.Len(t, picker.prompts, 2)
	assert.Equal(t, before, tracker.Entries())
}

func TestResolve_PickerErrorSurfaced(t *testing.T) {
	ioErr := errors.New("terminal gone")
	engine := New(testCatalog(), nil, &scriptedPicker{err: ioErr})

	_, err := engine.Resolve(context.Background(), Request{})

	assert.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, ErrUserCancelled)
}

func TestResolve_Unified(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"globex | prod | admin | globex-prod-admin"}}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{Mode: Unified})

	require.NoError(t, err)
	assert.Equal(t, "globex-prod-admin", p.Name)
	require.Len(t, picker.shown, 1)
	assert.Len(t, picker.shown[0], 5)
	assert.Equal(t, []string{"Select Profile"}, picker.prompts)
}

func TestResolve_UnifiedFiltersNarrowList(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"acme | prod | admin | acme-prod-admin"}}
	engine := New(testCatalog(), nil, picker)

	p, err := engine.Resolve(context.Background(), Request{Mode: Unified, Role: "admin"})

	require.NoError(t, err)
	assert.Equal(t, "acme-prod-admin", p.Name)
	assert.Equal(t, []string{
		"acme | dev | admin | acme-dev-admin",
		"acme | prod | admin | acme-prod-admin",
		"globex | prod | admin | globex-prod-admin",
	}, labels(picker.shown[0]))
}

func TestResolve_UnifiedRecentFirst(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"initech | sandbox | dev | initech-sandbox-dev"}}
	engine := New(testCatalog(), newTracker("acme-prod-admin", "initech-sandbox-dev"), picker)

	_, err := engine.Resolve(context.Background(), Request{Mode: Unified, RecentFirst: true})

	require.NoError(t, err)
	shown := labels(picker.shown[0])
	assert.Equal(t, "initech | sandbox | dev | initech-sandbox-dev", shown[0])
	assert.Equal(t, "acme | prod | admin | acme-prod-admin", shown[1])
	assert.Equal(t, "acme | dev | admin | acme-dev-admin", shown[2])
}

func TestResolve_StepwiseRecentFirst(t *testing.T) {
	picker := &scriptedPicker{labels: []string{"globex"}}
	engine := New(testCatalog(), newTracker("acme-dev-admin", "globex-prod-admin"), picker)

	_, err := engine.Resolve(context.Background(), Request{RecentFirst: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"globex", "acme", "initech"}, labels(picker.shown[0]))
}

func TestResolve_DuplicateResolution(t *testing.T) {
	catalog := profile.New([]profile.Profile{
		newProfile("acme-dev-admin", "111111111111"),
		newProfile("acme-dev-admin", "999999999999"),
	}, nil)
	engine := New(catalog, nil, &scriptedPicker{})

	_, err := engine.Resolve(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrDuplicateResolution)
}

func TestResolve_EmptyCatalog(t *testing.T) {
	engine := New(profile.New(nil, nil), nil, &scriptedPicker{})

	_, err := engine.Resolve(context.Background(), Request{Mode: Unified})

	assert.ErrorIs(t, err, ErrNoMatchingProfile)
}

func TestList(t *testing.T) {
	picker := &scriptedPicker{}
	engine := New(testCatalog(), newTracker("globex-prod-admin"), picker)

	var got []string
	for _, p := range engine.List(Request{Account: "prod", RecentFirst: true}) {
		got = append(got, p.Name)
	}

	assert.Equal(t, []string{"globex-prod-admin", "acme-prod-admin"}, got)
	assert.Empty(t, picker.prompts)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		sel       Selection
		choice    choice
		mode      Mode
		wantState State
		wantSel   Selection
	}{
		{"client chosen", StateChooseClient, Selection{}, choice{value: "acme"}, Stepwise, StateChooseAccount, Selection{Client: "acme"}},
		{"client chosen with role fixed", StateChooseClient, Selection{Role: "admin"}, choice{value: "acme"}, Stepwise, StateChooseAccount, Selection{Client: "acme", Role: "admin"}},
		{"account chosen with role fixed", StateChooseAccount, Selection{Client: "acme", Role: "admin"}, choice{value: "dev"}, Stepwise, StateResolved, Selection{Client: "acme", Account: "dev", Role: "admin"}},
		{"role chosen", StateChooseRole, Selection{Client: "acme", Account: "dev"}, choice{value: "admin"}, Stepwise, StateResolved, Selection{Client: "acme", Account: "dev", Role: "admin"}},
		{"profile chosen", StateChooseProfile, Selection{Role: "admin"}, choice{profile: newProfile("acme-dev-admin", "1")}, Unified, StateResolved, Selection{Client: "acme", Account: "dev", Role: "admin"}},
		{"resolved is terminal", StateResolved, Selection{Client: "a", Account: "b", Role: "c"}, choice{value: "x"}, Stepwise, StateResolved, Selection{Client: "a", Account: "b", Role: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, sel := transition(tt.state, tt.sel, tt.choice, tt.mode)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantSel, sel)
		})
	}
}

func TestInitial(t *testing.T) {
	assert.Equal(t, StateChooseClient, initial(Selection{}, Stepwise))
	assert.Equal(t, StateChooseAccount, initial(Selection{Client: "acme"}, Stepwise))
	assert.Equal(t, StateChooseRole, initial(Selection{Client: "acme", Account: "dev"}, Stepwise))
	assert.Equal(t, StateResolved, initial(Selection{Client: "acme", Account: "dev", Role: "admin"}, Stepwise))
	assert.Equal(t, StateChooseProfile, initial(Selection{Client: "acme"}, Unified))
	assert.Equal(t, StateResolved, initial(Selection{Client: "acme", Account: "dev", Role: "admin"}, Unified))
}
