package recent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awsnav/profile"
)

type memoryStore struct {
	entries []Entry
	loadErr error
	saves   int
}

func (m *memoryStore) Load() ([]Entry, error) {
	return m.entries, m.loadErr
}

func (m *memoryStore) Save(entries []Entry) error {
	m.entries = append([]Entry(nil), entries...)
	m.saves++
	return nil
}

func tickingClock() func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func names(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestRecordUse_CapsAndDeduplicates(t *testing.T) {
	tracker := Load(&memoryStore{}, 3, WithClock(tickingClock()))

	for i := 0; i < 10; i++ {
		tracker.RecordUse(fmt.Sprintf("acme-dev-role%d", i%5))
	}

	entries := tracker.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"acme-dev-role4", "acme-dev-role3", "acme-dev-role2"}, names(entries))
}

func TestRecordUse_MovesToFront(t *testing.T) {
	tracker := Load(&memoryStore{}, 10, WithClock(tickingClock()))

	tracker.RecordUse("a-b-c")
	tracker.RecordUse("d-e-f")
	tracker.RecordUse("a-b-c")

	assert.Equal(t, []string{"a-b-c", "d-e-f"}, names(tracker.Entries()))
}

func TestLoad_CorruptStoreIsEmpty(t *testing.T) {
	tracker := Load(&memoryStore{loadErr: errors.New("boom")}, 10)
	assert.Empty(t, tracker.Entries())
}

func TestLoad_ShrunkCapDropsOverflow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryStore{entries: []Entry{
		{Name: "old-a-b", LastUsed: base},
		{Name: "new-a-b", LastUsed: base.Add(2 * time.Hour)},
		{Name: "mid-a-b", LastUsed: base.Add(time.Hour)},
		{Name: "new-a-b", LastUsed: base.Add(-time.Hour)},
	}}

	tracker := Load(store, 2)

	assert.Equal(t, []string{"new-a-b", "mid-a-b"}, names(tracker.Entries()))
}

func TestLoad_DefaultCap(t *testing.T) {
	tracker := Load(&memoryStore{}, 0, WithClock(tickingClock()))
	for i := 0; i < DefaultMaxEntries+5; i++ {
		tracker.RecordUse(fmt.Sprintf("c-a-r%d", i))
	}
	assert.Len(t, tracker.Entries(), DefaultMaxEntries)
}

func TestRanked(t *testing.T) {
	tracker := Load(&memoryStore{}, 10, WithClock(tickingClock()))
	tracker.RecordUse("globex-prod-admin")
	tracker.RecordUse("acme-prod-admin")

	candidates := []profile.Profile{
		{Name: "acme-dev-admin"},
		{Name: "acme-prod-admin"},
		{Name: "globex-dev-admin"},
		{Name: "globex-prod-admin"},
	}

	var got []string
	for _, p := range tracker.Ranked(candidates) {
		got = append(got, p.Name)
	}

	assert.Equal(t, []string{"acme-prod-admin", "globex-prod-admin", "acme-dev-admin", "globex-dev-admin"}, got)
}

func TestPersist(t *testing.T) {
	store := &memoryStore{}
	tracker := Load(store, 10, WithClock(tickingClock()))
	tracker.RecordUse("a-b-c")

	require.NoError(t, tracker.Persist())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, []string{"a-b-c"}, names(store.entries))
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recent.toml")
	store := NewFileStore(path)

	tracker := Load(store, 5, WithClock(tickingClock()))
	tracker.RecordUse("acme-dev-admin")
	tracker.RecordUse("acme-prod-admin")
	require.NoError(t, tracker.Persist())

	reloaded := Load(NewFileStore(path), 5)
	assert.Equal(t, []string{"acme-prod-admin", "acme-dev-admin"}, names(reloaded.Entries()))
	assert.True(t, reloaded.Entries()[0].LastUsed.Equal(tracker.Entries()[0].LastUsed))
}

func TestFileStore_Missing(t *testing.T) {
	entries, err := NewFileStore(filepath.Join(t.TempDir(), "recent.toml")).Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0600))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)

	tracker := Load(NewFileStore(path), 5)
	assert.Empty(t, tracker.Entries())
}

func TestFileStore_LegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.toml")
	legacy := "[profiles]\n\"acme-dev-admin\" = 1700000000\n\"acme-prod-admin\" = 1700000500\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	tracker := Load(NewFileStore(path), 5)
	assert.Equal(t, []string{"acme-prod-admin", "acme-dev-admin"}, names(tracker.Entries()))
}
