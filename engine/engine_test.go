package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type fakeHost struct {
	entities    []types.Entity
	roster      []types.RosterEntry
	rosterReady bool
	rosterPanic bool
	rosterReads int
	fragments   map[string][]string
	competitive bool
	loggedIn    bool
}

func (h *fakeHost) VisibleEntities() []types.Entity {
	return h.entities
}

func (h *fakeHost) Roster() ([]types.RosterEntry, bool, error) {
	h.rosterReads++
	if h.rosterPanic {
		panic("roster agent moved")
	}
	return h.roster, h.rosterReady, nil
}

func (h *fakeHost) TextFragments(surface string) ([]string, bool) {
	texts, ok := h.fragments[surface]
	return texts, ok
}

func (h *fakeHost) InCompetitiveZone() bool { return h.competitive }
func (h *fakeHost) LoggedIn() bool          { return h.loggedIn }

type fakeStore struct {
	mu       sync.Mutex
	settings *types.Settings
	loadErr  error
	saveErr  error
	saves    int
}

func (s *fakeStore) Load(_ context.Context) (*types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.settings == nil {
		return nil, types.ErrSettingsNotFound
	}
	return s.settings, nil
}

func (s *fakeStore) Save(_ context.Context, settings *types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.settings = settings
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testLocations = []types.Location{
	{ID: 101, Name: "Gilgamesh"},
	{ID: 102, Name: "Cactuar"},
}

func newTestEngine(t *testing.T, config *types.FriendsConfig, host *fakeHost) (*Engine, *fakeStore, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store := &fakeStore{}

	e := New(config, types.Policy{}, Dependencies{
		Host:      host,
		Storage:   store,
		Locations: normalize.NewLocationTable(testLocations),
		Clock:     clock.now,
	})

	return e, store, clock
}

func friendEntity(id uint64, name string, location uint16) types.Entity {
	return types.Entity{ID: id, Name: name, HomeLocationID: location, Player: true, Friend: true}
}

func TestTickObservesOnlyOutsideCompetitive(t *testing.T) {
	host := &fakeHost{
		loggedIn: true,
		entities: []types.Entity{friendEntity(1, "Rhea Starlight", 101)},
	}
	e, store, clock := newTestEngine(t, nil, host)

	e.Tick()
	require.Len(t, e.CacheEntries(), 1)
	assert.Equal(t, 1, store.saves)

	host.competitive = true
	host.entities = append(host.entities, friendEntity(2, "Mira Sol", 102))
	clock.advance(10 * time.Second)

	e.Tick()
	assert.Len(t, e.CacheEntries(), 1)
}

func TestTickSkipsObservationWhenLoggedOut(t *testing.T) {
	host := &fakeHost{entities: []types.Entity{friendEntity(1, "Rhea Starlight", 101)}}
	e, _, _ := newTestEngine(t, nil, host)

	e.Tick()
	assert.Empty(t, e.CacheEntries())
	assert.Zero(t, host.rosterReads)
}

func TestTickRateLimitsObservation(t *testing.T) {
	host := &fakeHost{
		loggedIn: true,
		entities: []types.Entity{friendEntity(1, "Rhea Starlight", 101)},
	}
	e, _, clock := newTestEngine(t, nil, host)

	e.Tick()
	require.Len(t, e.CacheEntries(), 1)

	host.entities = append(host.entities, friendEntity(2, "Mira Sol", 102))

	clock.advance(2 * time.Second)
	e.Tick()
	assert.Len(t, e.CacheEntries(), 1)

	clock.advance(3 * time.Second)
	e.Tick()
	assert.Len(t, e.CacheEntries(), 2)
}

func TestTickPollsRosterOnInterval(t *testing.T) {
	host := &fakeHost{
		loggedIn:    true,
		rosterReady: true,
		roster:      []types.RosterEntry{{Name: "Rhea Starlight", HomeLocationID: 101, StableID: 777}},
	}
	e, _, clock := newTestEngine(t, &types.FriendsConfig{PollInterval: 30 * time.Second}, host)

	e.Tick()
	assert.Equal(t, 1, host.rosterReads)

	clock.advance(29 * time.Second)
	e.Tick()
	assert.Equal(t, 1, host.rosterReads)

	clock.advance(time.Second)
	e.Tick()
	assert.Equal(t, 2, host.rosterReads)

	entry := e.CacheEntries()[0]
	assert.Equal(t, uint64(777), entry.StableID)
	assert.Equal(t, uint16(101), entry.LocationID)
}

func TestScheduledSeedsAreCappedPerTick(t *testing.T) {
	host := &fakeHost{
		competitive: true,
		rosterReady: true,
		roster:      []types.RosterEntry{{Name: "Rhea Starlight", CurrentLocationID: 101, StableID: 777}},
	}
	config := &types.FriendsConfig{
		SeedDelays: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second},
	}
	e, _, clock := newTestEngine(t, config, host)

	require.True(t, e.NotifySurfaceOpened())
	assert.False(t, e.NotifySurfaceOpened(), "burst inside debounce window")
	assert.Equal(t, 4, e.Status().PendingSeeds)

	clock.advance(5 * time.Second)
	e.Tick()
	assert.Equal(t, 3, host.rosterReads)
	assert.Equal(t, 1, e.Status().PendingSeeds)

	e.Tick()
	assert.Equal(t, 4, host.rosterReads)
	assert.Zero(t, e.Status().PendingSeeds)
	assert.Len(t, e.CacheEntries(), 1)
}

func TestForceSeedFallsBackToScrape(t *testing.T) {
	host := &fakeHost{
		fragments: map[string][]string{
			DefaultSurface: {"Rhea Starlight", "Gilgamesh", "Online"},
		},
	}
	e, store, _ := newTestEngine(t, nil, host)

	added, total := e.ForceSeedNow()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, store.saves)

	entry := e.CacheEntries()[0]
	assert.Equal(t, "Rhea Starlight", entry.Name)
	assert.Equal(t, uint16(101), entry.LocationID)

	at, n := e.LastSeed()
	assert.False(t, at.IsZero())
	assert.Equal(t, 1, n)
}

func TestSeedPanicIsRecovered(t *testing.T) {
	host := &fakeHost{
		rosterPanic: true,
		fragments: map[string][]string{
			DefaultSurface: {"Mira Sol", "Cactuar"},
		},
	}
	e, _, _ := newTestEngine(t, nil, host)

	var added int
	require.NotPanics(t, func() { added, _ = e.ForceSeedNow() })
	assert.Equal(t, 1, added)
}

func TestSourceUnavailableIsNoop(t *testing.T) {
	host := &fakeHost{}
	e, store, _ := newTestEngine(t, nil, host)

	added, total := e.ForceSeedNow()
	assert.Zero(t, added)
	assert.Zero(t, total)
	assert.Zero(t, store.saves)
}

func TestTickTrimsExpiredEntries(t *testing.T) {
	host := &fakeHost{}
	e, _, clock := newTestEngine(t, &types.FriendsConfig{TTLDays: 30}, host)

	e.Apply(&types.Settings{
		TTLDays:            30,
		ShowFirstRunNotice: true,
		CacheEntries: []types.CacheEntry{
			{Name: "Old Friend", LocationID: 101, LastSeen: clock.now().Add(-31 * 24 * time.Hour).Unix()},
			{Name: "New Friend", LocationID: 101, LastSeen: clock.now().Add(-29 * 24 * time.Hour).Unix()},
		},
	})

	e.Tick()

	entries := e.CacheEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "New Friend", entries[0].Name)
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	host := &fakeHost{}
	e, store, _ := newTestEngine(t, nil, host)
	store.saveErr = errors.New("disk full")

	assert.True(t, e.AddOrTouch("Rhea Starlight", 101, 0))
	assert.Equal(t, 1, store.saves)

	err := e.Save(context.Background())
	assert.Error(t, err)
}

func TestRestoreAppliesPersistedSettings(t *testing.T) {
	host := &fakeHost{}
	e, store, _ := newTestEngine(t, nil, host)

	store.settings = &types.Settings{
		Version: types.SettingsVersion,
		CacheEntries: []types.CacheEntry{
			{StableID: 777, Name: "Rhea Starlight", LocationID: 101, LastSeen: 1_699_999_000},
			{Name: "", LocationID: 101, LastSeen: 1_699_999_000},
		},
		ManualEntries: []types.ManualEntry{
			{Name: "Mira Sol", LocationID: 102},
			{Name: "Gone World", LocationID: 999},
		},
		AllowListIDs:       []uint64{42},
		Policy:             &types.Policy{ShowFriendsReal: true, UseCacheInCompetitive: true},
		TTLDays:            30,
		ShowFirstRunNotice: false,
	}

	require.NoError(t, e.Restore(context.Background()))

	status := e.Status()
	assert.Equal(t, 1, status.CacheSize)
	assert.Equal(t, 1, status.ManualCount)
	assert.Equal(t, 1, status.AllowListCount)
	assert.Equal(t, 30, status.TTLDays)
	assert.True(t, status.Policy.ShowFriendsReal)
	assert.False(t, status.ShowFirstRunNotice)

	snapshot := e.Snapshot()
	assert.Equal(t, types.SettingsVersion, snapshot.Version)
	assert.Equal(t, []uint64{42}, snapshot.AllowListIDs)
	assert.Equal(t, []types.ManualEntry{{Name: "Mira Sol", LocationID: 102}}, snapshot.ManualEntries)
	require.NotNil(t, snapshot.Policy)
	assert.True(t, snapshot.Policy.UseCacheInCompetitive)
}

func TestRestoreWithoutSettingsKeepsDefaults(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, &fakeHost{})

	require.NoError(t, e.Restore(context.Background()))
	assert.True(t, e.ShowFirstRunNotice())
	assert.Equal(t, 90, e.Status().TTLDays)
}

func TestRestorePropagatesStorageErrors(t *testing.T) {
	e, store, _ := newTestEngine(t, nil, &fakeHost{})
	store.loadErr = types.ErrSettingsCorrupted

	err := e.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrSettingsCorrupted))
}

func TestAddEntityAsFriend(t *testing.T) {
	host := &fakeHost{
		entities: []types.Entity{
			{ID: 1, Name: "Rhea Starlight", HomeLocationID: 101, StableID: 555, Player: true},
			{ID: 2, Name: "Nowhere Person", HomeLocationID: 0, Player: true},
			{ID: 3, Name: "Sentinel Person", HomeLocationID: 65535, Player: true},
			{ID: 4, Name: "Mira Sol", HomeLocationID: 102, Player: true},
		},
	}
	e, store, _ := newTestEngine(t, nil, host)

	require.NoError(t, e.AddEntityAsFriend(1))
	assert.Equal(t, []types.ManualEntry{{Name: "Rhea Starlight", LocationID: 101}}, e.ManualEntries())
	assert.Equal(t, []uint64{555}, e.AllowListIDs())
	assert.Equal(t, 1, store.saves)

	require.NoError(t, e.AddEntityAsFriend(1), "adding twice is tolerated")
	assert.Len(t, e.ManualEntries(), 1)

	require.NoError(t, e.AddEntityAsFriend(4))
	assert.Len(t, e.ManualEntries(), 2)
	assert.Len(t, e.AllowListIDs(), 1)

	assert.True(t, types.IsError(e.AddEntityAsFriend(2), types.ErrUnknownLocation))
	assert.True(t, types.IsError(e.AddEntityAsFriend(3), types.ErrUnknownLocation))
	assert.True(t, types.IsError(e.AddEntityAsFriend(99), types.ErrEntityNotFound))
}

func TestManualAndAllowListManagement(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, &fakeHost{})

	require.NoError(t, e.AddManual("Mira Sol", 102))
	assert.True(t, types.IsError(e.AddManual("mira sol", 102), types.ErrManualEntryExists))
	assert.True(t, types.IsError(e.AddManual("Mira Sol", 500), types.ErrUnknownLocation))

	require.NoError(t, e.RemoveManual("MIRA SOL", 102))
	assert.True(t, types.IsError(e.RemoveManual("Mira Sol", 102), types.ErrManualEntryAbsent))

	assert.True(t, types.IsError(e.AddAllowListID(0), types.ErrInvalidStableID))
	require.NoError(t, e.AddAllowListID(9))
	assert.True(t, e.RemoveAllowListID(9))
	assert.False(t, e.RemoveAllowListID(9))
}

func TestSetLocationsDropsStaleManualEntries(t *testing.T) {
	e, store, _ := newTestEngine(t, nil, &fakeHost{})

	require.NoError(t, e.AddManual("Mira Sol", 102))
	require.NoError(t, e.AddManual("Rhea Starlight", 101))
	saves := store.saves

	e.SetLocations([]types.Location{{ID: 101, Name: "Gilgamesh"}})

	assert.Equal(t, []types.ManualEntry{{Name: "Rhea Starlight", LocationID: 101}}, e.ManualEntries())
	assert.Equal(t, saves+1, store.saves)
	assert.Len(t, e.Locations(), 1)
}

func TestEmptyLocationPushKeepsManualEntries(t *testing.T) {
	e, store, _ := newTestEngine(t, nil, &fakeHost{})

	require.NoError(t, e.AddManual("Rhea Starlight", 101))
	saves := store.saves

	e.SetLocations(nil)
	e.SetLocations([]types.Location{})

	want := []types.ManualEntry{{Name: "Rhea Starlight", LocationID: 101}}
	assert.Equal(t, want, e.ManualEntries())
	assert.Equal(t, saves, store.saves)
	assert.Equal(t, want, store.settings.ManualEntries)
	assert.Len(t, e.Locations(), 2)
}

func TestManualEntriesSurviveWithoutLocationTable(t *testing.T) {
	store := &fakeStore{settings: &types.Settings{
		Version: types.SettingsVersion,
		ManualEntries: []types.ManualEntry{
			{Name: "Mira Sol", LocationID: 102},
			{Name: "Sentinel", LocationID: 65535},
			{Name: "Zero", LocationID: 0},
		},
	}}
	e := New(nil, types.Policy{}, Dependencies{Storage: store})

	require.NoError(t, e.Restore(context.Background()))
	assert.Equal(t, []types.ManualEntry{{Name: "Mira Sol", LocationID: 102}}, e.ManualEntries())

	require.NoError(t, e.AddManual("Rhea Starlight", 4242))
	assert.ErrorIs(t, e.AddManual("Nobody", 65535), types.ErrUnknownLocation)

	e.SetLocations(testLocations)
	assert.Equal(t, []types.ManualEntry{{Name: "Mira Sol", LocationID: 102}}, e.ManualEntries())
}

func TestLookupStableID(t *testing.T) {
	host := &fakeHost{
		entities: []types.Entity{{ID: 4, Name: "Mira Sol", HomeLocationID: 102, StableID: 888, Player: true}},
	}
	e, _, _ := newTestEngine(t, nil, host)

	e.AddOrTouch("Rhea Starlight", 101, 777)

	assert.Equal(t, uint64(777), e.LookupStableID("rhea starlight", 101))
	assert.Equal(t, uint64(888), e.LookupStableID("Mira Sol", 102))
	assert.Zero(t, e.LookupStableID("Mira Sol", 101))
}

func TestDecideAllInCompetitiveZone(t *testing.T) {
	host := &fakeHost{
		competitive: true,
		entities: []types.Entity{
			{ID: 1, Name: "Rhea Starlight", StableID: 777, HomeLocationID: 101, Player: true},
			{ID: 2, Name: "Stranger Danger", StableID: 999, HomeLocationID: 101, Player: true},
			{ID: 3, Name: "Training Dummy"},
		},
	}
	e, _, _ := newTestEngine(t, nil, host)
	e.SetPolicy(types.Policy{
		ShowFriendsReal:          true,
		ScrambleAllInCompetitive: true,
		UseCacheInCompetitive:    true,
	})
	e.AddOrTouch("Rhea Starlight", 101, 777)

	displays := e.DecideAll()
	require.Len(t, displays, 2)

	assert.Equal(t, uint64(1), displays[0].EntityID)
	assert.Equal(t, types.DisplayReal, displays[0].Transform.Mode)
	assert.Equal(t, "Rhea Starlight", displays[0].Transform.Text)

	assert.Equal(t, uint64(2), displays[1].EntityID)
	assert.Equal(t, types.DisplayObfuscated, displays[1].Transform.Mode)
	assert.True(t, displays[1].Transform.ClearTitle)

	assert.True(t, e.IsRecognizedFriend(host.entities[0]))
	assert.False(t, e.IsRecognizedFriend(host.entities[1]))
}

func TestCacheIgnoredWhenPolicyDisabled(t *testing.T) {
	host := &fakeHost{competitive: true}
	e, _, _ := newTestEngine(t, nil, host)
	e.AddOrTouch("Rhea Starlight", 101, 777)

	entity := types.Entity{ID: 1, Name: "Rhea Starlight", StableID: 777, HomeLocationID: 101, Player: true}
	assert.False(t, e.IsRecognizedFriend(entity))

	e.SetPolicy(types.Policy{UseCacheInCompetitive: true})
	assert.True(t, e.IsRecognizedFriend(entity))
}

func TestFirstRunNotice(t *testing.T) {
	e, store, _ := newTestEngine(t, nil, &fakeHost{})

	assert.True(t, e.ShowFirstRunNotice())

	e.DismissFirstRunNotice()
	assert.False(t, e.ShowFirstRunNotice())
	assert.Equal(t, 1, store.saves)

	e.DismissFirstRunNotice()
	assert.Equal(t, 1, store.saves)

	e.ResetFirstRunNotice()
	assert.True(t, e.ShowFirstRunNotice())
	assert.True(t, store.settings.ShowFirstRunNotice)
}

func TestClearCacheAndTrim(t *testing.T) {
	e, _, clock := newTestEngine(t, nil, &fakeHost{})

	e.AddOrTouch("Rhea Starlight", 101, 0)
	clock.advance(100 * 24 * time.Hour)
	e.AddOrTouch("Mira Sol", 102, 0)

	assert.Equal(t, 1, e.Trim(90))
	assert.Equal(t, 1, e.ClearCache())
	assert.Empty(t, e.CacheEntries())
}

func TestEngineWithoutHost(t *testing.T) {
	e := New(nil, types.Policy{}, Dependencies{})

	assert.NotPanics(t, func() {
		e.Tick()
		e.ForceSeedNow()
		e.DecideAll()
	})
	assert.False(t, e.Status().LoggedIn)
	assert.True(t, types.IsError(e.AddEntityAsFriend(1), types.ErrEntityNotFound))
}
