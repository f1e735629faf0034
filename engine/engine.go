package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/allowlist"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/display"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/friendcache"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/resolver"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/seed"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const (
	DefaultObserveInterval = 5 * time.Second
	DefaultTrimInterval    = 60 * time.Second
	DefaultPollInterval    = 30 * time.Second
	DefaultSaveTimeout     = 5 * time.Second
	DefaultSurface         = "FriendList"
)

type Dependencies struct {
	Host      types.Host
	Storage   types.SettingsStore
	Locations *normalize.LocationTable
	Jobs      []types.Job
	Logger    types.Logger
	Metrics   types.MetricsManager
	Clock     func() time.Time
}

// Engine owns every piece of friend state. It is single-threaded: wrap it in
// a Serial when more than one goroutine drives it.
type Engine struct {
	host      types.Host
	storage   types.SettingsStore
	logger    types.Logger
	metrics   types.MetricsManager
	now       func() time.Time
	locations *normalize.LocationTable

	cache     *friendcache.Instrumented
	manual    *allowlist.ManualList
	allow     *allowlist.IDSet
	resolver  *resolver.Resolver
	decider   *display.Decider
	observer  *seed.Observer
	roster    *seed.RosterReader
	scraper   *seed.Scraper
	scheduler *seed.Scheduler

	policy             types.Policy
	ttlDays            int
	showFirstRunNotice bool

	observeInterval time.Duration
	trimInterval    time.Duration
	pollInterval    time.Duration
	saveTimeout     time.Duration
	surface         string

	lastObserve   time.Time
	lastTrim      time.Time
	lastPoll      time.Time
	lastSeedAt    time.Time
	lastSeedAdded int
}

func New(config *types.FriendsConfig, policy types.Policy, deps Dependencies) *Engine {
	if config == nil {
		config = &types.FriendsConfig{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	e := &Engine{
		host:               deps.Host,
		storage:            deps.Storage,
		logger:             deps.Logger,
		metrics:            deps.Metrics,
		now:                deps.Clock,
		locations:          deps.Locations,
		policy:             policy,
		ttlDays:            config.TTLDays,
		showFirstRunNotice: true,
		observeInterval:    durationOr(config.ObserveInterval, DefaultObserveInterval),
		trimInterval:       durationOr(config.TrimInterval, DefaultTrimInterval),
		pollInterval:       durationOr(config.PollInterval, DefaultPollInterval),
		saveTimeout:        durationOr(config.SaveTimeout, DefaultSaveTimeout),
		surface:            config.Surface,
	}

	if e.surface == "" {
		e.surface = DefaultSurface
	}

	touch := config.TouchInterval
	if touch <= 0 {
		touch = friendcache.DefaultTouchInterval
	}

	store := friendcache.NewStore(
		friendcache.WithClock(deps.Clock),
		friendcache.WithTouchInterval(touch),
	)
	e.cache = friendcache.NewInstrumented(store, deps.Metrics)
	e.manual = allowlist.NewManualList(e.knownLocation)
	e.allow = allowlist.NewIDSet()
	e.resolver = resolver.New(e.cache, e.manual, e.allow)
	e.decider = display.NewDecider(deps.Jobs)
	e.observer = seed.NewObserver()
	e.roster = seed.NewRosterReader()
	e.scraper = seed.NewScraper(e.locations, config.ScrapeWindows)
	e.scheduler = seed.NewScheduler(seed.SchedulerConfig{
		Delays:     config.SeedDelays,
		Debounce:   durationOr(config.SeedDebounce, seed.DefaultDebounce),
		Tolerance:  durationOr(config.SeedTolerance, seed.DefaultTolerance),
		MaxPerTick: config.MaxSeedsPerTick,
	})

	return e
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// SetLocations swaps the location table. An empty push is ignored.
func (e *Engine) SetLocations(locations []types.Location) {
	if len(locations) == 0 {
		e.logger.Debug("Ignoring empty location table")
		return
	}

	e.locations = normalize.NewLocationTable(locations)
	e.scraper.SetTable(e.locations)

	if removed := e.manual.Clean(); removed > 0 {
		e.logger.Info("Manual entries dropped after location update", zap.Int("removed", removed))
		e.save()
	}
}

// knownLocation checks the id against the table when one is loaded. Without
// a table only the 0 and 65535 sentinels are rejected.
func (e *Engine) knownLocation(id uint16) bool {
	if !normalize.ValidLocationID(id) {
		return false
	}
	return e.locations.Len() == 0 || e.locations.Valid(id)
}

func (e *Engine) Locations() []types.Location {
	return e.locations.Locations()
}

// ResolveLocation maps a location label to its id, 0 when unknown.
func (e *Engine) ResolveLocation(label string) uint16 {
	return e.locations.Resolve(label)
}

func (e *Engine) LocationLabel(id uint16) (string, bool) {
	return e.locations.Label(id)
}

func (e *Engine) SetJobs(jobs []types.Job) {
	e.decider.SetJobs(jobs)
}

func (e *Engine) SetHost(host types.Host) {
	e.host = host
}

func (e *Engine) competitive() bool {
	return e.host != nil && e.host.InCompetitiveZone()
}

func (e *Engine) loggedIn() bool {
	return e.host != nil && e.host.LoggedIn()
}

func (e *Engine) visibleEntities() []types.Entity {
	if e.host == nil {
		return nil
	}
	return e.host.VisibleEntities()
}

func (e *Engine) IsRecognizedFriend(entity types.Entity) bool {
	match := e.resolver.Resolve(entity, e.competitive(), e.policy.UseCacheInCompetitive)
	e.countMatch(match)
	return match != resolver.MatchNone
}

func (e *Engine) DecideDisplay(entity types.Entity) types.DisplayTransform {
	competitive := e.competitive()
	match := e.resolver.Resolve(entity, competitive, e.policy.UseCacheInCompetitive)
	e.countMatch(match)

	transform := e.decider.Decide(entity, competitive, match != resolver.MatchNone, e.policy)
	if e.metrics != nil {
		e.metrics.Counter("display_decisions_total", map[string]string{
			"mode": string(transform.Mode),
		}).Inc()
	}
	return transform
}

// DecideAll renders every visible player entity.
func (e *Engine) DecideAll() []types.EntityDisplay {
	entities := e.visibleEntities()
	out := make([]types.EntityDisplay, 0, len(entities))

	for _, entity := range entities {
		if !entity.Player {
			continue
		}
		out = append(out, types.EntityDisplay{
			EntityID:  entity.ID,
			Transform: e.DecideDisplay(entity),
		})
	}

	return out
}

func (e *Engine) countMatch(match resolver.Match) {
	if e.metrics == nil {
		return
	}
	e.metrics.Counter("resolver_matches_total", map[string]string{
		"match": match.String(),
	}).Inc()
}

func (e *Engine) Status() types.FriendsStatus {
	return types.FriendsStatus{
		CacheSize:          e.cache.Len(),
		ManualCount:        e.manual.Len(),
		AllowListCount:     e.allow.Len(),
		PendingSeeds:       e.scheduler.Pending(),
		LastSeedAt:         e.lastSeedAt,
		LastSeedAdded:      e.lastSeedAdded,
		TTLDays:            friendcache.EffectiveTTLDays(e.ttlDays),
		Policy:             e.policy,
		Competitive:        e.competitive(),
		LoggedIn:           e.loggedIn(),
		ShowFirstRunNotice: e.showFirstRunNotice,
	}
}
