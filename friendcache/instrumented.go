package friendcache

import (
	"time"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const (
	SourcePassive = "passive"
	SourceRoster  = "roster"
	SourceScrape  = "scrape"
	SourceAPI     = "api"
)

// Instrumented shadows the mutating Store methods to keep the cache metrics
// current. Reads pass straight through to the embedded Store.
type Instrumented struct {
	*Store
	metrics types.MetricsManager
}

func NewInstrumented(store *Store, metrics types.MetricsManager) *Instrumented {
	return &Instrumented{
		Store:   store,
		metrics: metrics,
	}
}

func (ic *Instrumented) Source(source string) *SourceSink {
	return &SourceSink{parent: ic, source: source}
}

func (ic *Instrumented) AddOrTouch(name string, locationID uint16, stableID uint64) bool {
	return ic.addOrTouch(SourceAPI, name, locationID, stableID)
}

func (ic *Instrumented) Trim(ttlDays int) int {
	start := time.Now()
	removed := ic.Store.Trim(ttlDays)

	if ic.metrics != nil {
		ic.metrics.Counter("friend_cache_trimmed_total", nil).Add(float64(removed))
		ic.metrics.Histogram("friend_cache_trim_duration_seconds",
			[]float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
			nil,
		).ObserveDuration(start)
	}
	ic.recordSize()

	return removed
}

func (ic *Instrumented) Clear() int {
	removed := ic.Store.Clear()
	ic.recordSize()
	return removed
}

func (ic *Instrumented) Load(entries []types.CacheEntry) int {
	dropped := ic.Store.Load(entries)
	ic.recordSize()
	return dropped
}

func (ic *Instrumented) addOrTouch(source, name string, locationID uint16, stableID uint64) bool {
	created := ic.Store.AddOrTouch(name, locationID, stableID)
	if created {
		ic.recordAdded(source)
		ic.recordSize()
	}
	return created
}

func (ic *Instrumented) recordAdded(source string) {
	if ic.metrics == nil {
		return
	}

	ic.metrics.Counter("friend_cache_added_total", map[string]string{
		"source": source,
	}).Inc()
}

func (ic *Instrumented) recordSize() {
	if ic.metrics == nil {
		return
	}

	ic.metrics.Gauge("friend_cache_entries", nil).Set(float64(ic.Store.Len()))
}

type SourceSink struct {
	parent *Instrumented
	source string
}

func (s *SourceSink) AddOrTouch(name string, locationID uint16, stableID uint64) bool {
	return s.parent.addOrTouch(s.source, name, locationID, stableID)
}
