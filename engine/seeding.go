package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/friendcache"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

// Tick runs one maintenance cycle. Every step is rate limited against the
// engine clock, so calling it every frame is fine.
func (e *Engine) Tick() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Friend tick panicked", zap.Any("panic", r))
		}
	}()

	now := e.now()
	added := e.runScheduledSeeds(now)

	if !e.competitive() && e.loggedIn() {
		if now.Sub(e.lastObserve) >= e.observeInterval {
			e.lastObserve = now
			added += e.observe()
		}

		if now.Sub(e.lastPoll) >= e.pollInterval {
			e.lastPoll = now
			added += e.seedOnce("poll", now)
		}
	}

	removed := 0
	if now.Sub(e.lastTrim) >= e.trimInterval {
		e.lastTrim = now
		removed = e.cache.Trim(e.ttlDays)
		if removed > 0 {
			e.logger.Debug("Friend cache trimmed", zap.Int("removed", removed), zap.Int("total", e.cache.Len()))
		}
	}

	if added > 0 || removed > 0 {
		e.save()
	}
}

func (e *Engine) runScheduledSeeds(now time.Time) int {
	added := 0
	for range e.scheduler.Due(now) {
		added += e.seedOnce("scheduled", now)
	}
	return added
}

func (e *Engine) observe() int {
	added := e.observer.Observe(e.visibleEntities(), e.cache.Source(friendcache.SourcePassive))
	if added > 0 {
		e.logger.Debug("Friends observed", zap.Int("added", added), zap.Int("total", e.cache.Len()))
	}
	return added
}

// seedOnce prefers the structured roster and falls back to the UI scrape.
// Failures are logged and reported as zero additions.
func (e *Engine) seedOnce(trigger string, now time.Time) (added int) {
	source := friendcache.SourceRoster

	defer func() {
		if r := recover(); r != nil {
			added = 0
			e.countSeed(source, "panic")
			e.logger.Warn("Friend seed panicked",
				zap.String("trigger", trigger),
				zap.String("source", source),
				zap.String("panic", fmt.Sprint(r)))
		}
		e.lastSeedAt = now
		e.lastSeedAdded = added
	}()

	if e.host == nil {
		return 0
	}

	n, available, err := e.roster.Read(e.host, e.cache.Source(friendcache.SourceRoster))
	if err != nil {
		e.countSeed(source, "error")
		e.logger.Debug("Roster read failed", zap.String("trigger", trigger), zap.Error(err))
	}
	if available {
		e.countSeed(source, "ok")
		e.logSeed(trigger, source, n)
		return n
	}

	source = friendcache.SourceScrape
	n, err = e.scraper.Seed(e.host, e.surface, e.cache.Source(friendcache.SourceScrape))
	if err != nil {
		e.countSeed(source, "error")
		e.logger.Debug("Surface scrape failed", zap.String("trigger", trigger), zap.Error(err))
		return 0
	}

	e.countSeed(source, "ok")
	e.logSeed(trigger, source, n)
	return n
}

func (e *Engine) logSeed(trigger, source string, added int) {
	e.logger.Debug("Friend seed finished",
		zap.String("trigger", trigger),
		zap.String("source", source),
		zap.Int("added", added),
		zap.Int("total", e.cache.Len()))
}

func (e *Engine) countSeed(source, result string) {
	if e.metrics == nil {
		return
	}
	e.metrics.Counter("seed_reads_total", map[string]string{
		"source": source,
		"result": result,
	}).Inc()
}

// ForceSeedNow runs one seed read immediately and persists any additions.
func (e *Engine) ForceSeedNow() (added, total int) {
	added = e.seedOnce("manual", e.now())
	if added > 0 {
		e.save()
	}
	return added, e.cache.Len()
}

// NotifySurfaceOpened schedules the one-shot seed reads that follow the
// social list being opened or refreshed.
func (e *Engine) NotifySurfaceOpened() bool {
	return e.scheduler.Notify(e.now())
}

func (e *Engine) AddOrTouch(name string, locationID uint16, stableID uint64) bool {
	created := e.cache.AddOrTouch(name, locationID, stableID)
	if created {
		e.save()
	}
	return created
}

func (e *Engine) Trim(ttlDays int) int {
	removed := e.cache.Trim(ttlDays)
	if removed > 0 {
		e.save()
	}
	return removed
}

func (e *Engine) ClearCache() int {
	removed := e.cache.Clear()
	if removed > 0 {
		e.save()
	}
	return removed
}

func (e *Engine) CacheEntries() []types.CacheEntry {
	return e.cache.Entries()
}

func (e *Engine) LastSeed() (time.Time, int) {
	return e.lastSeedAt, e.lastSeedAdded
}
