package friendcache

import (
	"time"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const (
	DefaultTTLDays       = 90
	MinTTLDays           = 7
	DefaultTouchInterval = 60 * time.Second

	secondsPerDay = 86400
)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTouchInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval >= 0 {
			s.touchInterval = int64(interval / time.Second)
		}
	}
}

// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	entries       []types.CacheEntry
	touchInterval int64
	now           func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		touchInterval: int64(DefaultTouchInterval / time.Second),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func EffectiveTTLDays(ttlDays int) int {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	if ttlDays < MinTTLDays {
		ttlDays = MinTTLDays
	}
	return ttlDays
}

// AddOrTouch reports whether a new identity was recorded.
func (s *Store) AddOrTouch(name string, locationID uint16, stableID uint64) bool {
	name = normalize.NormalizeName(name)
	if name == "" {
		return false
	}

	locationID = normalize.SanitizeLocationID(locationID)
	now := s.now().Unix()

	if stableID != 0 {
		return s.addOrTouchStable(name, locationID, stableID, now)
	}

	return s.addOrTouchNamed(name, locationID, now)
}

func (s *Store) addOrTouchStable(name string, locationID uint16, stableID uint64, now int64) bool {
	if i := s.indexByStableID(stableID); i >= 0 {
		entry := &s.entries[i]
		if entry.Name != name {
			entry.Name = name
		}
		if entry.LocationID == normalize.UnknownLocation && locationID != normalize.UnknownLocation {
			entry.LocationID = locationID
		}
		if now-entry.LastSeen > s.touchInterval {
			entry.LastSeen = now
		}
		return false
	}

	s.entries = append(s.entries, types.CacheEntry{
		StableID:   stableID,
		Name:       name,
		LocationID: locationID,
		LastSeen:   now,
	})
	return true
}

func (s *Store) addOrTouchNamed(name string, locationID uint16, now int64) bool {
	locationless := -1
	knownElsewhere := false

	for i := range s.entries {
		entry := &s.entries[i]
		if !normalize.EqualName(entry.Name, name) {
			continue
		}
		if entry.StableID != 0 {
			if entry.LocationID != normalize.UnknownLocation {
				knownElsewhere = true
			}
			continue
		}

		if entry.LocationID == locationID {
			s.touch(entry, now)
			return false
		}

		if entry.LocationID == normalize.UnknownLocation {
			if locationless < 0 {
				locationless = i
			}
		} else {
			knownElsewhere = true
		}
	}

	if locationID == normalize.UnknownLocation {
		// A location-bearing record already covers this name; the bare
		// sighting is dropped rather than reconciled.
		if knownElsewhere {
			return false
		}
	} else if locationless >= 0 {
		entry := &s.entries[locationless]
		entry.LocationID = locationID
		if now > entry.LastSeen {
			entry.LastSeen = now
		}
		return true
	}

	s.entries = append(s.entries, types.CacheEntry{
		Name:       name,
		LocationID: locationID,
		LastSeen:   now,
	})
	return true
}

func (s *Store) touch(entry *types.CacheEntry, now int64) {
	if now-entry.LastSeen > s.touchInterval {
		entry.LastSeen = now
	}
}

// Trim returns the number of evicted entries.
func (s *Store) Trim(ttlDays int) int {
	maxAge := int64(EffectiveTTLDays(ttlDays)) * secondsPerDay
	now := s.now().Unix()

	kept := s.entries[:0]
	removed := 0
	for _, entry := range s.entries {
		if entry.LastSeen <= 0 || normalize.NormalizeName(entry.Name) == "" || now-entry.LastSeen > maxAge {
			removed++
			continue
		}
		kept = append(kept, entry)
	}

	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = types.CacheEntry{}
	}
	s.entries = kept

	return removed
}

func (s *Store) FindByStableID(stableID uint64) (types.CacheEntry, bool) {
	if stableID == 0 {
		return types.CacheEntry{}, false
	}
	if i := s.indexByStableID(stableID); i >= 0 {
		return s.entries[i], true
	}
	return types.CacheEntry{}, false
}

// FindByNameLocation treats location 0 on either side as a wildcard and
// prefers an exact location match.
func (s *Store) FindByNameLocation(name string, locationID uint16) (types.CacheEntry, bool) {
	name = normalize.NormalizeName(name)
	if name == "" {
		return types.CacheEntry{}, false
	}

	locationID = normalize.SanitizeLocationID(locationID)
	wildcard := -1

	for i, entry := range s.entries {
		if !normalize.EqualName(entry.Name, name) {
			continue
		}
		if entry.LocationID == locationID {
			return entry, true
		}
		if wildcard < 0 && (locationID == normalize.UnknownLocation || entry.LocationID == normalize.UnknownLocation) {
			wildcard = i
		}
	}

	if wildcard >= 0 {
		return s.entries[wildcard], true
	}

	return types.CacheEntry{}, false
}

func (s *Store) Clear() int {
	removed := len(s.entries)
	s.entries = nil
	return removed
}

func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) Entries() []types.CacheEntry {
	out := make([]types.CacheEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Load replaces the contents, dropping records that would break the
// uniqueness rules. The first occurrence of a key wins.
func (s *Store) Load(entries []types.CacheEntry) int {
	s.entries = make([]types.CacheEntry, 0, len(entries))

	stable := make(map[uint64]struct{}, len(entries))
	named := make(map[namedKey]struct{}, len(entries))
	dropped := 0

	for _, entry := range entries {
		entry.Name = normalize.NormalizeName(entry.Name)
		entry.LocationID = normalize.SanitizeLocationID(entry.LocationID)
		if entry.Name == "" {
			dropped++
			continue
		}

		if entry.StableID != 0 {
			if _, dup := stable[entry.StableID]; dup {
				dropped++
				continue
			}
			stable[entry.StableID] = struct{}{}
		} else {
			key := namedKey{name: normalize.NameKey(entry.Name), location: entry.LocationID}
			if _, dup := named[key]; dup {
				dropped++
				continue
			}
			named[key] = struct{}{}
		}

		s.entries = append(s.entries, entry)
	}

	return dropped
}

func (s *Store) indexByStableID(stableID uint64) int {
	for i := range s.entries {
		if s.entries[i].StableID == stableID {
			return i
		}
	}
	return -1
}

type namedKey struct {
	name     string
	location uint16
}
