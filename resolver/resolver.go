package resolver

import (
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type Match int

const (
	MatchNone Match = iota
	MatchFlag
	MatchAllowList
	MatchCacheStableID
	MatchCacheNameLocation
	MatchManual
)

func (m Match) String() string {
	switch m {
	case MatchFlag:
		return "flag"
	case MatchAllowList:
		return "allow_list"
	case MatchCacheStableID:
		return "cache_stable_id"
	case MatchCacheNameLocation:
		return "cache_name_location"
	case MatchManual:
		return "manual"
	default:
		return "none"
	}
}

type CacheLookup interface {
	FindByStableID(stableID uint64) (types.CacheEntry, bool)
	FindByNameLocation(name string, locationID uint16) (types.CacheEntry, bool)
}

type ManualLookup interface {
	Contains(name string, locationID uint16) bool
}

type IDLookup interface {
	Contains(stableID uint64) bool
}

type Resolver struct {
	cache  CacheLookup
	manual ManualLookup
	allow  IDLookup
}

func New(cache CacheLookup, manual ManualLookup, allow IDLookup) *Resolver {
	return &Resolver{
		cache:  cache,
		manual: manual,
		allow:  allow,
	}
}

// Resolve checks the strongest signal first and never caches the outcome.
// The cache is only consulted inside competitive zones with useCache on.
func (r *Resolver) Resolve(e types.Entity, competitive, useCache bool) Match {
	if e.Friend {
		return MatchFlag
	}

	if e.StableID != 0 && r.allow.Contains(e.StableID) {
		return MatchAllowList
	}

	if competitive && useCache {
		if e.StableID != 0 {
			if _, ok := r.cache.FindByStableID(e.StableID); ok {
				return MatchCacheStableID
			}
		}

		if _, ok := r.cache.FindByNameLocation(e.Name, e.HomeLocationID); ok {
			return MatchCacheNameLocation
		}
	}

	if r.manual.Contains(e.Name, e.HomeLocationID) {
		return MatchManual
	}

	return MatchNone
}

func (r *Resolver) IsRecognizedFriend(e types.Entity, competitive, useCache bool) bool {
	return r.Resolve(e, competitive, useCache) != MatchNone
}
