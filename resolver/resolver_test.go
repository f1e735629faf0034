package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/allowlist"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/friendcache"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type fixture struct {
	cache    *friendcache.Store
	manual   *allowlist.ManualList
	allow    *allowlist.IDSet
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	f := &fixture{
		cache:  friendcache.NewStore(friendcache.WithClock(func() time.Time { return now })),
		manual: allowlist.NewManualList(func(id uint16) bool { return id >= 100 && id < 200 }),
		allow:  allowlist.NewIDSet(),
	}
	f.resolver = New(f.cache, f.manual, f.allow)
	return f
}

func TestResolveOrder(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.cache.AddOrTouch("Cached Friend", 101, 0))
	require.True(t, f.cache.AddOrTouch("Stable Friend", 101, 500))
	require.True(t, f.cache.AddOrTouch("Wandering Friend", 0, 0))
	require.True(t, f.allow.Add(900))
	require.NoError(t, f.manual.Add("Manual Friend", 102))

	cases := []struct {
		name        string
		entity      types.Entity
		competitive bool
		useCache    bool
		want        Match
	}{
		{"flag wins", types.Entity{Name: "Anyone", Friend: true, StableID: 900}, true, true, MatchFlag},
		{"allow list by stable id", types.Entity{Name: "Unknown Person", StableID: 900}, false, false, MatchAllowList},
		{"cache stable id in competitive", types.Entity{Name: "Renamed Person", StableID: 500, HomeLocationID: 103}, true, true, MatchCacheStableID},
		{"cache ignored outside competitive", types.Entity{Name: "Renamed Person", StableID: 500, HomeLocationID: 103}, false, true, MatchNone},
		{"cache ignored when policy off", types.Entity{Name: "Cached Friend", HomeLocationID: 101}, true, false, MatchNone},
		{"cache name location", types.Entity{Name: "cached friend", HomeLocationID: 101}, true, true, MatchCacheNameLocation},
		{"cache name location wrong location", types.Entity{Name: "Cached Friend", HomeLocationID: 102}, true, true, MatchNone},
		{"stored location zero matches any", types.Entity{Name: "Wandering Friend", HomeLocationID: 150}, true, true, MatchCacheNameLocation},
		{"manual exact location", types.Entity{Name: "MANUAL FRIEND", HomeLocationID: 102}, false, false, MatchManual},
		{"manual wrong location", types.Entity{Name: "Manual Friend", HomeLocationID: 101}, false, false, MatchNone},
		{"stranger", types.Entity{Name: "Total Stranger", HomeLocationID: 101, StableID: 1}, true, true, MatchNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := f.resolver.Resolve(tc.entity, tc.competitive, tc.useCache)
			assert.Equal(t, tc.want, got, "got %s", got)
			assert.Equal(t, tc.want != MatchNone, f.resolver.IsRecognizedFriend(tc.entity, tc.competitive, tc.useCache))
		})
	}
}

func TestMatchString(t *testing.T) {
	assert.Equal(t, "none", MatchNone.String())
	assert.Equal(t, "cache_name_location", MatchCacheNameLocation.String())
	assert.Equal(t, "manual", MatchManual.String())
}
