package friendcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/metrics"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

func TestInstrumentedRecordsPerSource(t *testing.T) {
	m, err := metrics.NewMemoryMetrics(logger.NewNop(), &types.MetricsConfig{})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	now := time.Unix(1_700_000_000, 0)
	cache := NewInstrumented(NewStore(WithClock(func() time.Time { return now })), m)

	assert.True(t, cache.Source(SourceRoster).AddOrTouch("Rhea Starlight", 101, 777))
	assert.False(t, cache.Source(SourceRoster).AddOrTouch("Rhea Starlight", 101, 777))
	assert.True(t, cache.Source(SourceScrape).AddOrTouch("Mira Sol", 0, 0))
	assert.True(t, cache.AddOrTouch("Nia Vale", 102, 0))

	added := func(source string) float64 {
		return m.Counter("friend_cache_added_total", map[string]string{"source": source}).Get()
	}
	assert.Equal(t, 1.0, added(SourceRoster))
	assert.Equal(t, 1.0, added(SourceScrape))
	assert.Equal(t, 1.0, added(SourceAPI))
	assert.Equal(t, 3.0, m.Gauge("friend_cache_entries", nil).Get())

	now = now.Add(100 * 24 * time.Hour)
	assert.Equal(t, 3, cache.Trim(90))
	assert.Equal(t, 3.0, m.Counter("friend_cache_trimmed_total", nil).Get())
	assert.Zero(t, m.Gauge("friend_cache_entries", nil).Get())
}

func TestInstrumentedWithoutMetrics(t *testing.T) {
	cache := NewInstrumented(NewStore(), nil)

	assert.NotPanics(t, func() {
		cache.Source(SourcePassive).AddOrTouch("Rhea Starlight", 101, 0)
		cache.Trim(90)
		cache.Load([]types.CacheEntry{{Name: "Mira Sol", LastSeen: 1}})
		cache.Clear()
	})
}
