package metrics

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type staticConfig struct {
	config *types.ServiceConfig
}

func (s *staticConfig) Load() error                                    { return nil }
func (s *staticConfig) GetConfig() *types.ServiceConfig                { return s.config }
func (s *staticConfig) GetValue(_ string, def interface{}) interface{} { return def }
func (s *staticConfig) GetAs(_ string, _ interface{}) error            { return nil }

func newManager(t *testing.T, metricsConfig *types.MetricsConfig) types.MetricsManager {
	t.Helper()

	m, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{Metrics: metricsConfig}}, logger.NewNop())
	require.NoError(t, err)
	return m
}

func TestNewManagerDisabled(t *testing.T) {
	_, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Metrics: &types.MetricsConfig{Enabled: false},
	}}, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrMetricsIsDisabled)

	_, err = NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Metrics: &types.MetricsConfig{Enabled: true, Type: "statsd"},
	}}, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrMetricsTypeUnknown)
}

func TestManagerIgnoresWritesWhileStopped(t *testing.T) {
	m := newManager(t, &types.MetricsConfig{Enabled: true, Type: "memory"})

	m.Counter("seed_reads_total", nil).Inc()
	_, err := m.GetMetrics()
	assert.ErrorIs(t, err, types.ErrMetricsNotRunning)

	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Zero(t, m.Counter("seed_reads_total", nil).Get())
}

func TestMemoryMetrics(t *testing.T) {
	m := newManager(t, &types.MetricsConfig{
		Enabled: true,
		Type:    "memory",
		Labels:  map[string]string{"instance": "test"},
	})
	require.NoError(t, m.Start())
	defer m.Stop()

	labels := map[string]string{"source": "roster", "result": "ok"}
	m.Counter("seed_reads_total", labels).Inc()
	m.Counter("seed_reads_total", map[string]string{"result": "ok", "source": "roster"}).Add(2)
	assert.Equal(t, 3.0, m.Counter("seed_reads_total", labels).Get())

	g := m.Gauge("friend_cache_entries", nil)
	g.Set(10)
	g.Inc()
	g.Sub(4)
	assert.Equal(t, 7.0, g.Get())

	h := m.Histogram("friend_cache_trim_duration_seconds", []float64{0.1, 1}, nil)
	h.Observe(0.05)
	h.Observe(5)
	assert.Equal(t, uint64(2), h.GetCount())
	assert.InDelta(t, 5.05, h.GetSum(), 1e-9)
	assert.Equal(t, []uint64{1, 0, 1}, h.(*MemoryHistogram).BucketCounts())

	data, err := m.GetMetrics()
	require.NoError(t, err)

	var values []types.MetricValue
	require.NoError(t, utils.Unmarshal(data, &values))
	require.Len(t, values, 3)
	assert.Equal(t, "friend_cache_entries", values[0].Name)
	assert.Equal(t, "test", values[0].Labels["instance"])
}

func TestMemoryMetricsLimit(t *testing.T) {
	mm, err := NewMemoryMetrics(logger.NewNop(), &types.MetricsConfig{Config: map[string]interface{}{"max_metrics": 1}})
	require.NoError(t, err)
	require.NoError(t, mm.Start())

	mm.Counter("a", nil).Inc()
	extra := mm.Counter("b", nil)
	extra.Inc()
	assert.Equal(t, 1.0, extra.Get())

	assert.Len(t, mm.(*MemoryMetrics).Snapshot(), 1)
}

func TestPrometheusMetrics(t *testing.T) {
	m := newManager(t, &types.MetricsConfig{
		Enabled: true,
		Type:    "prometheus",
		Config:  map[string]interface{}{"enable_go_metrics": false},
	})
	require.NoError(t, m.Start())
	defer m.Stop()

	m.Counter("resolver_matches_total", map[string]string{"match": "flag"}).Inc()
	m.Counter("resolver_matches_total", map[string]string{"match": "flag"}).Inc()
	assert.Equal(t, 2.0, m.Counter("resolver_matches_total", map[string]string{"match": "flag"}).Get())

	mismatch := m.Counter("resolver_matches_total", map[string]string{"other": "x"})
	mismatch.Inc()
	assert.Zero(t, mismatch.Get())

	m.Gauge("friend_cache_entries", nil).Set(4)
	assert.Equal(t, 4.0, m.Gauge("friend_cache_entries", nil).Get())

	h := m.Histogram("storage_operation_duration_seconds", []float64{0.01, 0.1}, map[string]string{"operation": "save"})
	h.Observe(0.02)
	assert.Equal(t, uint64(1), h.GetCount())

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.Contains(body, `friendlyfire_resolver_matches_total{match="flag"} 2`), body)
}

func TestHandlerUnavailableWhenStopped(t *testing.T) {
	m := newManager(t, &types.MetricsConfig{Enabled: true, Type: "memory"})

	ctx := &fasthttp.RequestCtx{}
	m.Handler()(ctx)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}

func TestCollectorRunsSamplers(t *testing.T) {
	m := newManager(t, &types.MetricsConfig{Enabled: true, Type: "memory"})
	require.NoError(t, m.Start())
	defer m.Stop()

	var calls int32
	c := NewCollector(context.Background(), logger.NewNop(), m, 10*time.Millisecond,
		func(metrics types.MetricsManager) {
			atomic.AddInt32(&calls, 1)
			metrics.Gauge("friend_manual_entries", nil).Set(2)
		},
		func(types.MetricsManager) { panic("sampler bug") },
	)

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())

	assert.Equal(t, 2.0, m.Gauge("friend_manual_entries", nil).Get())
}
