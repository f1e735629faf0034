package metrics

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type CollectorState int32

const (
	CollectorStateStopped CollectorState = iota
	CollectorStateRunning
)

// Sampler writes point-in-time gauges. It runs on the collector goroutine.
type Sampler func(metrics types.MetricsManager)

// Collector runs its samplers on a fixed interval until stopped.
type Collector struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    types.Logger
	metrics   types.MetricsManager
	interval  time.Duration
	samplers  []Sampler
	state     atomic.Value
	done      chan struct{}
	startTime time.Time
}

func NewCollector(ctx context.Context, logger types.Logger, metrics types.MetricsManager, interval time.Duration, samplers ...Sampler) *Collector {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	collectorCtx, cancel := context.WithCancel(ctx)

	c := &Collector{
		ctx:      collectorCtx,
		cancel:   cancel,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		samplers: samplers,
		done:     make(chan struct{}),
	}

	c.samplers = append(c.samplers, c.sampleRuntime)
	c.state.Store(CollectorStateStopped)

	return c
}

func (c *Collector) Start() error {
	if !c.state.CompareAndSwap(CollectorStateStopped, CollectorStateRunning) {
		return types.ErrServerAlreadyRunning
	}

	c.startTime = time.Now()
	go c.collectLoop()

	c.logger.Info("Metrics collection started", zap.Duration("interval", c.interval))
	return nil
}

func (c *Collector) Stop() error {
	if !c.state.CompareAndSwap(CollectorStateRunning, CollectorStateStopped) {
		return types.ErrServerNotRunning
	}

	c.cancel()
	<-c.done

	c.logger.Info("Metrics collection stopped")
	return nil
}

func (c *Collector) IsRunning() bool {
	return c.state.Load().(CollectorState) == CollectorStateRunning
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.ctx.Done():
			return
		}
	}
}

// Collect runs every sampler once. A panicking sampler is logged and skipped.
func (c *Collector) Collect() {
	for _, sample := range c.samplers {
		c.runSampler(sample)
	}
}

func (c *Collector) runSampler(sample Sampler) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Metrics sampler panicked", zap.Any("panic", r))
		}
	}()

	sample(c.metrics)
}

func (c *Collector) sampleRuntime(metrics types.MetricsManager) {
	metrics.Gauge("system_goroutines_count", nil).Set(float64(runtime.NumGoroutine()))
	if !c.startTime.IsZero() {
		metrics.Gauge("system_uptime_seconds", nil).Set(time.Since(c.startTime).Seconds())
	}
}
