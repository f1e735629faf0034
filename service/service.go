package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/bridge"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/config"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/cron"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/health"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/metrics"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/server"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/storage"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	tickJobName       = "friends-tick"
	saveJobName       = "friends-save"
	collectorInterval = 15 * time.Second
)

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
	saveTimeout     time.Duration

	config    *config.ConfigurationManager
	logger    *logger.Manager
	metrics   types.MetricsManager
	collector *metrics.Collector
	storage   types.StorageManager
	engine    *engine.Engine
	serial    *engine.Serial
	snapshot  *bridge.Snapshot
	bridge    *bridge.Server
	health    *health.Manager
	cron      *cron.Manager
	http      *server.FastHTTPServer
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager)
}

// NewServiceWithConfig runs the service from an in-memory config.
func NewServiceWithConfig(ctx context.Context, serviceConfig *types.ServiceConfig) (*Service, error) {
	configManager, err := config.NewStaticManager(ctx, serviceConfig)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager)
}

func newService(ctx context.Context, configManager *config.ConfigurationManager) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		config:          configManager,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
		saveTimeout:     engine.DefaultSaveTimeout,
	}

	service.state.Store(StateStopped)

	if err := service.registerProviders(serviceCtx); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	return service, nil
}

// Start blocks until the service is stopped by Stop, a signal or the parent
// context.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.Stack(string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger.Info("Starting service", zap.String("name", s.config.GetConfig().Name))

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.setState(StateStopped)
		if stopErr := s.stopComponents(); stopErr != nil {
			s.logger.Error("Error during service rollback", zap.Error(stopErr))
		}
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	if s.logger.IsRunning() {
		_ = s.logger.Stop()
	}
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) Serial() *engine.Serial {
	return s.serial
}

func (s *Service) HTTPAddr() string {
	if s.http == nil {
		return ""
	}
	return s.http.Addr()
}

func (s *Service) BridgeAddr() string {
	if s.bridge == nil {
		return ""
	}
	return s.bridge.Addr()
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	required := []struct {
		name      string
		component types.LifecycleManager
	}{
		{"config manager", s.config},
		{"logger", s.logger},
		{"metrics manager", s.metrics},
		{"storage", s.storage},
	}

	for _, item := range required {
		if item.component == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := item.component.Start(); err != nil {
				return types.WrapError(err, "failed to start "+item.name)
			}
		}
	}

	var restoreErr error
	s.serial.Do(func(e *engine.Engine) {
		restoreErr = e.Restore(ctx)
	})
	if restoreErr != nil {
		s.logger.Error("Persisted friend settings are unusable, starting empty", zap.Error(restoreErr))
	}

	g, gCtx := errgroup.WithContext(ctx)

	optional := map[string]types.LifecycleManager{
		"health manager":    nilIfAbsent(s.health),
		"bridge":            nilIfAbsent(s.bridge),
		"metrics collector": nilIfAbsent(s.collector),
	}

	for name, component := range optional {
		if component == nil {
			continue
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := component.Start(); err != nil {
					return types.WrapError(err, "failed to start "+name)
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
			return err
		}
	}

	if s.http != nil {
		if err := s.http.Start(); err != nil {
			return types.WrapError(err, "failed to start HTTP server")
		}
	}

	if s.cron != nil {
		if err := s.cron.Start(); err != nil {
			return types.WrapError(err, "failed to start cron manager")
		}
	}

	s.logger.Info("All components started successfully")
	return nil
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errors []error

	s.logger.Info("Stopping service components...")

	g, gCtx := errgroup.WithContext(ctx)

	for name, component := range map[string]types.LifecycleManager{
		"HTTP server":       nilIfAbsent(s.http),
		"cron manager":      nilIfAbsent(s.cron),
		"bridge":            nilIfAbsent(s.bridge),
		"metrics collector": nilIfAbsent(s.collector),
	} {
		if component == nil || !component.IsRunning() {
			continue
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := component.Stop(); err != nil {
					s.logger.Error("Failed to stop "+name, zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errors = append(errors, err)
		}
	}

	if s.storage != nil && s.storage.IsRunning() {
		if err := s.saveNow(); err != nil {
			s.logger.Error("Failed to persist friend settings on shutdown", zap.Error(err))
			errors = append(errors, err)
		}
	}

	for _, item := range []struct {
		name      string
		component types.LifecycleManager
	}{
		{"storage", s.storage},
		{"health manager", nilIfAbsent(s.health)},
		{"metrics manager", s.metrics},
		{"config manager", s.config},
	} {
		if item.component == nil || !item.component.IsRunning() {
			continue
		}
		if err := item.component.Stop(); err != nil {
			s.logger.Error("Failed to stop "+item.name, zap.Error(err))
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errors)
	}

	s.logger.Info("All components stopped successfully")
	return nil
}

func (s *Service) saveNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	return engine.Value(s.serial, func(e *engine.Engine) error {
		return e.Save(ctx)
	})
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger.Info("Service context cancelled")
		}

		signal.Stop(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger.Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger.Info("Service shutdown: context done")
	}
}

func (s *Service) registerProviders(ctx context.Context) error {
	var err error

	_config := s.config.GetConfig()

	s.logger, err = logger.NewManager(ctx, s.config)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}

	s.metrics, err = metrics.NewManager(ctx, s.config, s.logger.Named("metrics"))
	if err != nil && !types.IsError(err, types.ErrMetricsIsDisabled) {
		return types.WrapError(err, "failed to register metrics manager")
	}

	s.storage, err = storage.NewManager(ctx, s.config, s.logger.Named("storage"), s.metrics)
	if err != nil {
		return types.WrapError(err, "failed to register storage")
	}

	policy := types.Policy{}
	if _config.Policy != nil {
		policy = *_config.Policy
	}

	s.snapshot = bridge.NewSnapshot()
	s.engine = engine.New(_config.Friends, policy, engine.Dependencies{
		Host:      s.snapshot,
		Storage:   s.storage,
		Locations: normalize.NewLocationTable(_config.Locations),
		Jobs:      _config.Jobs,
		Logger:    s.logger.Named("engine"),
		Metrics:   s.metrics,
	})
	s.serial = engine.NewSerial(s.engine)

	if _config.Friends != nil && _config.Friends.SaveTimeout > 0 {
		s.saveTimeout = _config.Friends.SaveTimeout
	}

	s.bridge, err = bridge.NewServer(ctx, s.config, s.logger.Named("bridge"), s.metrics, s.serial, s.snapshot)
	if err != nil && !types.IsError(err, types.ErrBridgeIsDisabled) {
		return types.WrapError(err, "failed to register bridge")
	}

	s.health, err = health.NewManager(ctx, s.config, s.logger.Named("health"))
	if err != nil && !types.IsError(err, types.ErrHealthIsDisabled) {
		return types.WrapError(err, "failed to register health manager")
	}
	if s.health != nil {
		s.registerHealthCheckers()
	}

	s.cron, err = cron.NewManager(ctx, s.config, s.logger.Named("cron"), s.metrics)
	if err != nil && !types.IsError(err, types.ErrCronIsDisabled) {
		return types.WrapError(err, "failed to register cron manager")
	}
	if s.cron != nil {
		if err := s.registerJobs(_config.Cron); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.collector = metrics.NewCollector(ctx, s.logger.Named("collector"), s.metrics, collectorInterval, s.sampleFriends)
	}

	s.http, err = server.NewHTTPServer(ctx, s.config, s.logger.Named("http"), s.metrics)
	if err != nil && !types.IsError(err, types.ErrServerIsDisabled) {
		return types.WrapError(err, "failed to register HTTP server")
	}
	if s.http != nil {
		handlers := &adminHandlers{
			info:    types.ServiceInfo{Name: _config.Name, Version: _config.Version},
			serial:  s.serial,
			logger:  s.logger.Named("admin"),
			metrics: s.metrics,
			health:  s.health,
		}
		handlers.register(s.http.Router())
	}

	return nil
}

func (s *Service) registerHealthCheckers() {
	s.health.RegisterChecker("storage", health.PingChecker(s.storage.Ping))

	if s.bridge != nil {
		s.health.RegisterChecker("bridge", health.LifecycleChecker(s.bridge, func() map[string]interface{} {
			return map[string]interface{}{
				"sessions":  s.bridge.Sessions(),
				"logged_in": s.snapshot.LoggedIn(),
			}
		}))
	}

	s.health.RegisterChecker("engine", health.StatusChecker(func() map[string]interface{} {
		status := engine.Value(s.serial, func(e *engine.Engine) types.FriendsStatus { return e.Status() })
		return map[string]interface{}{
			"cache_size":       status.CacheSize,
			"manual_count":     status.ManualCount,
			"allow_list_count": status.AllowListCount,
			"pending_seeds":    status.PendingSeeds,
			"last_seed_added":  status.LastSeedAdded,
		}
	}))
}

func (s *Service) registerJobs(cronConfig *types.CronConfig) error {
	if err := s.cron.Add(tickJobName, cronConfig.Tick, func() {
		s.serial.Do(func(e *engine.Engine) { e.Tick() })
	}); err != nil {
		return types.WrapError(err, "failed to register tick job")
	}

	if cronConfig.Save == "" {
		return nil
	}

	if err := s.cron.Add(saveJobName, cronConfig.Save, func() {
		if err := s.saveNow(); err != nil {
			s.logger.Warn("Scheduled friend settings checkpoint failed", zap.Error(err))
		}
	}); err != nil {
		return types.WrapError(err, "failed to register save job")
	}

	return nil
}

func (s *Service) sampleFriends(m types.MetricsManager) {
	status := engine.Value(s.serial, func(e *engine.Engine) types.FriendsStatus { return e.Status() })

	m.Gauge("friend_cache_entries", nil).Set(float64(status.CacheSize))
	m.Gauge("friend_manual_entries", nil).Set(float64(status.ManualCount))
	m.Gauge("friend_allow_list_ids", nil).Set(float64(status.AllowListCount))
	m.Gauge("friend_pending_seeds", nil).Set(float64(status.PendingSeeds))
}

// nilIfAbsent keeps a nil concrete pointer from becoming a non-nil interface.
func nilIfAbsent[T interface {
	comparable
	types.LifecycleManager
}](component T) types.LifecycleManager {
	var zero T
	if component == zero {
		return nil
	}
	return component
}
