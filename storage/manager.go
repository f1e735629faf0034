package storage

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

var customStorageCreators = make(map[string]types.StorageManagerCreator)

func RegisterStorageManager(storageType string, creator types.StorageManagerCreator) {
	customStorageCreators[storageType] = creator
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.StorageManager, error) {
	storageConfig := config.GetConfig().Storage
	if storageConfig == nil {
		return nil, types.ErrStorageConfigInvalid
	}

	storageType := storageConfig.Type

	var impl types.StorageManager
	var err error

	switch storageType {
	case "memory":
		impl, err = NewMemoryStore(logger)
	case "file":
		impl, err = NewFileStore(logger, storageConfig)
	case "clover":
		impl, err = NewCloverStore(logger, storageConfig)
	case "sqlite":
		impl, err = NewSQLiteStore(ctx, logger, storageConfig)
	case "redis":
		impl, err = NewRedisStore(ctx, logger, storageConfig)
	default:
		if creator, exists := customStorageCreators[storageType]; exists {
			impl, err = creator(storageConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrStorageTypeUnknown, "type: %s", storageType)
		}
	}

	if err != nil {
		return nil, err
	}

	logger.Info("Storage initialized", zap.String("type", storageType))
	return newInstrumentedStorageManager(logger, metrics, impl), nil
}

type instrumentedStorageManager struct {
	impl    types.StorageManager
	logger  types.Logger
	metrics types.MetricsManager
	state   atomic.Value
}

func newInstrumentedStorageManager(logger types.Logger, metrics types.MetricsManager, impl types.StorageManager) types.StorageManager {
	instrumented := &instrumentedStorageManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}

	instrumented.state.Store(StateStopped)
	return instrumented
}

func (sm *instrumentedStorageManager) Start() error {
	if !sm.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	if err := sm.impl.Start(); err != nil {
		sm.setState(StateStopped)
		return err
	}

	sm.setState(StateRunning)
	sm.logger.Info("Storage manager started")
	return nil
}

func (sm *instrumentedStorageManager) Stop() error {
	if !sm.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		sm.setState(StateStopped)
	}()

	if err := sm.impl.Stop(); err != nil {
		sm.logger.Error("Failed to stop storage implementation", zap.Error(err))
		return err
	}

	sm.logger.Info("Storage manager stopped gracefully")
	return nil
}

func (sm *instrumentedStorageManager) IsRunning() bool {
	return sm.getState() == StateRunning
}

func (sm *instrumentedStorageManager) Load(ctx context.Context) (*types.Settings, error) {
	if !sm.IsRunning() {
		return nil, types.ErrStorageNotRunning
	}

	start := time.Now()
	settings, err := sm.impl.Load(ctx)
	if types.IsError(err, types.ErrSettingsNotFound) {
		sm.observe("load", start, nil)
	} else {
		sm.observe("load", start, err)
	}

	return settings, err
}

func (sm *instrumentedStorageManager) Save(ctx context.Context, settings *types.Settings) error {
	if !sm.IsRunning() {
		return types.ErrStorageNotRunning
	}
	if settings == nil {
		return types.Errorf(types.ErrInvalidParameter, "settings is nil")
	}

	start := time.Now()
	err := sm.impl.Save(ctx, settings)
	sm.observe("save", start, err)

	return err
}

func (sm *instrumentedStorageManager) Ping(ctx context.Context) error {
	if !sm.IsRunning() {
		return types.ErrStorageNotRunning
	}
	return sm.impl.Ping(ctx)
}

func (sm *instrumentedStorageManager) observe(operation string, start time.Time, err error) {
	if sm.metrics == nil {
		return
	}

	labels := map[string]string{"operation": operation}

	sm.metrics.Histogram("storage_operation_duration_seconds",
		[]float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		labels,
	).ObserveDuration(start)

	if err != nil {
		sm.metrics.Counter("storage_errors_total", labels).Inc()
	}
}

func (sm *instrumentedStorageManager) getState() State {
	return sm.state.Load().(State)
}

func (sm *instrumentedStorageManager) setState(newState State) bool {
	currentState := sm.getState()
	return sm.state.CompareAndSwap(currentState, newState)
}

func (sm *instrumentedStorageManager) transitionState(from, to State) bool {
	return sm.state.CompareAndSwap(from, to)
}
