package logger

import (
	"context"
	"errors"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

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
	TypeDefault = "default"
	TypeNop     = "nop"

	defaultFlushTimeout = 5 * time.Second
)

var _ types.LoggerManager = (*Manager)(nil)

// Manager owns the process logger. Every line carries the service name and
// version; components log through Named children tagged with their name.
type Manager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       types.Logger
	kind         string
	level        string
	state        atomic.Value
	flushTimeout time.Duration
}

type fieldLogger interface {
	With(fields ...zap.Field) types.Logger
}

type namedLogger interface {
	Named(component string) types.Logger
}

type syncer interface {
	Sync() error
}

var customLoggerCreators = make(map[string]types.LoggerCreator)

// RegisterLogger adds a logger type selectable through logger.type. The
// built-in types cannot be replaced.
func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	if loggerName == TypeDefault || loggerName == TypeNop {
		return
	}
	customLoggerCreators[loggerName] = creator
}

func NewManager(ctx context.Context, config types.ConfigManager) (*Manager, error) {
	_config := config.GetConfig()
	if _config.Logger == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	kind := _config.Logger.Type
	if kind == "" {
		kind = TypeDefault
	}

	base, err := createLogger(kind, _config.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	managerCtx, cancel := context.WithCancel(ctx)

	m := &Manager{
		ctx:          managerCtx,
		cancel:       cancel,
		logger:       withFields(base, serviceFields(_config)...),
		kind:         kind,
		level:        _config.Logger.Level,
		flushTimeout: defaultFlushTimeout,
	}
	m.state.Store(StateStopped)

	return m, nil
}

func serviceFields(config *types.ServiceConfig) []zap.Field {
	var fields []zap.Field
	if config.Name != "" {
		fields = append(fields, zap.String("service", config.Name))
	}
	if config.Version != "" {
		fields = append(fields, zap.String("version", config.Version))
	}
	return fields
}

func withFields(l types.Logger, fields ...zap.Field) types.Logger {
	if len(fields) == 0 {
		return l
	}
	if fl, ok := l.(fieldLogger); ok {
		return fl.With(fields...)
	}
	return l
}

// Named returns a child logger tagged with the component name. Loggers that
// cannot carry fields are returned as is.
func (m *Manager) Named(component string) types.Logger {
	if nl, ok := m.logger.(namedLogger); ok {
		return nl.Named(component)
	}
	return m.logger
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	m.setState(StateRunning)
	m.logger.Debug("Logger started", zap.String("type", m.kind), zap.String("level", m.level))
	return nil
}

// Stop flushes buffered entries. A flush that outlives flushTimeout is
// abandoned and reported.
func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		m.setState(StateStopped)
		m.cancel()
	}()

	s, ok := m.logger.(syncer)
	if !ok {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Sync() }()

	select {
	case err := <-done:
		if err != nil && !isConsoleSyncError(err) {
			return types.WrapError(err, "failed to flush logger")
		}
		return nil
	case <-time.After(m.flushTimeout):
		return types.Errorf(types.ErrLoggerFlushTimeout, "exceeded %s", m.flushTimeout)
	}
}

// isConsoleSyncError matches the errors fsync returns for terminals and pipes.
func isConsoleSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

func (m *Manager) Error(msg string, fields ...zap.Field) {
	m.logger.Error(msg, fields...)
}

func (m *Manager) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	m.logger.ErrorWithErrStack(msg, err, fields...)
}

func (m *Manager) Warn(msg string, fields ...zap.Field) {
	m.logger.Warn(msg, fields...)
}

func (m *Manager) Info(msg string, fields ...zap.Field) {
	m.logger.Info(msg, fields...)
}

func (m *Manager) Debug(msg string, fields ...zap.Field) {
	m.logger.Debug(msg, fields...)
}

func (m *Manager) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	m.logger.Log(lvl, msg, fields...)
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

func createLogger(kind string, loggerConfig *types.LoggerConfig) (types.Logger, error) {
	switch kind {
	case TypeDefault:
		return NewDefaultLogger(loggerConfig)
	case TypeNop:
		return NewNop(), nil
	}

	creator, exists := customLoggerCreators[kind]
	if !exists {
		return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger type: %s", kind)
	}
	return creator(loggerConfig.Config)
}
