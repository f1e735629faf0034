package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type staticConfig struct {
	config *types.ServiceConfig
}

func (s *staticConfig) Load() error                                    { return nil }
func (s *staticConfig) GetConfig() *types.ServiceConfig                { return s.config }
func (s *staticConfig) GetValue(_ string, def interface{}) interface{} { return def }
func (s *staticConfig) GetAs(_ string, _ interface{}) error            { return nil }

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("unknown"))
}

func TestManagerLifecycle(t *testing.T) {
	cfg := &staticConfig{config: &types.ServiceConfig{
		Logger: &types.LoggerConfig{Type: "nop"},
	}}

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrServerAlreadyRunning)

	m.Info("hello", zap.String("k", "v"))

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
}

func TestManagerRejectsUnknownType(t *testing.T) {
	cfg := &staticConfig{config: &types.ServiceConfig{
		Logger: &types.LoggerConfig{Type: "carrier-pigeon"},
	}}

	_, err := NewManager(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrLoggerTypeUnknown)
}

func TestRegisterLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	RegisterLogger("observed", func(_ interface{}) (types.Logger, error) {
		return NewZapWrapper(zap.New(core)), nil
	})

	cfg := &staticConfig{config: &types.ServiceConfig{
		Logger: &types.LoggerConfig{Type: "observed"},
	}}

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)

	m.Warn("Friend seed panicked", zap.String("source", "roster"))

	entries := logs.FilterMessage("Friend seed panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "roster", entries[0].ContextMap()["source"])
}

func TestManagerTagsServiceAndComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	RegisterLogger("tagged", func(_ interface{}) (types.Logger, error) {
		return NewZapWrapper(zap.New(core, zap.AddCaller())), nil
	})

	cfg := &staticConfig{config: &types.ServiceConfig{
		Name:    "friendlyfire",
		Version: "1.2.3",
		Logger:  &types.LoggerConfig{Type: "tagged"},
	}}

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)

	m.Info("Service started")
	m.Named("engine").Warn("Friend seed panicked", zap.String("source", "scrape"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "friendlyfire", entries[0].ContextMap()["service"])
	assert.Equal(t, "1.2.3", entries[0].ContextMap()["version"])
	assert.NotContains(t, entries[0].ContextMap(), "component")

	assert.Equal(t, "engine", entries[1].ContextMap()["component"])
	assert.Equal(t, "friendlyfire", entries[1].ContextMap()["service"])
	assert.Equal(t, "scrape", entries[1].ContextMap()["source"])

	for _, entry := range entries {
		assert.True(t, strings.HasSuffix(entry.Caller.File, "logger_test.go"), entry.Caller.File)
	}
}

func TestBuiltinLoggerTypesCannotBeReplaced(t *testing.T) {
	RegisterLogger(TypeNop, func(_ interface{}) (types.Logger, error) {
		return nil, errors.New("replaced")
	})
	assert.NotContains(t, customLoggerCreators, TypeNop)

	cfg := &staticConfig{config: &types.ServiceConfig{Logger: &types.LoggerConfig{Type: TypeNop}}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, m.Named("engine"))
}

func TestConsoleSyncErrorsAreIgnored(t *testing.T) {
	assert.True(t, isConsoleSyncError(&os.PathError{Op: "sync", Path: "/dev/stdout", Err: syscall.EINVAL}))
	assert.True(t, isConsoleSyncError(&os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.ENOTTY}))
	assert.False(t, isConsoleSyncError(errors.New("disk full")))
}

func TestDefaultLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "friendlyfire.log")

	l, err := NewDefaultLogger(&types.LoggerConfig{
		Level: "debug",
		Config: map[string]interface{}{
			"format": "json",
			"output": "file",
			"file":   path,
		},
	})
	require.NoError(t, err)
	assert.FileExists(t, path)

	l.Info("written")
}

func TestErrorWithErrStack(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var stack bytes.Buffer
	l := &ZapWrapper{Logger: zap.New(core), stackOut: &stack}

	err := types.WrapError(pkgerrors.New("redis down"), "failed to save")
	l.ErrorWithErrStack("Save failed", err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed to save: redis down", entries[0].ContextMap()["error"])
	assert.Contains(t, stack.String(), "ERROR STACK TRACE")

	l.ErrorWithErrStack("No error", nil)
	assert.Len(t, logs.All(), 2)
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		l := NewNop()
		l.Error("x")
		l.ErrorWithErrStack("x", pkgerrors.New("boom"))
	})
}
