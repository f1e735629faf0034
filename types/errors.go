package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
	ErrConfigNotLoaded      = errors.New("config not loaded")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrServerStopFailed     = errors.New("server stop failed")
	ErrAuthTokenInvalid     = errors.New("auth token invalid")
	ErrBadRequest           = errors.New("bad request")
	ErrServerIsDisabled     = errors.New("server is disabled")
	ErrPathNotFound         = errors.New("path not found")
	ErrMethodNotAllowed     = errors.New("method not allowed")
)

var (
	ErrStorageTypeUnknown      = errors.New("storage type unknown")
	ErrStorageNotRunning       = errors.New("storage not running")
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageConfigInvalid    = errors.New("storage config invalid")
	ErrSettingsNotFound        = errors.New("settings not found")
	ErrSettingsCorrupted       = errors.New("settings corrupted")
)

var (
	ErrEmptyName         = errors.New("name is empty")
	ErrUnknownLocation   = errors.New("unknown location")
	ErrManualEntryExists = errors.New("manual entry exists")
	ErrManualEntryAbsent = errors.New("manual entry not found")
	ErrInvalidStableID   = errors.New("invalid stable id")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrLocationsFile     = errors.New("locations file invalid")
)

var (
	ErrSeedSourceUnavailable = errors.New("seed source unavailable")
	ErrSeedPanicked          = errors.New("seed read panicked")
)

var (
	ErrBridgeNotRunning     = errors.New("bridge not running")
	ErrBridgeMessageInvalid = errors.New("bridge message invalid")
	ErrBridgeNotConnected   = errors.New("bridge not connected")
	ErrBridgeIsDisabled     = errors.New("bridge is disabled")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronSchedulerStopped  = errors.New("cron scheduler stopped")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobTimeout        = errors.New("cron job timeout")
	ErrCronIsDisabled        = errors.New("cron is disabled")
)

var (
	ErrMetricsTypeUnknown   = errors.New("metrics type unknown")
	ErrMetricsConfigInvalid = errors.New("metrics config invalid")
	ErrMetricsIsDisabled    = errors.New("metrics manager is disabled")
	ErrMetricsNotRunning    = errors.New("metrics manager is not running")
)

var (
	ErrHealthCheckFailed  = errors.New("health check failed")
	ErrHealthCheckTimeout = errors.New("health check timeout")
	ErrHealthIsNotRunning = errors.New("health manager is not running")
	ErrHealthIsDisabled   = errors.New("health manager is disabled")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
	ErrLoggerFlushTimeout  = errors.New("logger flush timeout")
)

var (
	ErrServiceIsRunning     = errors.New("service is running")
	ErrServiceIsNotRunning  = errors.New("service is not running")
	ErrComponentStartFailed = errors.New("component start failed")
	ErrComponentStopFailed  = errors.New("component stop failed")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrOperationFailed  = errors.New("operation failed")
	ErrInternalError    = errors.New("internal error")
	ErrInvalidState     = errors.New("invalid state")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
