package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.Errorf(types.ErrConfigNotFound, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	config, err := l.Parse(data)
	if err != nil {
		return nil, err
	}

	if config.LocationsFile != "" {
		path := config.LocationsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(configPath), path)
		}

		locations, err := normalize.LoadLocationsFile(path)
		if err != nil {
			return nil, err
		}
		config.Locations = append(config.Locations, locations...)
	}

	if err := l.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Parse decodes YAML on top of Defaults without validating.
func (l *Loader) Parse(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	return config, nil
}

func (l *Loader) Validate(config *types.ServiceConfig) error {
	if config == nil {
		return types.ErrConfigIsNil
	}

	if err := l.validator.Struct(config); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "friendlyfire",
		Version: "1.0.0",
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Friends: &types.FriendsConfig{
			TTLDays:         90,
			TouchInterval:   60 * time.Second,
			ObserveInterval: 5 * time.Second,
			TrimInterval:    60 * time.Second,
			PollInterval:    30 * time.Second,
			SaveTimeout:     5 * time.Second,
			SeedDelays:      []time.Duration{350 * time.Millisecond, 8 * time.Second},
			SeedDebounce:    time.Second,
			SeedTolerance:   300 * time.Millisecond,
			MaxSeedsPerTick: 3,
			ScrapeWindows:   []int{6, 5, 4, 3},
			Surface:         "FriendList",
		},
		Policy: &types.Policy{
			ShowFriendsReal:       true,
			UseCacheInCompetitive: true,
			ShowRoleTag:           true,
		},
		Storage: &types.StorageConfig{
			Type: "memory",
		},
		Cron: &types.CronConfig{
			Enabled:  true,
			Timezone: "UTC",
			Tick:     "@every 1s",
		},
		Metrics: &types.MetricsConfig{
			Enabled: false,
			Type:    "memory",
		},
		Health: &types.HealthConfig{
			Enabled: true,
		},
		Server: &types.ServerConfig{
			Enabled: false,
			HTTP: &types.HTTPConfig{
				Host:            "127.0.0.1",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 10,
			},
			Auth: &types.AuthConfig{
				Enabled: false,
			},
		},
		Bridge: &types.BridgeConfig{
			Enabled:      false,
			Host:         "127.0.0.1",
			Port:         8765,
			Path:         "/bridge",
			ReadLimit:    1 << 20,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}
