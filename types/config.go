package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name          string         `yaml:"name" json:"name" validate:"required"`
	Version       string         `yaml:"version" json:"version" validate:"required"`
	Logger        *LoggerConfig  `yaml:"logger" json:"logger"`
	Friends       *FriendsConfig `yaml:"friends" json:"friends" validate:"required"`
	Policy        *Policy        `yaml:"policy" json:"policy"`
	Locations     []Location     `yaml:"locations" json:"locations" validate:"dive"`
	LocationsFile string         `yaml:"locations_file" json:"locations_file"`
	Jobs          []Job          `yaml:"jobs" json:"jobs"`
	Storage       *StorageConfig `yaml:"storage" json:"storage" validate:"required"`
	Cron          *CronConfig    `yaml:"cron" json:"cron"`
	Metrics       *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health        *HealthConfig  `yaml:"health" json:"health"`
	Server        *ServerConfig  `yaml:"server" json:"server"`
	Bridge        *BridgeConfig  `yaml:"bridge" json:"bridge"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type FriendsConfig struct {
	TTLDays         int             `yaml:"ttl_days" json:"ttl_days"`
	TouchInterval   time.Duration   `yaml:"touch_interval" json:"touch_interval" validate:"min=0"`
	ObserveInterval time.Duration   `yaml:"observe_interval" json:"observe_interval" validate:"min=0"`
	TrimInterval    time.Duration   `yaml:"trim_interval" json:"trim_interval" validate:"min=0"`
	PollInterval    time.Duration   `yaml:"poll_interval" json:"poll_interval" validate:"min=0"`
	SaveTimeout     time.Duration   `yaml:"save_timeout" json:"save_timeout" validate:"min=0"`
	SeedDelays      []time.Duration `yaml:"seed_delays" json:"seed_delays" validate:"dive,min=0"`
	SeedDebounce    time.Duration   `yaml:"seed_debounce" json:"seed_debounce" validate:"min=0"`
	SeedTolerance   time.Duration   `yaml:"seed_tolerance" json:"seed_tolerance" validate:"min=0"`
	MaxSeedsPerTick int             `yaml:"max_seeds_per_tick" json:"max_seeds_per_tick" validate:"min=1"`
	ScrapeWindows   []int           `yaml:"scrape_windows" json:"scrape_windows" validate:"dive,min=1"`
	Surface         string          `yaml:"surface" json:"surface"`
}

type StorageConfig struct {
	Type   string      `yaml:"type" json:"type" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type CronConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Timezone string `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
	Tick     string `yaml:"tick" json:"tick" validate:"required_if=Enabled true"`
	Save     string `yaml:"save" json:"save"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{}       `yaml:"config" json:"config"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type ServerConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	HTTP    *HTTPConfig `yaml:"http" json:"http"`
	Auth    *AuthConfig `yaml:"auth" json:"auth"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=0,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	TokenHash string `yaml:"token_hash" json:"token_hash" validate:"required_if=Enabled true"`
}

type BridgeConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port" validate:"min=0,max=65535"`
	Path         string        `yaml:"path" json:"path"`
	ReadLimit    int64         `yaml:"read_limit" json:"read_limit" validate:"min=0"`
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval" validate:"min=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"min=0"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	BuildInfo string `json:"build_info"`
}
