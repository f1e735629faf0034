package types

import (
	"context"
)

const SettingsVersion = 1

type Settings struct {
	Version            int           `json:"version" yaml:"version"`
	CacheEntries       []CacheEntry  `json:"cache_entries" yaml:"cache_entries"`
	ManualEntries      []ManualEntry `json:"manual_entries" yaml:"manual_entries"`
	AllowListIDs       []uint64      `json:"allow_list_ids" yaml:"allow_list_ids"`
	Policy             *Policy       `json:"policy,omitempty" yaml:"policy,omitempty"`
	TTLDays            int           `json:"ttl_days" yaml:"ttl_days"`
	ShowFirstRunNotice bool          `json:"show_first_run_notice" yaml:"show_first_run_notice"`
	SavedAt            int64         `json:"saved_at" yaml:"saved_at"`
}

type SettingsStore interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

type StorageManager interface {
	LifecycleManager
	SettingsStore
	Ping(ctx context.Context) error
}

type StorageManagerCreator func(config interface{}) (StorageManager, error)
