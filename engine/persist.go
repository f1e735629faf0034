package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

func (e *Engine) Snapshot() *types.Settings {
	policy := e.policy
	return &types.Settings{
		Version:            types.SettingsVersion,
		CacheEntries:       e.cache.Entries(),
		ManualEntries:      e.manual.Entries(),
		AllowListIDs:       e.allow.IDs(),
		Policy:             &policy,
		TTLDays:            e.ttlDays,
		ShowFirstRunNotice: e.showFirstRunNotice,
		SavedAt:            e.now().Unix(),
	}
}

// Restore replaces engine state with the persisted record. A missing record
// keeps the configured defaults.
func (e *Engine) Restore(ctx context.Context) error {
	if e.storage == nil {
		return nil
	}

	settings, err := e.storage.Load(ctx)
	if err != nil {
		if types.IsError(err, types.ErrSettingsNotFound) {
			e.logger.Info("No persisted friend settings, starting empty")
			return nil
		}
		return types.WrapError(err, "failed to load friend settings")
	}

	e.Apply(settings)
	return nil
}

func (e *Engine) Apply(settings *types.Settings) {
	if settings == nil {
		return
	}

	dropped := e.cache.Load(settings.CacheEntries)
	e.manual.Replace(settings.ManualEntries)
	cleaned := e.manual.Clean()
	e.allow.Replace(settings.AllowListIDs)

	if settings.Policy != nil {
		e.policy = *settings.Policy
	}
	if settings.TTLDays != 0 {
		e.ttlDays = settings.TTLDays
	}
	e.showFirstRunNotice = settings.ShowFirstRunNotice

	e.logger.Info("Friend settings restored",
		zap.Int("cache_entries", e.cache.Len()),
		zap.Int("cache_dropped", dropped),
		zap.Int("manual_entries", e.manual.Len()),
		zap.Int("manual_dropped", cleaned),
		zap.Int("allow_list_ids", e.allow.Len()))
}

// Save persists a snapshot and returns the storage error.
func (e *Engine) Save(ctx context.Context) error {
	if e.storage == nil {
		return nil
	}

	err := e.storage.Save(ctx, e.Snapshot())
	e.countSave(err)
	return err
}

// save is the fire-and-forget variant used after mutations: a failed write
// never fails the operation that triggered it.
func (e *Engine) save() {
	if e.storage == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
	defer cancel()

	if err := e.Save(ctx); err != nil {
		e.logger.Warn("Failed to persist friend settings", zap.Error(err))
	}
}

func (e *Engine) countSave(err error) {
	if e.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	e.metrics.Counter("settings_saves_total", map[string]string{
		"result": result,
	}).Inc()
}
