package service

import (
	"context"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/config"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/storage"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

// SeedEntry is one row of a seed file. Location may be given as a label
// instead of an id.
type SeedEntry struct {
	Name       string `yaml:"name"`
	Location   string `yaml:"location"`
	LocationID uint16 `yaml:"location_id"`
	StableID   uint64 `yaml:"stable_id"`
}

type seedFile struct {
	Entries []SeedEntry `yaml:"entries"`
}

// Offline opens the persisted friend settings without any live surface, for
// the maintenance commands.
type Offline struct {
	logger  types.Logger
	storage types.StorageManager
	engine  *engine.Engine
}

func OpenOffline(ctx context.Context, configManager types.ConfigManager, logger types.Logger) (*Offline, error) {
	_config := configManager.GetConfig()

	store, err := storage.NewManager(ctx, configManager, logger, nil)
	if err != nil {
		return nil, types.WrapError(err, "failed to register storage")
	}
	if err := store.Start(); err != nil {
		return nil, types.WrapError(err, "failed to start storage")
	}

	policy := types.Policy{}
	if _config.Policy != nil {
		policy = *_config.Policy
	}

	e := engine.New(_config.Friends, policy, engine.Dependencies{
		Storage:   store,
		Locations: normalize.NewLocationTable(_config.Locations),
		Jobs:      _config.Jobs,
		Logger:    logger,
	})

	if err := e.Restore(ctx); err != nil {
		_ = store.Stop()
		return nil, err
	}

	return &Offline{logger: logger, storage: store, engine: e}, nil
}

// OpenOfflineFromFile loads the config at path and opens its settings.
func OpenOfflineFromFile(ctx context.Context, path string, logger types.Logger) (*Offline, error) {
	configManager, err := config.NewConfigurationManager(ctx, path)
	if err != nil {
		return nil, err
	}
	return OpenOffline(ctx, configManager, logger)
}

func (o *Offline) Engine() *engine.Engine {
	return o.engine
}

func (o *Offline) Settings() *types.Settings {
	return o.engine.Snapshot()
}

// Import adds or touches every seed entry and reports how many were new.
func (o *Offline) Import(entries []SeedEntry) (added int) {
	for _, entry := range entries {
		locationID := entry.LocationID
		if locationID == normalize.UnknownLocation && entry.Location != "" {
			locationID = o.engine.ResolveLocation(entry.Location)
			if locationID == normalize.UnknownLocation {
				o.logger.Warn("Seed entry location not recognised, keeping it location-less",
					zap.String("name", entry.Name),
					zap.String("location", entry.Location))
			}
		}

		if o.engine.AddOrTouch(entry.Name, locationID, entry.StableID) {
			added++
		}
	}
	return added
}

func (o *Offline) Close(ctx context.Context) error {
	saveErr := o.engine.Save(ctx)
	stopErr := o.storage.Stop()

	if saveErr != nil {
		return types.WrapError(saveErr, "failed to save friend settings")
	}
	return stopErr
}

// Discard releases the storage without writing.
func (o *Offline) Discard() error {
	return o.storage.Stop()
}

func LoadSeedFile(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(err, "failed to read seed file")
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "seed file %s: %v", path, err)
	}
	return file.Entries, nil
}
