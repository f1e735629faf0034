package storage

import (
	"context"
	"sync/atomic"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type CloverConfig struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
}

// CloverStore keeps one document per collection holding the encoded
// settings record.
type CloverStore struct {
	db      *clover.DB
	logger  types.Logger
	config  *CloverConfig
	running int32
}

func NewCloverStore(logger types.Logger, config *types.StorageConfig) (types.StorageManager, error) {
	cloverConfig := &CloverConfig{
		Path:       "friendlyfire-db",
		Collection: "settings",
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, cloverConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal clover storage config")
		}
	}

	if cloverConfig.Path == "" || cloverConfig.Collection == "" {
		return nil, types.Errorf(types.ErrStorageConfigInvalid, "clover path and collection are required")
	}

	return &CloverStore{logger: logger, config: cloverConfig}, nil
}

func (c *CloverStore) Start() error {
	db, err := clover.Open(c.config.Path)
	if err != nil {
		return types.WrapError(err, "failed to open CloverDB")
	}

	exists, err := db.HasCollection(c.config.Collection)
	if err != nil {
		_ = db.Close()
		return types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		if err := db.CreateCollection(c.config.Collection); err != nil {
			_ = db.Close()
			return types.WrapError(err, "failed to create collection")
		}
	}

	c.db = db
	atomic.StoreInt32(&c.running, 1)
	c.logger.Info("CloverDB storage opened", zap.String("path", c.config.Path))
	return nil
}

func (c *CloverStore) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return nil
	}

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close CloverDB")
	}
	return nil
}

func (c *CloverStore) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

func (c *CloverStore) Load(_ context.Context) (*types.Settings, error) {
	if !c.IsRunning() {
		return nil, types.ErrStorageNotRunning
	}

	docs, err := c.db.Query(c.config.Collection).FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to query settings")
	}

	if len(docs) == 0 {
		return nil, types.ErrSettingsNotFound
	}

	payload, ok := docs[0].Get("payload").(string)
	if !ok {
		return nil, types.Errorf(types.ErrSettingsCorrupted, "payload field missing")
	}

	return decodeSettings([]byte(payload))
}

func (c *CloverStore) Save(_ context.Context, settings *types.Settings) error {
	if !c.IsRunning() {
		return types.ErrStorageNotRunning
	}

	data, err := encodeSettings(settings)
	if err != nil {
		return err
	}

	if err := c.db.Query(c.config.Collection).Delete(); err != nil {
		return types.WrapError(err, "failed to clear settings")
	}

	doc := clover.NewDocument()
	doc.Set("payload", string(data))
	doc.Set("saved_at", settings.SavedAt)

	if err := c.db.Insert(c.config.Collection, doc); err != nil {
		return types.WrapError(err, "failed to insert settings")
	}

	return nil
}

func (c *CloverStore) Ping(_ context.Context) error {
	if !c.IsRunning() {
		return types.ErrStorageNotRunning
	}

	if _, err := c.db.HasCollection(c.config.Collection); err != nil {
		return types.WrapError(err, "clover ping failed")
	}
	return nil
}
