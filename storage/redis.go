package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type RedisConfig struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	Password           string `json:"password"`
	DB                 int    `json:"db"`
	PoolSize           int    `json:"pool_size"`
	MinIdleConnections int    `json:"min_idle_connections"`
	DialTimeoutMs      int    `json:"dial_timeout_ms"`
	ReadTimeoutMs      int    `json:"read_timeout_ms"`
	WriteTimeoutMs     int    `json:"write_timeout_ms"`
	KeyPrefix          string `json:"key_prefix"`
}

type RedisStore struct {
	ctx    context.Context
	logger types.Logger
	config *RedisConfig
	client *redis.Client
}

func NewRedisStore(ctx context.Context, logger types.Logger, config *types.StorageConfig) (types.StorageManager, error) {
	var redisConfig = &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		PoolSize:           4,
		MinIdleConnections: 1,
		DialTimeoutMs:      5000,
		ReadTimeoutMs:      3000,
		WriteTimeoutMs:     3000,
		KeyPrefix:          "friendlyfire",
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis storage config")
		}
	}

	return &RedisStore{ctx: ctx, logger: logger, config: redisConfig}, nil
}

func (r *RedisStore) Start() error {
	r.client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", r.config.Host, r.config.Port),
		Password:     r.config.Password,
		DB:           r.config.DB,
		PoolSize:     r.config.PoolSize,
		MinIdleConns: r.config.MinIdleConnections,
		DialTimeout:  time.Duration(r.config.DialTimeoutMs) * time.Millisecond,
		ReadTimeout:  time.Duration(r.config.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(r.config.WriteTimeoutMs) * time.Millisecond,
	})

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		_ = r.client.Close()
		r.client = nil
		return types.WrapError(types.ErrStorageConnectionFailed, err.Error())
	}

	r.logger.Info("Redis storage connected", zap.String("host", r.config.Host), zap.Int("port", r.config.Port))
	return nil
}

func (r *RedisStore) Stop() error {
	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil {
		return types.WrapError(err, "failed to close redis client")
	}
	return nil
}

func (r *RedisStore) IsRunning() bool {
	return r.client != nil
}

func (r *RedisStore) Load(ctx context.Context) (*types.Settings, error) {
	if r.client == nil {
		return nil, types.ErrStorageNotRunning
	}

	result, err := r.client.Get(ctx, r.key()).Bytes()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return nil, types.ErrSettingsNotFound
		}
		return nil, types.WrapError(err, "failed to get settings")
	}

	return decodeSettings(result)
}

func (r *RedisStore) Save(ctx context.Context, settings *types.Settings) error {
	if r.client == nil {
		return types.ErrStorageNotRunning
	}

	data, err := encodeSettings(settings)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key(), data, 0).Err(); err != nil {
		return types.WrapError(err, "failed to set settings")
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if r.client == nil {
		return types.ErrStorageNotRunning
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) key() string {
	if r.config.KeyPrefix == "" {
		return "settings"
	}
	return r.config.KeyPrefix + ":settings"
}
