package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type SQLiteConfig struct {
	Path string `json:"path"`
}

const (
	createSettingsTable = `CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		payload BLOB NOT NULL,
		saved_at INTEGER NOT NULL
	)`

	upsertSettings = `INSERT INTO settings (id, version, payload, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, payload = excluded.payload, saved_at = excluded.saved_at`

	selectSettings = `SELECT payload FROM settings WHERE id = 1`
)

type SQLiteStore struct {
	ctx    context.Context
	logger types.Logger
	config *SQLiteConfig
	db     *sql.DB
}

func NewSQLiteStore(ctx context.Context, logger types.Logger, config *types.StorageConfig) (types.StorageManager, error) {
	sqliteConfig := &SQLiteConfig{Path: "friendlyfire.db"}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, sqliteConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal sqlite storage config")
		}
	}

	if sqliteConfig.Path == "" {
		return nil, types.Errorf(types.ErrStorageConfigInvalid, "sqlite path is empty")
	}

	return &SQLiteStore{ctx: ctx, logger: logger, config: sqliteConfig}, nil
}

func (s *SQLiteStore) Start() error {
	db, err := sql.Open("sqlite3", s.config.Path)
	if err != nil {
		return types.WrapError(err, "failed to open sqlite database")
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(s.ctx, createSettingsTable); err != nil {
		_ = db.Close()
		return types.WrapError(err, "failed to create settings table")
	}

	s.db = db
	s.logger.Info("SQLite storage opened", zap.String("path", s.config.Path))
	return nil
}

func (s *SQLiteStore) Stop() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	if err != nil {
		return types.WrapError(err, "failed to close sqlite database")
	}
	return nil
}

func (s *SQLiteStore) IsRunning() bool {
	return s.db != nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*types.Settings, error) {
	if s.db == nil {
		return nil, types.ErrStorageNotRunning
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx, selectSettings).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, types.ErrSettingsNotFound
	}
	if err != nil {
		return nil, types.WrapError(err, "failed to read settings row")
	}

	return decodeSettings(payload)
}

func (s *SQLiteStore) Save(ctx context.Context, settings *types.Settings) error {
	if s.db == nil {
		return types.ErrStorageNotRunning
	}

	data, err := encodeSettings(settings)
	if err != nil {
		return err
	}

	version := settings.Version
	if version == 0 {
		version = types.SettingsVersion
	}

	if _, err := s.db.ExecContext(ctx, upsertSettings, version, data, settings.SavedAt); err != nil {
		return types.WrapError(err, "failed to write settings row")
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return types.ErrStorageNotRunning
	}
	return s.db.PingContext(ctx)
}
