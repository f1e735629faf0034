package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type FileConfig struct {
	Path             string `json:"path"`
	Compress         bool   `json:"compress"`
	CompressionLevel int    `json:"compression_level"`
}

// FileStore writes the settings record to a single file, replacing it
// atomically through a temporary sibling.
type FileStore struct {
	logger types.Logger
	config *FileConfig
	mu     sync.Mutex
}

func NewFileStore(logger types.Logger, config *types.StorageConfig) (types.StorageManager, error) {
	fileConfig := &FileConfig{
		Path:             "friendlyfire.json",
		CompressionLevel: brotli.DefaultCompression,
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, fileConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal file storage config")
		}
	}

	if fileConfig.Path == "" {
		return nil, types.Errorf(types.ErrStorageConfigInvalid, "file storage path is empty")
	}

	if fileConfig.CompressionLevel < brotli.BestSpeed || fileConfig.CompressionLevel > brotli.BestCompression {
		fileConfig.CompressionLevel = brotli.DefaultCompression
	}

	return &FileStore{logger: logger, config: fileConfig}, nil
}

func (f *FileStore) Start() error {
	dir := filepath.Dir(f.config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.WrapError(err, "failed to create settings directory")
	}

	f.logger.Debug("File storage ready", zap.String("path", f.config.Path), zap.Bool("compress", f.config.Compress))
	return nil
}

func (f *FileStore) Stop() error    { return nil }
func (f *FileStore) IsRunning() bool { return true }

func (f *FileStore) Load(_ context.Context) (*types.Settings, error) {
	f.mu.Lock()
	raw, err := os.ReadFile(f.config.Path)
	f.mu.Unlock()

	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrSettingsNotFound
		}
		return nil, types.WrapError(err, "failed to read settings file")
	}

	if f.config.Compress {
		raw, err = io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, types.Errorf(types.ErrSettingsCorrupted, "decompress: %v", err)
		}
	}

	return decodeSettings(raw)
}

func (f *FileStore) Save(_ context.Context, settings *types.Settings) error {
	data, err := encodeSettings(settings)
	if err != nil {
		return err
	}

	if f.config.Compress {
		var buf bytes.Buffer
		writer := brotli.NewWriterLevel(&buf, f.config.CompressionLevel)
		if _, err := writer.Write(data); err != nil {
			return types.WrapError(err, "failed to compress settings")
		}
		if err := writer.Close(); err != nil {
			return types.WrapError(err, "failed to compress settings")
		}
		data = buf.Bytes()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.config.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return types.WrapError(err, "failed to write settings file")
	}

	if err := os.Rename(tmp, f.config.Path); err != nil {
		_ = os.Remove(tmp)
		return types.WrapError(err, "failed to replace settings file")
	}

	return nil
}

func (f *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(f.config.Path))
	if err != nil {
		return types.WrapError(err, "settings directory unavailable")
	}
	if !info.IsDir() {
		return types.Errorf(types.ErrStorageConfigInvalid, "%s is not a directory", filepath.Dir(f.config.Path))
	}
	return nil
}
