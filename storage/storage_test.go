package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/metrics"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type staticConfig struct {
	config *types.ServiceConfig
}

func (s *staticConfig) Load() error                                    { return nil }
func (s *staticConfig) GetConfig() *types.ServiceConfig                { return s.config }
func (s *staticConfig) GetValue(_ string, def interface{}) interface{} { return def }
func (s *staticConfig) GetAs(_ string, _ interface{}) error            { return nil }

func sampleSettings() *types.Settings {
	return &types.Settings{
		CacheEntries: []types.CacheEntry{
			{StableID: 777, Name: "Rhea Starlight", LocationID: 101, LastSeen: 1_700_000_000},
			{Name: "Mira Sol", LastSeen: 1_700_000_100},
		},
		ManualEntries: []types.ManualEntry{{Name: "Nia Vale", LocationID: 102}},
		AllowListIDs:  []uint64{777, 18446744073709551615},
		Policy:        &types.Policy{ShowFriendsReal: true, UseCacheInCompetitive: true},
		TTLDays:       30,
		SavedAt:       1_700_000_200,
	}
}

func newStorage(t *testing.T, storageConfig *types.StorageConfig, m types.MetricsManager) types.StorageManager {
	t.Helper()

	sm, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{Storage: storageConfig}}, logger.NewNop(), m)
	require.NoError(t, err)
	require.NoError(t, sm.Start())
	t.Cleanup(func() { _ = sm.Stop() })
	return sm
}

func assertRoundTrip(t *testing.T, sm types.StorageManager) {
	t.Helper()
	ctx := context.Background()

	_, err := sm.Load(ctx)
	assert.ErrorIs(t, err, types.ErrSettingsNotFound)

	require.NoError(t, sm.Save(ctx, sampleSettings()))

	loaded, err := sm.Load(ctx)
	require.NoError(t, err)

	expected := sampleSettings()
	expected.Version = types.SettingsVersion
	assert.Equal(t, expected, loaded)

	updated := sampleSettings()
	updated.ManualEntries = nil
	updated.TTLDays = 7
	require.NoError(t, sm.Save(ctx, updated))

	loaded, err = sm.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.ManualEntries)
	assert.Equal(t, 7, loaded.TTLDays)

	assert.NoError(t, sm.Ping(ctx))
}

func TestNewManagerRejectsUnknownType(t *testing.T) {
	_, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Storage: &types.StorageConfig{Type: "etcd"},
	}}, logger.NewNop(), nil)
	assert.ErrorIs(t, err, types.ErrStorageTypeUnknown)

	_, err = NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{}}, logger.NewNop(), nil)
	assert.ErrorIs(t, err, types.ErrStorageConfigInvalid)
}

func TestManagerRequiresStart(t *testing.T) {
	sm, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Storage: &types.StorageConfig{Type: "memory"},
	}}, logger.NewNop(), nil)
	require.NoError(t, err)

	_, err = sm.Load(context.Background())
	assert.ErrorIs(t, err, types.ErrStorageNotRunning)
	assert.ErrorIs(t, sm.Save(context.Background(), sampleSettings()), types.ErrStorageNotRunning)

	require.NoError(t, sm.Start())
	assert.ErrorIs(t, sm.Start(), types.ErrServerAlreadyRunning)
	assert.ErrorIs(t, sm.Save(context.Background(), nil), types.ErrInvalidParameter)
	require.NoError(t, sm.Stop())
	assert.False(t, sm.IsRunning())
}

func TestMemoryStorage(t *testing.T) {
	assertRoundTrip(t, newStorage(t, &types.StorageConfig{Type: "memory"}, nil))
}

func TestMemoryStorageIsolatesCallers(t *testing.T) {
	sm := newStorage(t, &types.StorageConfig{Type: "memory"}, nil)
	ctx := context.Background()

	settings := sampleSettings()
	require.NoError(t, sm.Save(ctx, settings))
	settings.CacheEntries[0].Name = "Changed"

	loaded, err := sm.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Rhea Starlight", loaded.CacheEntries[0].Name)
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "friendlyfire.json")
	sm := newStorage(t, &types.StorageConfig{Type: "file", Config: map[string]interface{}{"path": path}}, nil)

	assertRoundTrip(t, sm)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Rhea Starlight")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorageCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "friendlyfire.json.br")
	sm := newStorage(t, &types.StorageConfig{Type: "file", Config: map[string]interface{}{
		"path":     path,
		"compress": true,
	}}, nil)

	assertRoundTrip(t, sm)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Rhea Starlight")
}

func TestFileStorageCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "friendlyfire.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	sm := newStorage(t, &types.StorageConfig{Type: "file", Config: map[string]interface{}{"path": path}}, nil)

	_, err := sm.Load(context.Background())
	assert.ErrorIs(t, err, types.ErrSettingsCorrupted)
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	_, err := decodeSettings([]byte(`{"version": 99}`))
	assert.ErrorIs(t, err, types.ErrSettingsCorrupted)

	settings, err := decodeSettings([]byte(`{"ttl_days": 12}`))
	require.NoError(t, err)
	assert.Equal(t, types.SettingsVersion, settings.Version)
	assert.Equal(t, 12, settings.TTLDays)
}

func TestCloverStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clover")
	assertRoundTrip(t, newStorage(t, &types.StorageConfig{Type: "clover", Config: map[string]interface{}{"path": path}}, nil))
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "friendlyfire.db")

	sm, err := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Storage: &types.StorageConfig{Type: "sqlite", Config: map[string]interface{}{"path": path}},
	}}, logger.NewNop(), nil)
	require.NoError(t, err)

	if err := sm.Start(); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer sm.Stop()

	assertRoundTrip(t, sm)
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("FRIENDLYFIRE_TEST_REDIS_HOST")
	if addr == "" {
		t.Skip("FRIENDLYFIRE_TEST_REDIS_HOST not set")
	}

	sm := newStorage(t, &types.StorageConfig{Type: "redis", Config: map[string]interface{}{
		"host":       addr,
		"key_prefix": "friendlyfire-test-" + t.Name(),
	}}, nil)

	assertRoundTrip(t, sm)
}

func TestRegisterStorageManager(t *testing.T) {
	RegisterStorageManager("custom", func(interface{}) (types.StorageManager, error) {
		return NewMemoryStore(logger.NewNop())
	})

	assertRoundTrip(t, newStorage(t, &types.StorageConfig{Type: "custom"}, nil))
}

func TestStorageMetrics(t *testing.T) {
	m, err := metrics.NewMemoryMetrics(logger.NewNop(), &types.MetricsConfig{})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	sm := newStorage(t, &types.StorageConfig{Type: "memory"}, m)
	ctx := context.Background()

	_, _ = sm.Load(ctx)
	require.NoError(t, sm.Save(ctx, sampleSettings()))

	saves := m.Histogram("storage_operation_duration_seconds", nil, map[string]string{"operation": "save"})
	loads := m.Histogram("storage_operation_duration_seconds", nil, map[string]string{"operation": "load"})
	assert.Equal(t, uint64(1), saves.GetCount())
	assert.Equal(t, uint64(1), loads.GetCount())
	assert.Zero(t, m.Counter("storage_errors_total", map[string]string{"operation": "load"}).Get())
}
