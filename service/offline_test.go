package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const seedYAML = `
entries:
  - { name: Rhea Starlight, location: Gilgamesh }
  - { name: Ayla Moon, location_id: 102, stable_id: 555 }
  - { name: Nobody Known, location: Atlantis }
  - { name: "  " }
`

func TestOfflineImportPersists(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o644))

	entries, err := LoadSeedFile(seedPath)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	cm := &staticConfig{config: testConfig(func(c *types.ServiceConfig) {
		c.Storage = &types.StorageConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": filepath.Join(dir, "friends.json")},
		}
	})}

	offline, err := OpenOffline(context.Background(), cm, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, offline.Import(entries))
	assert.Zero(t, offline.Import(entries))
	require.NoError(t, offline.Close(context.Background()))

	reopened, err := OpenOffline(context.Background(), cm, logger.NewNop())
	require.NoError(t, err)
	defer reopened.Close(context.Background())

	settings := reopened.Settings()
	require.Len(t, settings.CacheEntries, 3)

	byName := map[string]types.CacheEntry{}
	for _, entry := range settings.CacheEntries {
		byName[entry.Name] = entry
	}
	assert.Equal(t, uint16(101), byName["Rhea Starlight"].LocationID)
	assert.Equal(t, uint64(555), byName["Ayla Moon"].StableID)
	assert.Equal(t, uint16(0), byName["Nobody Known"].LocationID)
}

func TestLoadSeedFileErrors(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("entries: [oops"), 0o644))
	_, err = LoadSeedFile(path)
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}
