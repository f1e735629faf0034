package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

func testTable() *LocationTable {
	return NewLocationTable([]types.Location{
		{ID: 101, Name: "Cactuar"},
		{ID: 102, Name: " Gilgamesh "},
		{ID: 0, Name: "Nowhere"},
		{ID: 65535, Name: "Broken"},
		{ID: 103, Name: ""},
		{ID: 101, Name: "Duplicate"},
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Rhea Starlight", NormalizeName("  Rhea Starlight\t"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestEqualName(t *testing.T) {
	assert.True(t, EqualName("Rhea Starlight", "rhea starlight"))
	assert.True(t, EqualName(" RHEA STARLIGHT ", "rhea starlight"))
	assert.False(t, EqualName("Rhea Starlight", "Rhea Starlite"))
}

func TestValidLocationID(t *testing.T) {
	assert.False(t, ValidLocationID(0))
	assert.False(t, ValidLocationID(65535))
	assert.True(t, ValidLocationID(1))
	assert.Equal(t, UnknownLocation, SanitizeLocationID(65535))
	assert.Equal(t, uint16(42), SanitizeLocationID(42))
}

func TestLocationTable(t *testing.T) {
	table := testTable()

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, uint16(101), table.Resolve("cactuar"))
	assert.Equal(t, uint16(102), table.Resolve("GILGAMESH"))
	assert.Equal(t, uint16(0), table.Resolve("Nowhere"))
	assert.Equal(t, uint16(0), table.Resolve("Broken"))
	assert.Equal(t, uint16(0), table.Resolve(""))

	label, ok := table.Label(102)
	assert.True(t, ok)
	assert.Equal(t, "Gilgamesh", label)

	_, ok = table.Label(65535)
	assert.False(t, ok)

	assert.True(t, table.Valid(101))
	assert.False(t, table.Valid(103))
	assert.False(t, table.Valid(0))
}

func TestNilLocationTable(t *testing.T) {
	var table *LocationTable

	assert.Equal(t, uint16(0), table.Resolve("Cactuar"))
	assert.False(t, table.Valid(101))
	assert.Equal(t, 0, table.Len())
	assert.Nil(t, table.Locations())
}

func TestLoadLocationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yml")
	content := "locations:\n  - id: 101\n    name: Cactuar\n  - id: 102\n    name: Gilgamesh\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	locations, err := LoadLocationsFile(path)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "Gilgamesh", locations[1].Name)

	_, err = LoadLocationsFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
