package normalize

import (
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const (
	UnknownLocation uint16 = 0
	InvalidLocation uint16 = math.MaxUint16
)

func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}

// EqualName compares with simple Unicode case folding, no locale rules.
func EqualName(a, b string) bool {
	return strings.EqualFold(NormalizeName(a), NormalizeName(b))
}

func NameKey(s string) string {
	return strings.ToLower(NormalizeName(s))
}

func ValidLocationID(id uint16) bool {
	return id != UnknownLocation && id != InvalidLocation
}

// SanitizeLocationID folds both sentinels onto UnknownLocation.
func SanitizeLocationID(id uint16) uint16 {
	if !ValidLocationID(id) {
		return UnknownLocation
	}
	return id
}

type LocationTable struct {
	ordered []types.Location
	byID    map[uint16]string
}

func NewLocationTable(locations []types.Location) *LocationTable {
	t := &LocationTable{
		ordered: make([]types.Location, 0, len(locations)),
		byID:    make(map[uint16]string, len(locations)),
	}

	for _, loc := range locations {
		name := NormalizeName(loc.Name)
		if name == "" || !ValidLocationID(loc.ID) {
			continue
		}
		if _, exists := t.byID[loc.ID]; exists {
			continue
		}
		t.byID[loc.ID] = name
		t.ordered = append(t.ordered, types.Location{ID: loc.ID, Name: name})
	}

	return t
}

func (t *LocationTable) Resolve(label string) uint16 {
	if t == nil {
		return UnknownLocation
	}

	label = NormalizeName(label)
	if label == "" {
		return UnknownLocation
	}

	for _, loc := range t.ordered {
		if strings.EqualFold(loc.Name, label) {
			return loc.ID
		}
	}

	return UnknownLocation
}

func (t *LocationTable) Label(id uint16) (string, bool) {
	if t == nil || !ValidLocationID(id) {
		return "", false
	}
	name, ok := t.byID[id]
	return name, ok
}

func (t *LocationTable) Valid(id uint16) bool {
	_, ok := t.Label(id)
	return ok
}

func (t *LocationTable) Locations() []types.Location {
	if t == nil {
		return nil
	}
	out := make([]types.Location, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func (t *LocationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ordered)
}

type locationsDocument struct {
	Locations []types.Location `yaml:"locations"`
}

func LoadLocationsFile(path string) ([]types.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(err, "failed to read locations file")
	}

	var doc locationsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.Errorf(types.ErrLocationsFile, "%s: %v", path, err)
	}

	return doc.Locations, nil
}
