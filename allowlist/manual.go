package allowlist

import (
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

// LocationValidator reports whether a location id resolves to a known location.
type LocationValidator func(locationID uint16) bool

// ManualList holds operator-curated friends. Entries never expire.
type ManualList struct {
	entries []types.ManualEntry
	valid   LocationValidator
}

func NewManualList(valid LocationValidator) *ManualList {
	if valid == nil {
		valid = normalize.ValidLocationID
	}
	return &ManualList{valid: valid}
}

func (m *ManualList) Add(name string, locationID uint16) error {
	name = normalize.NormalizeName(name)
	if name == "" {
		return types.ErrEmptyName
	}

	if !normalize.ValidLocationID(locationID) || !m.valid(locationID) {
		return types.Errorf(types.ErrUnknownLocation, "location id %d", locationID)
	}

	if m.Contains(name, locationID) {
		return types.Errorf(types.ErrManualEntryExists, "%s@%d", name, locationID)
	}

	m.entries = append(m.entries, types.ManualEntry{Name: name, LocationID: locationID})
	return nil
}

func (m *ManualList) Remove(name string, locationID uint16) bool {
	for i, entry := range m.entries {
		if entry.LocationID == locationID && normalize.EqualName(entry.Name, name) {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains matches the name case-insensitively and the location exactly.
func (m *ManualList) Contains(name string, locationID uint16) bool {
	for _, entry := range m.entries {
		if entry.LocationID == locationID && normalize.EqualName(entry.Name, name) {
			return true
		}
	}
	return false
}

// Clean drops entries whose name is empty or whose location no longer resolves.
func (m *ManualList) Clean() int {
	kept := m.entries[:0]
	removed := 0

	for _, entry := range m.entries {
		if normalize.NormalizeName(entry.Name) == "" ||
			!normalize.ValidLocationID(entry.LocationID) ||
			!m.valid(entry.LocationID) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}

	m.entries = kept
	return removed
}

// Replace loads persisted entries without validation; call Clean afterwards.
func (m *ManualList) Replace(entries []types.ManualEntry) {
	m.entries = make([]types.ManualEntry, 0, len(entries))
	for _, entry := range entries {
		entry.Name = normalize.NormalizeName(entry.Name)
		if m.Contains(entry.Name, entry.LocationID) {
			continue
		}
		m.entries = append(m.entries, entry)
	}
}

func (m *ManualList) Entries() []types.ManualEntry {
	out := make([]types.ManualEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *ManualList) Len() int {
	return len(m.entries)
}
