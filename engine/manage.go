package engine

import (
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

func (e *Engine) AddManual(name string, locationID uint16) error {
	if err := e.manual.Add(name, locationID); err != nil {
		return err
	}
	e.save()
	return nil
}

func (e *Engine) RemoveManual(name string, locationID uint16) error {
	if !e.manual.Remove(name, locationID) {
		return types.Errorf(types.ErrManualEntryAbsent, "%s@%d", name, locationID)
	}
	e.save()
	return nil
}

func (e *Engine) ManualEntries() []types.ManualEntry {
	return e.manual.Entries()
}

func (e *Engine) CleanManual() int {
	removed := e.manual.Clean()
	if removed > 0 {
		e.save()
	}
	return removed
}

func (e *Engine) AddAllowListID(stableID uint64) error {
	if stableID == 0 {
		return types.ErrInvalidStableID
	}
	if e.allow.Add(stableID) {
		e.save()
	}
	return nil
}

func (e *Engine) RemoveAllowListID(stableID uint64) bool {
	removed := e.allow.Remove(stableID)
	if removed {
		e.save()
	}
	return removed
}

func (e *Engine) AllowListIDs() []uint64 {
	return e.allow.IDs()
}

// AddEntityAsFriend is the context action on a live entity: it records a
// manual entry for the entity's home location and, when known, its stable id.
func (e *Engine) AddEntityAsFriend(entityID uint64) error {
	for _, entity := range e.visibleEntities() {
		if entity.ID == entityID {
			return e.AddAsFriend(entity)
		}
	}
	return types.Errorf(types.ErrEntityNotFound, "entity %d", entityID)
}

func (e *Engine) AddAsFriend(entity types.Entity) error {
	e.manual.Clean()

	name := normalize.NormalizeName(entity.Name)
	if name == "" {
		return types.ErrEmptyName
	}
	if !e.knownLocation(entity.HomeLocationID) {
		return types.Errorf(types.ErrUnknownLocation, "location id %d", entity.HomeLocationID)
	}

	err := e.manual.Add(name, entity.HomeLocationID)
	if err != nil && !types.IsError(err, types.ErrManualEntryExists) {
		return err
	}

	if entity.StableID != 0 {
		e.allow.Add(entity.StableID)
	}

	e.manual.Clean()
	e.save()

	e.logger.Info("Entity added as friend",
		zap.String("name", name),
		zap.Uint16("location_id", entity.HomeLocationID),
		zap.Bool("stable_id", entity.StableID != 0))
	return nil
}

// LookupStableID searches the cache first and then the visible entities.
func (e *Engine) LookupStableID(name string, locationID uint16) uint64 {
	for _, entry := range e.cache.Entries() {
		if entry.StableID != 0 && entry.LocationID == locationID && normalize.EqualName(entry.Name, name) {
			return entry.StableID
		}
	}

	for _, entity := range e.visibleEntities() {
		if entity.StableID != 0 && entity.HomeLocationID == locationID && normalize.EqualName(entity.Name, name) {
			return entity.StableID
		}
	}

	return 0
}

func (e *Engine) Policy() types.Policy {
	return e.policy
}

func (e *Engine) SetPolicy(policy types.Policy) {
	e.policy = policy
	e.save()
}

func (e *Engine) TTLDays() int {
	return e.ttlDays
}

func (e *Engine) SetTTLDays(days int) {
	e.ttlDays = days
	e.save()
}

func (e *Engine) ShowFirstRunNotice() bool {
	return e.showFirstRunNotice
}

func (e *Engine) DismissFirstRunNotice() {
	if e.showFirstRunNotice {
		e.showFirstRunNotice = false
		e.save()
	}
}

func (e *Engine) ResetFirstRunNotice() {
	e.showFirstRunNotice = true
	e.save()
}
