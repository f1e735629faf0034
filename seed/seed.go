package seed

import (
	"fmt"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type Sink interface {
	AddOrTouch(name string, locationID uint16, stableID uint64) bool
}

// Observer records visible entities that carry the authoritative friend flag.
type Observer struct{}

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) Observe(entities []types.Entity, sink Sink) int {
	added := 0
	for _, e := range entities {
		if !e.Player || !e.Friend {
			continue
		}
		if sink.AddOrTouch(e.Name, e.HomeLocationID, e.StableID) {
			added++
		}
	}
	return added
}

// RosterReader reads the structured friend roster when the host exposes one.
type RosterReader struct{}

func NewRosterReader() *RosterReader {
	return &RosterReader{}
}

// Read reports available=false when the roster is not ready or empty; that
// is a soft no-op and callers fall back to scraping.
func (r *RosterReader) Read(src types.RosterSource, sink Sink) (added int, available bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			added, available = 0, false
			err = types.Errorf(types.ErrSeedPanicked, "roster: %v", rec)
		}
	}()

	entries, ready, err := src.Roster()
	if err != nil {
		return 0, false, types.WrapError(err, "failed to read roster")
	}
	if !ready || len(entries) == 0 {
		return 0, false, nil
	}

	for _, entry := range entries {
		name := normalize.NormalizeName(entry.Name)
		if name == "" {
			continue
		}

		location := normalize.SanitizeLocationID(entry.CurrentLocationID)
		if location == normalize.UnknownLocation {
			location = normalize.SanitizeLocationID(entry.HomeLocationID)
		}

		if sink.AddOrTouch(name, location, entry.StableID) {
			added++
		}
	}

	return added, true, nil
}

type Candidate struct {
	Name       string `json:"name"`
	LocationID uint16 `json:"location_id"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s@%d", c.Name, c.LocationID)
}
