package bridge

import (
	"encoding/json"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const (
	TypeZone         = "zone"
	TypeEntities     = "entities"
	TypeRoster       = "roster"
	TypeSurface      = "surface"
	TypeSurfaceEvent = "surface_event"
	TypeLocations    = "locations"
	TypeJobs         = "jobs"
	TypeContextAdd   = "context_add"
	TypeFrame        = "frame"

	TypeDisplay = "display"
	TypeResult  = "result"
	TypeError   = "error"
	TypeHello   = "hello"
)

// Message is the envelope for both directions; Data is decoded per Type.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ZoneData struct {
	Competitive bool `json:"competitive"`
	LoggedIn    bool `json:"logged_in"`
}

type EntitiesData struct {
	Entities []types.Entity `json:"entities"`
}

type RosterData struct {
	Ready   bool                `json:"ready"`
	Entries []types.RosterEntry `json:"entries"`
	Error   string              `json:"error,omitempty"`
}

type SurfaceData struct {
	Name      string   `json:"name"`
	Open      bool     `json:"open"`
	Fragments []string `json:"fragments"`
}

type SurfaceEventData struct {
	Name  string `json:"name"`
	Event string `json:"event"`
}

type LocationsData struct {
	Locations []types.Location `json:"locations"`
}

type JobsData struct {
	Jobs []types.Job `json:"jobs"`
}

type ContextAddData struct {
	EntityID uint64 `json:"entity_id"`
}

type DisplayData struct {
	Entities []types.EntityDisplay `json:"entities"`
}

type ResultData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HelloData struct {
	SessionID string `json:"session_id"`
	Version   string `json:"version"`
}
