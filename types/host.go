package types

type EntitySource interface {
	VisibleEntities() []Entity
}

type RosterSource interface {
	Roster() (entries []RosterEntry, ready bool, err error)
}

type SurfaceReader interface {
	TextFragments(surface string) ([]string, bool)
}

type ZoneState interface {
	InCompetitiveZone() bool
	LoggedIn() bool
}

type Host interface {
	EntitySource
	RosterSource
	SurfaceReader
	ZoneState
}
