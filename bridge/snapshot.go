package bridge

import (
	"errors"
	"sync"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type surfaceState struct {
	open      bool
	fragments []string
}

// Snapshot holds the latest host state pushed by the game-side shim. Reads
// return copies and never block on the connection.
type Snapshot struct {
	mu          sync.RWMutex
	competitive bool
	loggedIn    bool
	entities    []types.Entity
	roster      []types.RosterEntry
	rosterReady bool
	rosterErr   error
	surfaces    map[string]surfaceState
}

func NewSnapshot() *Snapshot {
	return &Snapshot{surfaces: make(map[string]surfaceState)}
}

func (s *Snapshot) VisibleEntities() []types.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]types.Entity(nil), s.entities...)
}

func (s *Snapshot) Roster() ([]types.RosterEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rosterErr != nil {
		return nil, false, s.rosterErr
	}
	return append([]types.RosterEntry(nil), s.roster...), s.rosterReady, nil
}

func (s *Snapshot) TextFragments(surface string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.surfaces[surface]
	if !ok || !state.open {
		return nil, false
	}
	return append([]string(nil), state.fragments...), true
}

func (s *Snapshot) InCompetitiveZone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.competitive
}

func (s *Snapshot) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

func (s *Snapshot) SetZone(competitive, loggedIn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.competitive = competitive
	s.loggedIn = loggedIn
	if !loggedIn {
		s.entities = nil
		s.roster = nil
		s.rosterReady = false
	}
}

func (s *Snapshot) SetEntities(entities []types.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append([]types.Entity(nil), entities...)
}

func (s *Snapshot) SetRoster(entries []types.RosterEntry, ready bool, failure string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster = append([]types.RosterEntry(nil), entries...)
	s.rosterReady = ready
	s.rosterErr = nil
	if failure != "" {
		s.rosterErr = errors.New(failure)
	}
}

// SetSurface records a surface's fragments and reports whether it just
// transitioned from closed to open.
func (s *Snapshot) SetSurface(name string, open bool, fragments []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.surfaces[name]
	s.surfaces[name] = surfaceState{open: open, fragments: append([]string(nil), fragments...)}
	return open && !previous.open
}

// Reset forgets everything, as if the player logged out.
func (s *Snapshot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.competitive = false
	s.loggedIn = false
	s.entities = nil
	s.roster = nil
	s.rosterReady = false
	s.rosterErr = nil
	s.surfaces = make(map[string]surfaceState)
}
