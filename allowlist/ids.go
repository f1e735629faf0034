package allowlist

import (
	"sort"
)

// IDSet holds stable ids confirmed by the operator.
type IDSet struct {
	ids map[uint64]struct{}
}

func NewIDSet(ids ...uint64) *IDSet {
	s := &IDSet{ids: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add ignores the zero id and reports whether the set changed.
func (s *IDSet) Add(id uint64) bool {
	if id == 0 {
		return false
	}
	if _, exists := s.ids[id]; exists {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *IDSet) Remove(id uint64) bool {
	if _, exists := s.ids[id]; !exists {
		return false
	}
	delete(s.ids, id)
	return true
}

func (s *IDSet) Contains(id uint64) bool {
	if id == 0 {
		return false
	}
	_, exists := s.ids[id]
	return exists
}

func (s *IDSet) Replace(ids []uint64) {
	s.ids = make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
}

func (s *IDSet) IDs() []uint64 {
	out := make([]uint64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *IDSet) Len() int {
	return len(s.ids)
}
