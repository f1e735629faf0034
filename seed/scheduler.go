package seed

import (
	"sort"
	"time"
)

var DefaultDelays = []time.Duration{350 * time.Millisecond, 8 * time.Second}

const (
	DefaultDebounce   = time.Second
	DefaultTolerance  = 300 * time.Millisecond
	DefaultMaxPerTick = 3
)

type SchedulerConfig struct {
	Delays     []time.Duration
	Debounce   time.Duration
	Tolerance  time.Duration
	MaxPerTick int
}

// Scheduler keeps an ordered list of one-shot seed due times.
type Scheduler struct {
	config     SchedulerConfig
	due        []time.Time
	lastNotify time.Time
}

func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Delays == nil {
		config.Delays = DefaultDelays
	}
	if config.Debounce < 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Tolerance < 0 {
		config.Tolerance = DefaultTolerance
	}
	if config.MaxPerTick <= 0 {
		config.MaxPerTick = DefaultMaxPerTick
	}

	return &Scheduler{config: config}
}

// Notify handles a surface opened or refreshed signal. Bursts inside the
// debounce window collapse into the first signal.
func (s *Scheduler) Notify(now time.Time) bool {
	if !s.lastNotify.IsZero() && !now.Before(s.lastNotify) && now.Sub(s.lastNotify) < s.config.Debounce {
		return false
	}
	s.lastNotify = now

	for _, delay := range s.config.Delays {
		s.Schedule(now.Add(delay))
	}
	return true
}

// Schedule ignores a time within tolerance of one already pending.
func (s *Scheduler) Schedule(at time.Time) bool {
	for _, pending := range s.due {
		diff := pending.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff <= s.config.Tolerance {
			return false
		}
	}

	i := sort.Search(len(s.due), func(i int) bool { return s.due[i].After(at) })
	s.due = append(s.due, time.Time{})
	copy(s.due[i+1:], s.due[i:])
	s.due[i] = at
	return true
}

// Due pops at most MaxPerTick entries whose time has passed.
func (s *Scheduler) Due(now time.Time) []time.Time {
	n := 0
	for n < len(s.due) && n < s.config.MaxPerTick && !s.due[n].After(now) {
		n++
	}
	if n == 0 {
		return nil
	}

	popped := make([]time.Time, n)
	copy(popped, s.due[:n])
	s.due = append(s.due[:0], s.due[n:]...)
	return popped
}

func (s *Scheduler) Pending() int {
	return len(s.due)
}

func (s *Scheduler) Clear() {
	s.due = nil
}
