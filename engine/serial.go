package engine

import (
	"sync"
)

// Serial funnels every caller onto one logical thread so the Engine never
// sees concurrent mutation.
type Serial struct {
	mu     sync.Mutex
	engine *Engine
}

func NewSerial(engine *Engine) *Serial {
	return &Serial{engine: engine}
}

func (s *Serial) Do(fn func(e *Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.engine)
}

func Value[T any](s *Serial, fn func(e *Engine) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}
