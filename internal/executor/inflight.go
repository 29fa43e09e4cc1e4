package executor

import (
	"sort"
	"sync"
)

// InflightSet is the per-symbol in-flight order marker. TryAcquire is an
// atomic check-and-insert: of two callers racing on the same symbol,
// exactly one acquires. Unrelated symbols never block each other.
type InflightSet struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

func NewInflightSet() *InflightSet {
	return &InflightSet{symbols: make(map[string]struct{})}
}

func (s *InflightSet) TryAcquire(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; ok {
		return false
	}
	s.symbols[symbol] = struct{}{}
	return true
}

func (s *InflightSet) Release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.symbols, symbol)
}

func (s *InflightSet) Has(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.symbols[symbol]
	return ok
}

func (s *InflightSet) Symbols() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
