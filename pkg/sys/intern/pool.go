// Package intern maps repeated strings (categories, predicates) to dense symbol ids.
package intern

import "sync"

// Pool is a string table. IDs are 1-based so 0 can act as a sentinel.
type Pool struct {
	mu      sync.RWMutex
	store   map[string]uint32
	reverse []string
}

const InvalidID uint32 = 0

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		store:   make(map[string]uint32),
		reverse: make([]string, 0, 64),
	}
}

// ID returns the symbol for s, allocating one if necessary.
func (p *Pool) ID(s string) uint32 {
	if s == "" {
		return InvalidID
	}

	p.mu.RLock()
	id, ok := p.store[s]
	p.mu.RUnlock()
	if ok {
		return id
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check
	if id, ok := p.store[s]; ok {
		return id
	}

	// reverse[id-1] holds the string.
	p.reverse = append(p.reverse, s)
	id = uint32(len(p.reverse))
	p.store[s] = id
	return id
}

// Lookup returns the symbol for s without allocating.
func (p *Pool) Lookup(s string) (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.store[s]
	return id, ok
}

// String returns the canonical string for id.
func (p *Pool) String(id uint32) string {
	if id == InvalidID {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx := int(id) - 1
	if idx < 0 || idx >= len(p.reverse) {
		return ""
	}
	return p.reverse[idx]
}

// Intern returns the canonical instance of s.
func (p *Pool) Intern(s string) string {
	return p.String(p.ID(s))
}

// Len is the number of symbols.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.reverse)
}
