// Package paths is a memoized unweighted shortest-path oracle over a graph.Store.
package paths

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// Infinity is the distance between unreachable nodes.
const Infinity = math.MaxInt

// unreachable marks a memoized pair with no path.
const unreachable int32 = -1

// Stats reports memo effectiveness.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Entries  int   `json:"entries"`
	Complete int   `json:"complete_anchors"`
}

// Cache memoizes hop distances. Every BFS records the distance to every node it
// visits, not just the queried target. The graph is immutable so entries are never
// invalidated. A Cache is safe for concurrent use; writes are idempotent.
type Cache struct {
	g *graph.Store

	mu   sync.RWMutex
	memo map[uint64]int32
	// complete holds anchors whose BFS ran to exhaustion: any pair missing from
	// memo is unreachable.
	complete map[uint32]struct{}

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty cache bound to g.
func New(g *graph.Store) *Cache {
	return &Cache{
		g:        g,
		memo:     make(map[uint64]int32),
		complete: make(map[uint32]struct{}),
	}
}

// Graph returns the store the cache answers for.
func (c *Cache) Graph() *graph.Store { return c.g }

func (c *Cache) key(a, b uint32) uint64 {
	if !c.g.Directed() && a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// lookupLocked must be called with at least the read lock held.
func (c *Cache) lookupLocked(a, b uint32) (int, bool) {
	if a == b {
		return 0, true
	}
	if d, ok := c.memo[c.key(a, b)]; ok {
		if d == unreachable {
			return Infinity, true
		}
		return int(d), true
	}
	if comp := c.g.Components(); comp[a] != comp[b] {
		return Infinity, true
	}
	if _, ok := c.complete[a]; ok {
		return Infinity, true
	}
	if !c.g.Directed() {
		if _, ok := c.complete[b]; ok {
			return Infinity, true
		}
	}
	return 0, false
}

func (c *Cache) lookup(a, b uint32) (int, bool) {
	c.mu.RLock()
	d, ok := c.lookupLocked(a, b)
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	}
	return d, ok
}

// record writes forward distances from a, backward distances to b (may be nil)
// and exhaustion markers in one critical section.
func (c *Cache) record(a uint32, fromA map[uint32]int32, b uint32, toB map[uint32]int32, completeA, completeB bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for v, d := range fromA {
		c.memo[c.key(a, v)] = d
	}
	for v, d := range toB {
		c.memo[c.key(v, b)] = d
	}
	if completeA {
		c.complete[a] = struct{}{}
	}
	if completeB {
		c.complete[b] = struct{}{}
	}
}

// Distance returns the hop distance from a to b, or Infinity.
func (c *Cache) Distance(a, b string) (int, error) {
	ia, ib, err := c.pair(a, b)
	if err != nil {
		return 0, err
	}
	return c.DistanceIndex(ia, ib), nil
}

// DistanceIndex is Distance by dense index.
func (c *Cache) DistanceIndex(a, b uint32) int {
	if d, ok := c.lookup(a, b); ok {
		return d
	}
	c.misses.Add(1)
	d, _ := c.search(a, b, false)
	return d
}

// Path returns one shortest path from a to b inclusive, or nil when unreachable.
func (c *Cache) Path(a, b string) ([]string, error) {
	ia, ib, err := c.pair(a, b)
	if err != nil {
		return nil, err
	}
	p := c.PathIndex(ia, ib)
	if p == nil {
		return nil, nil
	}
	return c.g.IDs(p), nil
}

// PathIndex is Path by dense index.
func (c *Cache) PathIndex(a, b uint32) []uint32 {
	if a == b {
		return []uint32{a}
	}
	if d, ok := c.lookup(a, b); ok && d == Infinity {
		return nil
	}
	c.misses.Add(1)
	_, p := c.search(a, b, true)
	return p
}

// DistancesFrom runs at most one BFS from a and stops once every target is resolved.
// Unreachable targets map to Infinity.
func (c *Cache) DistancesFrom(a string, targets []string) (map[string]int, error) {
	ia, err := c.index(a)
	if err != nil {
		return nil, err
	}
	it, err := c.g.Indexes(targets)
	if err != nil {
		return nil, err
	}
	d := c.DistancesFromIndex(ia, it)
	out := make(map[string]int, len(targets))
	for i, t := range targets {
		out[t] = d[i]
	}
	return out, nil
}

// DistancesFromIndex returns distances aligned with targets.
func (c *Cache) DistancesFromIndex(a uint32, targets []uint32) []int {
	out := make([]int, len(targets))
	pending := make(map[uint32][]int)

	c.mu.RLock()
	for i, t := range targets {
		if d, ok := c.lookupLocked(a, t); ok {
			out[i] = d
			continue
		}
		pending[t] = append(pending[t], i)
	}
	c.mu.RUnlock()

	if len(pending) == 0 {
		c.hits.Add(1)
		return out
	}
	c.misses.Add(1)

	dist := map[uint32]int32{a: 0}
	queue := []uint32{a}
	for len(queue) > 0 && len(pending) > 0 {
		cur := queue[0]
		queue = queue[1:]
		// cur is always expanded fully, so an empty queue means the BFS is exhaustive.
		for _, nb := range c.g.NeighborIndexes(cur) {
			if _, seen := dist[nb]; seen {
				continue
			}
			d := dist[cur] + 1
			dist[nb] = d
			queue = append(queue, nb)
			if slots, ok := pending[nb]; ok {
				for _, i := range slots {
					out[i] = int(d)
				}
				delete(pending, nb)
			}
		}
	}
	for _, slots := range pending {
		for _, i := range slots {
			out[i] = Infinity
		}
	}

	c.record(a, dist, 0, nil, len(queue) == 0, false)
	return out
}

// search is a level-synchronous bidirectional BFS. The smaller frontier expands a
// full level at a time; once a level produces a meeting node, the minimum candidate
// over that level is the exact distance.
func (c *Cache) search(a, b uint32, wantPath bool) (int, []uint32) {
	if a == b {
		return 0, []uint32{a}
	}

	distF := map[uint32]int32{a: 0}
	distB := map[uint32]int32{b: 0}
	var parentF, parentB map[uint32]uint32
	if wantPath {
		parentF = make(map[uint32]uint32)
		parentB = make(map[uint32]uint32)
	}
	frontF := []uint32{a}
	frontB := []uint32{b}

	best := Infinity
	var meet uint32

	expand := func(front []uint32, dist, other map[uint32]int32, parent map[uint32]uint32, next func(uint32) []uint32) []uint32 {
		var nextFront []uint32
		for _, cur := range front {
			for _, nb := range next(cur) {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = dist[cur] + 1
				if parent != nil {
					parent[nb] = cur
				}
				nextFront = append(nextFront, nb)
				if od, ok := other[nb]; ok {
					if cand := int(dist[nb] + od); cand < best {
						best = cand
						meet = nb
					}
				}
			}
		}
		return nextFront
	}

	for len(frontF) > 0 && len(frontB) > 0 && best == Infinity {
		if len(frontF) <= len(frontB) {
			frontF = expand(frontF, distF, distB, parentF, c.g.NeighborIndexes)
		} else {
			frontB = expand(frontB, distB, distF, parentB, c.g.PredecessorIndexes)
		}
	}

	completeA := best == Infinity && len(frontF) == 0
	completeB := best == Infinity && len(frontB) == 0 && !c.g.Directed()
	c.record(a, distF, b, distB, completeA, completeB)

	c.mu.Lock()
	if best == Infinity {
		c.memo[c.key(a, b)] = unreachable
	} else {
		c.memo[c.key(a, b)] = int32(best)
	}
	c.mu.Unlock()
	if best == Infinity {
		return Infinity, nil
	}

	if !wantPath {
		return best, nil
	}

	// a ... meet
	var path []uint32
	for v := meet; ; v = parentF[v] {
		path = append(path, v)
		if v == a {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	// meet ... b
	for v := meet; v != b; {
		v = parentB[v]
		path = append(path, v)
	}
	return best, path
}

// Reset drops every memo entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo = make(map[uint64]int32)
	c.complete = make(map[uint32]struct{})
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Entries:  len(c.memo),
		Complete: len(c.complete),
	}
}

func (c *Cache) index(id string) (uint32, error) {
	idx, ok := c.g.Index(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return idx, nil
}

func (c *Cache) pair(a, b string) (uint32, uint32, error) {
	ia, err := c.index(a)
	if err != nil {
		return 0, 0, err
	}
	ib, err := c.index(b)
	if err != nil {
		return 0, 0, err
	}
	return ia, ib, nil
}
