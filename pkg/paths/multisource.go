package paths

import "github.com/DrSkyle/kgexplain/pkg/graph"

// Voronoi is the result of a multi-source BFS. For every node v, Source[v] is the
// position (in the sources slice) of its nearest source, or -1 if unreachable.
// Dist[v] is the hop distance to that source and Parent[v] the predecessor on the
// path towards it (-1 at sources).
type Voronoi struct {
	Source []int32
	Dist   []int32
	Parent []int32
}

// MultiSourceBFS grows all sources at once. Sources are enqueued in input order, so
// each BFS level is ordered by source position and a node at equal distance from
// two sources is claimed by the earlier one.
func MultiSourceBFS(g *graph.Store, sources []uint32) *Voronoi {
	n := g.Len()
	v := &Voronoi{
		Source: make([]int32, n),
		Dist:   make([]int32, n),
		Parent: make([]int32, n),
	}
	for i := range v.Source {
		v.Source[i] = -1
		v.Parent[i] = -1
	}

	queue := make([]uint32, 0, len(sources))
	for pos, s := range sources {
		if v.Source[s] >= 0 {
			continue
		}
		v.Source[s] = int32(pos)
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.NeighborIndexes(cur) {
			if v.Source[nb] >= 0 {
				continue
			}
			v.Source[nb] = v.Source[cur]
			v.Dist[nb] = v.Dist[cur] + 1
			v.Parent[nb] = int32(cur)
			queue = append(queue, nb)
		}
	}
	return v
}

// PathToSource walks parents from u back to its nearest source, inclusive.
func (v *Voronoi) PathToSource(u uint32) []uint32 {
	if v.Source[u] < 0 {
		return nil
	}
	path := []uint32{u}
	for p := v.Parent[u]; p >= 0; p = v.Parent[p] {
		path = append(path, uint32(p))
	}
	return path
}

// Nearest runs a BFS from every node in sources and stops at the first level that
// contains a node with rank(v) >= 0. Among the nodes on that level the lowest rank
// wins. It returns the winner and the path from it back to the closest source
// (winner first). ok is false when no ranked node is reachable.
func Nearest(g *graph.Store, sources []uint32, rank func(uint32) int) (uint32, []uint32, bool) {
	parent := make(map[uint32]uint32, len(sources))
	seen := make(map[uint32]struct{}, len(sources))
	front := make([]uint32, 0, len(sources))
	for _, s := range sources {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		front = append(front, s)
	}

	for len(front) > 0 {
		var next []uint32
		best, bestRank := uint32(0), -1
		for _, cur := range front {
			for _, nb := range g.NeighborIndexes(cur) {
				if _, ok := seen[nb]; ok {
					continue
				}
				seen[nb] = struct{}{}
				parent[nb] = cur
				next = append(next, nb)
				if r := rank(nb); r >= 0 && (bestRank < 0 || r < bestRank) {
					best, bestRank = nb, r
				}
			}
		}
		if bestRank >= 0 {
			path := []uint32{best}
			for v := best; ; {
				p, ok := parent[v]
				if !ok {
					break
				}
				path = append(path, p)
				v = p
			}
			return best, path, true
		}
		front = next
	}
	return 0, nil, false
}
