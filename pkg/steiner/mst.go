package steiner

import (
	"sort"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// edge is an undirected store edge with u < v.
type edge struct{ u, v uint32 }

func newEdge(a, b uint32) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// weighted is an edge between terminal positions a < b.
type weighted struct {
	w    int
	a, b int
}

func appendPath(dst []edge, p []uint32) []edge {
	for i := 1; i < len(p); i++ {
		dst = append(dst, newEdge(p[i-1], p[i]))
	}
	return dst
}

// spanningTree runs Kruskal over unit-weight edges in (u, v) order. Duplicate edges
// are tolerated. The result spans every component of the input.
func spanningTree(edges []edge) []edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].u != edges[j].u {
			return edges[i].u < edges[j].u
		}
		return edges[i].v < edges[j].v
	})

	local := make(map[uint32]int, len(edges)+1)
	id := func(v uint32) int {
		if i, ok := local[v]; ok {
			return i
		}
		local[v] = len(local)
		return local[v]
	}
	for _, e := range edges {
		id(e.u)
		id(e.v)
	}

	uf := graph.NewUnionFind(len(local))
	tree := make([]edge, 0, len(local))
	for _, e := range edges {
		if uf.Union(local[e.u], local[e.v]) {
			tree = append(tree, e)
		}
	}
	return tree
}

// prune repeatedly strips leaves that are not terminals.
func prune(tree []edge, terminals []uint32) []edge {
	isTerm := make(map[uint32]struct{}, len(terminals))
	for _, t := range terminals {
		isTerm[t] = struct{}{}
	}
	adj := make(map[uint32]map[uint32]struct{}, len(tree)+1)
	link := func(a, b uint32) {
		if adj[a] == nil {
			adj[a] = make(map[uint32]struct{}, 2)
		}
		adj[a][b] = struct{}{}
	}
	for _, e := range tree {
		link(e.u, e.v)
		link(e.v, e.u)
	}

	var leaves []uint32
	for v, nbs := range adj {
		if _, ok := isTerm[v]; !ok && len(nbs) == 1 {
			leaves = append(leaves, v)
		}
	}
	for len(leaves) > 0 {
		v := leaves[len(leaves)-1]
		leaves = leaves[:len(leaves)-1]
		for nb := range adj[v] {
			delete(adj[nb], v)
			if _, ok := isTerm[nb]; !ok && len(adj[nb]) == 1 {
				leaves = append(leaves, nb)
			}
		}
		delete(adj, v)
	}

	kept := tree[:0]
	for _, e := range tree {
		if _, ok := adj[e.u][e.v]; ok {
			kept = append(kept, e)
		}
	}
	return kept
}
