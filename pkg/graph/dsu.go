package graph

// UnionFind is a disjoint-set forest over 0..n-1 with path halving and union by rank.
// It backs Kruskal spanning trees. Not safe for concurrent use.
type UnionFind struct {
	parent []int32
	rank   []uint8
	sets   int
}

// NewUnionFind initializes n singleton sets.
func NewUnionFind(n int) *UnionFind {
	parent := make([]int32, n)
	for i := range parent {
		parent[i] = int32(i)
	}
	return &UnionFind{parent: parent, rank: make([]uint8, n), sets: n}
}

// Find returns the set representative of i.
func (uf *UnionFind) Find(i int) int {
	x := int32(i)
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return int(x)
}

// Union merges the sets of i and j. It reports false when they were already joined.
func (uf *UnionFind) Union(i, j int) bool {
	rootI := uf.Find(i)
	rootJ := uf.Find(j)
	if rootI == rootJ {
		return false
	}

	// Union by rank
	switch {
	case uf.rank[rootI] < uf.rank[rootJ]:
		uf.parent[rootI] = int32(rootJ)
	case uf.rank[rootI] > uf.rank[rootJ]:
		uf.parent[rootJ] = int32(rootI)
	default:
		uf.parent[rootJ] = int32(rootI)
		uf.rank[rootI]++
	}
	uf.sets--
	return true
}

// Connected checks whether i and j share a set.
func (uf *UnionFind) Connected(i, j int) bool {
	return uf.Find(i) == uf.Find(j)
}

// Sets returns the number of disjoint sets.
func (uf *UnionFind) Sets() int { return uf.sets }
