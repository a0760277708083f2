package graph

import (
	"fmt"
	"math/rand/v2"
)

// BarabasiAlbert generates a preferential-attachment graph with n nodes where every
// new node attaches to m distinct existing nodes. The seed graph is a star on the
// first m+1 nodes, so the result is connected and has m*(n-m) edges.
// Node ids are "node-<i>"; categories cycle through the given list ("Gene" if empty).
func BarabasiAlbert(n, m int, seed uint64, categories ...string) (*Store, error) {
	if m < 1 || n <= m {
		return nil, fmt.Errorf("%w: barabasi-albert needs n > m >= 1, got n=%d m=%d", ErrInvalidArgument, n, m)
	}
	if len(categories) == 0 {
		categories = []string{"Gene"}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := NewBuilder(WithCapacity(n))
	for i := 0; i < n; i++ {
		b.AddNode(Node{
			ID:       NodeName(i),
			Category: categories[i%len(categories)],
			Name:     fmt.Sprintf("synthetic %d", i),
			Source:   "synthetic",
		})
	}

	// repeated holds each node once per incident edge, so drawing from it is
	// proportional to degree.
	repeated := make([]int, 0, 2*m*n)
	for i := 1; i <= m; i++ {
		b.Connect(NodeName(0), NodeName(i))
		repeated = append(repeated, 0, i)
	}

	targets := make(map[int]struct{}, m)
	picked := make([]int, 0, m)
	for src := m + 1; src < n; src++ {
		clear(targets)
		picked = picked[:0]
		for len(picked) < m {
			t := repeated[rng.IntN(len(repeated))]
			if _, dup := targets[t]; dup {
				continue
			}
			targets[t] = struct{}{}
			picked = append(picked, t)
		}
		for _, t := range picked {
			b.Connect(NodeName(src), NodeName(t))
			repeated = append(repeated, src, t)
		}
	}
	return b.Build()
}

// NodeName is the id BarabasiAlbert and Cycle assign to node i.
func NodeName(i int) string {
	return fmt.Sprintf("node-%d", i)
}

// Cycle generates the n-cycle 0-1-...-(n-1)-0.
func Cycle(n int, category string) (*Store, error) {
	if n < 3 {
		return nil, fmt.Errorf("%w: cycle needs at least 3 nodes", ErrInvalidArgument)
	}
	b := NewBuilder(WithCapacity(n))
	for i := 0; i < n; i++ {
		b.AddNode(Node{ID: NodeName(i), Category: category, Name: NodeName(i)})
	}
	for i := 0; i < n; i++ {
		b.Connect(NodeName(i), NodeName((i+1)%n))
	}
	return b.Build()
}
