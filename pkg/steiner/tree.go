package steiner

import (
	"fmt"
	"slices"
	"sort"
)

// Tree is a connecting tree over a terminal set. Nodes are sorted and every edge is
// an (lo, hi) pair of store ids, sorted.
type Tree struct {
	Strategy  Strategy    `json:"strategy"`
	Terminals []string    `json:"terminals"`
	Nodes     []string    `json:"nodes"`
	Edges     [][2]string `json:"edges"`
}

// Summary is the size profile of a tree.
type Summary struct {
	Strategy     Strategy `json:"strategy"`
	Nodes        int      `json:"nodes"`
	Edges        int      `json:"edges"`
	SteinerNodes int      `json:"steiner_nodes"`
}

func newTree(strategy Strategy, terminals, nodes []string, edges [][2]string) *Tree {
	sort.Strings(nodes)
	for i, e := range edges {
		if e[0] > e[1] {
			edges[i] = [2]string{e[1], e[0]}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return &Tree{Strategy: strategy, Terminals: terminals, Nodes: nodes, Edges: edges}
}

// Size is the node count.
func (t *Tree) Size() int { return len(t.Nodes) }

// Contains reports whether id is a tree node.
func (t *Tree) Contains(id string) bool {
	_, ok := slices.BinarySearch(t.Nodes, id)
	return ok
}

// SteinerNodes returns the non-terminal nodes.
func (t *Tree) SteinerNodes() []string {
	term := make(map[string]struct{}, len(t.Terminals))
	for _, id := range t.Terminals {
		term[id] = struct{}{}
	}
	var out []string
	for _, id := range t.Nodes {
		if _, ok := term[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Summary returns the size profile.
func (t *Tree) Summary() Summary {
	return Summary{
		Strategy:     t.Strategy,
		Nodes:        len(t.Nodes),
		Edges:        len(t.Edges),
		SteinerNodes: len(t.Nodes) - len(t.Terminals),
	}
}

// IsTree reports whether the edges connect every node without a cycle.
func (t *Tree) IsTree() bool {
	if len(t.Nodes) == 0 || len(t.Edges) != len(t.Nodes)-1 {
		return false
	}
	pos := make(map[string]int, len(t.Nodes))
	for i, id := range t.Nodes {
		pos[id] = i
	}
	adj := make([][]int, len(t.Nodes))
	for _, e := range t.Edges {
		a, okA := pos[e[0]]
		b, okB := pos[e[1]]
		if !okA || !okB || a == b {
			return false
		}
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	seen := make([]bool, len(t.Nodes))
	seen[0] = true
	stack := []int{0}
	reached := 1
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range adj[cur] {
			if !seen[nb] {
				seen[nb] = true
				reached++
				stack = append(stack, nb)
			}
		}
	}
	return reached == len(t.Nodes)
}

func (t *Tree) String() string {
	return fmt.Sprintf("%s tree: %d nodes, %d edges, %d terminals", t.Strategy, len(t.Nodes), len(t.Edges), len(t.Terminals))
}
