package graph

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/DrSkyle/kgexplain/pkg/sys/intern"
)

// Node is a knowledge-graph entity. Index is its dense position in the Store.
type Node struct {
	Index    uint32 `json:"-"`
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
}

// Edge is a raw edge record as supplied by the loader. Records are kept verbatim;
// topology algorithms only see the simplified adjacency.
type Edge struct {
	Subject                string `json:"subject_id"`
	Object                 string `json:"object_id"`
	Predicate              string `json:"predicate,omitempty"`
	PrimaryKnowledgeSource string `json:"primary_knowledge_source,omitempty"`
	KnowledgeSource        string `json:"knowledge_source,omitempty"`
	Publications           string `json:"publications,omitempty"`
}

// Store is an immutable adjacency and attribute index.
// It is safe for concurrent reads once returned by Builder.Build.
type Store struct {
	directed  bool
	nodes     []Node
	idMap     map[string]uint32
	adj       [][]uint32 // sorted, deduplicated, no self-loops
	radj      [][]uint32 // aliases adj for undirected stores
	edgeCount int
	records   []Edge

	categories *intern.Pool
	byCategory [][]uint32 // indexed by category symbol

	compOnce   sync.Once
	components []int32
	compCount  int
}

// Directed reports whether adjacency is directional.
func (s *Store) Directed() bool { return s.directed }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// EdgeCount returns the number of simplified edges.
func (s *Store) EdgeCount() int { return s.edgeCount }

// Index returns the dense index for id.
func (s *Store) Index(id string) (uint32, bool) {
	idx, ok := s.idMap[id]
	return idx, ok
}

func (s *Store) mustIndex(id string) (uint32, error) {
	idx, ok := s.idMap[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return idx, nil
}

// Has reports whether id was declared.
func (s *Store) Has(id string) bool {
	_, ok := s.idMap[id]
	return ok
}

// Node returns the record for id.
func (s *Store) Node(id string) (Node, error) {
	idx, err := s.mustIndex(id)
	if err != nil {
		return Node{}, err
	}
	return s.nodes[idx], nil
}

// NodeAt returns the record at a dense index.
func (s *Store) NodeAt(idx uint32) Node { return s.nodes[idx] }

// ID returns the string id at a dense index.
func (s *Store) ID(idx uint32) string { return s.nodes[idx].ID }

// IDs maps dense indexes back to string ids.
func (s *Store) IDs(idx []uint32) []string {
	out := make([]string, len(idx))
	for i, v := range idx {
		out[i] = s.nodes[v].ID
	}
	return out
}

// Indexes resolves ids to dense indexes, failing on the first unknown id.
func (s *Store) Indexes(ids []string) ([]uint32, error) {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		idx, err := s.mustIndex(id)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Neighbors returns the simplified neighbour set of id (out-neighbours when directed).
func (s *Store) Neighbors(id string) ([]string, error) {
	idx, err := s.mustIndex(id)
	if err != nil {
		return nil, err
	}
	return s.IDs(s.adj[idx]), nil
}

// Predecessors returns the in-neighbours of id. Equal to Neighbors when undirected.
func (s *Store) Predecessors(id string) ([]string, error) {
	idx, err := s.mustIndex(id)
	if err != nil {
		return nil, err
	}
	return s.IDs(s.radj[idx]), nil
}

// NeighborIndexes exposes the sorted adjacency of idx. Callers must not modify it.
func (s *Store) NeighborIndexes(idx uint32) []uint32 { return s.adj[idx] }

// PredecessorIndexes exposes the sorted in-adjacency of idx. Callers must not modify it.
func (s *Store) PredecessorIndexes(idx uint32) []uint32 { return s.radj[idx] }

// Degree returns |Neighbors(id)|.
func (s *Store) Degree(id string) (int, error) {
	idx, err := s.mustIndex(id)
	if err != nil {
		return 0, err
	}
	return len(s.adj[idx]), nil
}

// DegreeAt is Degree by dense index.
func (s *Store) DegreeAt(idx uint32) int { return len(s.adj[idx]) }

// Adjacent reports whether v is a neighbour of u.
func (s *Store) Adjacent(u, v uint32) bool {
	nb := s.adj[u]
	i := sort.Search(len(nb), func(i int) bool { return nb[i] >= v })
	return i < len(nb) && nb[i] == v
}

// NodesInCategory returns ids of the category in insertion order.
// Unknown categories yield an empty slice.
func (s *Store) NodesInCategory(category string) []string {
	return s.IDs(s.CategoryIndexes(category))
}

// CategoryIndexes is NodesInCategory by dense index. Callers must not modify it.
func (s *Store) CategoryIndexes(category string) []uint32 {
	sym, ok := s.categories.Lookup(category)
	if !ok || int(sym) >= len(s.byCategory) {
		return nil
	}
	return s.byCategory[sym]
}

// HasCategory reports whether any node carries the category.
func (s *Store) HasCategory(category string) bool {
	return len(s.CategoryIndexes(category)) > 0
}

// Categories returns every category name, sorted.
func (s *Store) Categories() []string {
	out := make([]string, 0, s.categories.Len())
	for sym := 1; sym <= s.categories.Len(); sym++ {
		if len(s.byCategory[sym]) > 0 {
			out = append(out, s.categories.String(uint32(sym)))
		}
	}
	sort.Strings(out)
	return out
}

// RandomNodesInCategory draws k distinct nodes of the category uniformly.
func (s *Store) RandomNodesInCategory(category string, k int, rng *rand.Rand) ([]string, error) {
	idx, err := SampleIndexes(s.CategoryIndexes(category), k, rng)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", category, err)
	}
	return s.IDs(idx), nil
}

// SampleIndexes draws k distinct elements of population uniformly without replacement.
// population is not modified.
func SampleIndexes(population []uint32, k int, rng *rand.Rand) ([]uint32, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: negative sample size %d", ErrInvalidArgument, k)
	}
	if k > len(population) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientPopulation, k, len(population))
	}
	pool := make([]uint32, len(population))
	copy(pool, population)
	// Partial Fisher-Yates.
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}

// Edges returns the raw edge records in input order.
func (s *Store) Edges() []Edge {
	out := make([]Edge, len(s.records))
	copy(out, s.records)
	return out
}

// EdgesBetween returns raw records whose endpoints both lie in ids.
func (s *Store) EdgesBetween(ids []string) ([]Edge, error) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !s.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		keep[id] = struct{}{}
	}

	var out []Edge
	for _, e := range s.records {
		_, a := keep[e.Subject]
		_, b := keep[e.Object]
		if a && b {
			out = append(out, e)
		}
	}
	return out, nil
}

// InducedSubgraph restricts the store to ids and the edges among them.
// Raw records are filtered the same way.
func (s *Store) InducedSubgraph(ids []string) (*Store, error) {
	b := NewBuilder(WithDirected(s.directed), WithCapacity(len(ids)))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		n, err := s.Node(id)
		if err != nil {
			// Drain the builder goroutine before returning.
			_, _ = b.Build()
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		b.AddNode(n)
	}

	for _, e := range s.records {
		_, a := seen[e.Subject]
		_, c := seen[e.Object]
		if a && c {
			b.AddEdge(e)
		}
	}
	return b.Build()
}
