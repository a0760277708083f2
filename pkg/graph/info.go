package graph

// Info summarizes a store.
type Info struct {
	Nodes      int            `json:"nodes"`
	Edges      int            `json:"edges"`
	Directed   bool           `json:"directed"`
	Components int            `json:"components"`
	Categories map[string]int `json:"categories"`
	MaxDegree  int            `json:"max_degree"`
	MeanDegree float64        `json:"mean_degree"`
}

// Info computes node, edge, component and per-category counts.
func (s *Store) Info() Info {
	info := Info{
		Nodes:      s.Len(),
		Edges:      s.EdgeCount(),
		Directed:   s.directed,
		Components: s.ComponentCount(),
		Categories: make(map[string]int),
	}
	for _, c := range s.Categories() {
		info.Categories[c] = len(s.CategoryIndexes(c))
	}
	total := 0
	for i := range s.adj {
		d := len(s.adj[i])
		total += d
		if d > info.MaxDegree {
			info.MaxDegree = d
		}
	}
	if info.Nodes > 0 {
		info.MeanDegree = float64(total) / float64(info.Nodes)
	}
	return info
}
