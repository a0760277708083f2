package graph

// Components labels every node with its weakly connected component.
// Labels are dense, starting at 0, in order of the lowest node index.
func (s *Store) Components() []int32 {
	s.compOnce.Do(s.labelComponents)
	return s.components
}

// ComponentCount returns the number of weakly connected components.
func (s *Store) ComponentCount() int {
	s.compOnce.Do(s.labelComponents)
	return s.compCount
}

// SameComponent reports whether every index lies in one component.
func (s *Store) SameComponent(idx []uint32) bool {
	if len(idx) < 2 {
		return true
	}
	comp := s.Components()
	want := comp[idx[0]]
	for _, v := range idx[1:] {
		if comp[v] != want {
			return false
		}
	}
	return true
}

// ComponentOf returns every id in the component of id.
func (s *Store) ComponentOf(id string) ([]string, error) {
	start, err := s.mustIndex(id)
	if err != nil {
		return nil, err
	}
	comp := s.Components()
	var out []string
	for i, c := range comp {
		if c == comp[start] {
			out = append(out, s.nodes[i].ID)
		}
	}
	return out, nil
}

func (s *Store) labelComponents() {
	comp := make([]int32, len(s.nodes))
	for i := range comp {
		comp[i] = -1
	}

	var label int32
	queue := make([]uint32, 0, 64)
	for root := range s.nodes {
		if comp[root] >= 0 {
			continue
		}
		comp[root] = label
		queue = append(queue[:0], uint32(root))

		// BFS over both directions.
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range s.adj[cur] {
				if comp[nb] < 0 {
					comp[nb] = label
					queue = append(queue, nb)
				}
			}
			if s.directed {
				for _, nb := range s.radj[cur] {
					if comp[nb] < 0 {
						comp[nb] = label
						queue = append(queue, nb)
					}
				}
			}
		}
		label++
	}

	s.components = comp
	s.compCount = int(label)
}
