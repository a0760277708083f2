package graph

import "fmt"

// Universe is a background population: an explicit id set, or every node of a category.
// When IDs is non-empty it wins over Category.
type Universe struct {
	Category string   `json:"category,omitempty"`
	IDs      []string `json:"ids,omitempty"`
}

// InCategory is the universe of all nodes with the given category.
func InCategory(category string) Universe {
	return Universe{Category: category}
}

// OfIDs is an explicit universe.
func OfIDs(ids ...string) Universe {
	return Universe{IDs: ids}
}

func (u Universe) String() string {
	if len(u.IDs) > 0 {
		return fmt.Sprintf("ids(%d)", len(u.IDs))
	}
	return "category(" + u.Category + ")"
}

// Resolve returns the deduplicated dense indexes of u, in first-seen order.
// Unknown categories fail with ErrInvalidArgument, unknown ids with ErrNodeNotFound.
func (s *Store) Resolve(u Universe) ([]uint32, error) {
	if len(u.IDs) > 0 {
		seen := make(map[uint32]struct{}, len(u.IDs))
		out := make([]uint32, 0, len(u.IDs))
		for _, id := range u.IDs {
			idx, err := s.mustIndex(id)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, idx)
		}
		return out, nil
	}

	if u.Category == "" {
		return nil, fmt.Errorf("%w: universe needs a category or ids", ErrInvalidArgument)
	}
	idx := s.CategoryIndexes(u.Category)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, u.Category)
	}
	out := make([]uint32, len(idx))
	copy(out, idx)
	return out, nil
}

// Dedupe resolves ids to indexes, dropping repeats while keeping first-occurrence order.
func (s *Store) Dedupe(ids []string) ([]uint32, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Resolve(Universe{IDs: ids})
}
