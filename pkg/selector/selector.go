// Package selector filters graph nodes with CEL predicates such as
// `category == "Gene" && degree >= 5 && source == "NCBIGene"`.
package selector

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

// Selector is a compiled node predicate.
type Selector struct {
	expr string
	prg  cel.Program
}

// NewEnv declares the node attributes visible to expressions.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("degree", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

// Compile checks expr and requires it to yield a bool.
func Compile(expr string) (*Selector, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: selector %q: %v", graph.ErrInvalidArgument, expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: selector %q must be a bool expression, got %s", graph.ErrInvalidArgument, expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("selector %q program creation error: %w", expr, err)
	}
	return &Selector{expr: expr, prg: prg}, nil
}

func (s *Selector) String() string { return s.expr }

// Match evaluates the predicate for one node.
func (s *Selector) Match(g *graph.Store, idx uint32) (bool, error) {
	n := g.NodeAt(idx)
	out, _, err := s.prg.Eval(map[string]any{
		"id":       n.ID,
		"category": n.Category,
		"name":     n.Name,
		"source":   n.Source,
		"degree":   int64(g.DegreeAt(idx)),
	})
	if err != nil {
		return false, fmt.Errorf("selector %q on %s: %w", s.expr, n.ID, err)
	}
	match, ok := out.Value().(bool)
	return ok && match, nil
}

// Select returns the ids of every matching node in index order.
func (s *Selector) Select(g *graph.Store) ([]string, error) {
	var out []string
	for i := 0; i < g.Len(); i++ {
		ok, err := s.Match(g, uint32(i))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, g.ID(uint32(i)))
		}
	}
	return out, nil
}

// Universe turns the selection into an explicit universe. An empty selection
// fails with ErrInvalidArgument.
func (s *Selector) Universe(g *graph.Store) (graph.Universe, error) {
	ids, err := s.Select(g)
	if err != nil {
		return graph.Universe{}, err
	}
	if len(ids) == 0 {
		return graph.Universe{}, fmt.Errorf("%w: selector %q matched no nodes", graph.ErrInvalidArgument, s.expr)
	}
	return graph.OfIDs(ids...), nil
}
