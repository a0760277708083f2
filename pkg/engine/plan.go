package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/DrSkyle/kgexplain/pkg/plan"
)

// Kinds of results produced outside plans.
const (
	KindInfo plan.Kind = "info"
	KindPath plan.Kind = "path"
)

// Result is the output of one named operation.
type Result struct {
	Kind  plan.Kind `json:"kind"`
	Name  string    `json:"name"`
	Value any       `json:"value"`
}

// Execute validates p and runs its steps in file order. It stops at the first
// failing step and returns the results gathered so far.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) (results []Result, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	steps := p.Steps()
	err = e.run(ctx, "execute", []attribute.KeyValue{attribute.Int("steps", len(steps))}, func(ctx context.Context) error {
		for _, s := range steps {
			v, err := e.step(ctx, s)
			if err != nil {
				return fmt.Errorf("%s %q: %w", s.Kind, s.Name, err)
			}
			results = append(results, Result{Kind: s.Kind, Name: s.Name, Value: v})
			e.Logger.Info("plan step finished", "kind", s.Kind, "name", s.Name)
		}
		return nil
	})
	return results, err
}

func (e *Engine) step(ctx context.Context, s plan.Step) (any, error) {
	switch s.Kind {
	case plan.KindRank:
		b := s.Rank
		opts := e.RankOptions()
		if b.Top > 0 {
			opts.Top = b.Top
		}
		if b.Damping != nil {
			opts.Damping = *b.Damping
		}
		if b.MaxIterations != nil {
			opts.MaxIterations = *b.MaxIterations
		}
		opts.Categories = b.Categories
		return e.Rank(ctx, b.Topics, opts)

	case plan.KindExplain:
		b := s.Explain
		if b.Compare {
			return e.Compare(ctx, b.Terminals)
		}
		return e.Explain(ctx, b.Terminals, b.Strategy)

	case plan.KindEnrich:
		b := s.Enrich
		req := EnrichRequest{
			Queries:  b.Queries,
			Universe: UniverseSpec{Category: b.Category, IDs: b.Universe, Selector: b.Selector},
			Adjust:   e.config.Enrich.Adjust,
		}
		if b.Alpha != nil {
			req.Alpha = *b.Alpha
		}
		return e.Enrich(ctx, req)

	case plan.KindNull:
		b := s.Null
		if b.Seed < 0 {
			return nil, fmt.Errorf("seed must be >= 0, got %d", b.Seed)
		}
		return e.Null(ctx, NullRequest{
			Universe:      UniverseSpec{Category: b.Category, IDs: b.Universe, Selector: b.Selector},
			SetSize:       b.SetSize,
			Samples:       b.Samples,
			DegreeMatched: b.DegreeMatched,
			Reference:     b.Reference,
			Targets:       b.Targets,
			Workers:       b.Workers,
			Seed:          uint64(b.Seed),
			Observed:      b.Observed,
		})
	}
	return nil, fmt.Errorf("unknown step kind %q", s.Kind)
}
