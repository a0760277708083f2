// Package enrich tests whether the neighbours of a query set are over-represented
// relative to a background universe, using a hypergeometric upper tail.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/telemetry"
)

var tracer = otel.Tracer("kgexplain/enrich")

// DefaultAlpha is the significance level used by reports.
const DefaultAlpha = 0.05

// Result is the test outcome for one neighbour n of the query.
type Result struct {
	PValue float64 `json:"p_value"`
	// QValue is the Benjamini-Hochberg adjusted p-value, set by AdjustBH.
	QValue float64 `json:"q_value,omitempty"`

	// Overlap is neighbours(n) ∩ universe ∩ query, sorted.
	Overlap []string `json:"overlap"`

	// K is |neighbours(n) ∩ universe|.
	K int `json:"k_universe"`
	// Population is |universe| and Draws the capped query size.
	Population int `json:"population"`
	Draws      int `json:"draws"`
}

// Observed is |Overlap|.
func (r Result) Observed() int { return len(r.Overlap) }

// Mapping holds one Result per neighbour id.
type Mapping map[string]Result

// Entry is a Mapping element with its key.
type Entry struct {
	ID string `json:"id"`
	Result
}

// Sorted returns every entry by p-value ascending, then id.
func (m Mapping) Sorted() []Entry {
	out := make([]Entry, 0, len(m))
	for id, r := range m {
		out = append(out, Entry{ID: id, Result: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PValue != out[j].PValue {
			return out[i].PValue < out[j].PValue
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AdjustBH fills QValue with Benjamini-Hochberg adjusted p-values.
func (m Mapping) AdjustBH() {
	entries := m.Sorted()
	total := float64(len(entries))
	q := 1.0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		q = math.Min(q, e.PValue*total/float64(i+1))
		e.QValue = q
		m[e.ID] = e.Result
	}
}

// Significant returns sorted entries with p-value (or q-value when adjusted) at most alpha.
func (m Mapping) Significant(alpha float64, adjusted bool) []Entry {
	var out []Entry
	for _, e := range m.Sorted() {
		v := e.PValue
		if adjusted {
			v = e.QValue
		}
		if v <= alpha {
			out = append(out, e)
		}
	}
	return out
}

// Tester runs enrichment queries over one store.
type Tester struct {
	g      *graph.Store
	logger *slog.Logger
}

// Option configures a Tester.
type Option func(*Tester)

// WithLogger sets the logger used for completion records.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tester) {
		if l != nil {
			t.logger = l
		}
	}
}

// New returns a Tester bound to g.
func New(g *graph.Store, opts ...Option) *Tester {
	t := &Tester{g: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enrich tests every node adjacent to at least one query id.
func (t *Tester) Enrich(ctx context.Context, query []string, universe graph.Universe) (Mapping, error) {
	out, err := t.EnrichBatch(ctx, [][]string{query}, universe)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EnrichBatch runs Enrich per query set and returns the mappings in input order.
// The universe is resolved once.
func (t *Tester) EnrichBatch(ctx context.Context, queries [][]string, universe graph.Universe) (_ []Mapping, err error) {
	ctx, span := tracer.Start(ctx, "Tester.EnrichBatch", trace.WithAttributes(
		attribute.Int("queries", len(queries)),
		attribute.String("universe", universe.String()),
	))
	defer func() { telemetry.End(span, err) }()

	uIdx, err := t.g.Resolve(universe)
	if err != nil {
		return nil, err
	}
	inU := make(map[uint32]struct{}, len(uIdx))
	for _, v := range uIdx {
		inU[v] = struct{}{}
	}

	out := make([]Mapping, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := t.enrich(q, inU)
		if err != nil {
			return nil, fmt.Errorf("query set %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

func (t *Tester) enrich(query []string, inU map[uint32]struct{}) (Mapping, error) {
	qIdx, err := t.g.Dedupe(query)
	if err != nil {
		return nil, err
	}
	inQ := make(map[uint32]struct{}, len(qIdx))
	for _, v := range qIdx {
		inQ[v] = struct{}{}
	}

	N := len(inU)
	draws := min(len(qIdx), N)

	// Candidates are reached from the query; their own neighbourhood is read
	// against the edge direction so the query is counted on directed stores.
	candidates := make(map[uint32]struct{})
	for _, q := range qIdx {
		for _, n := range t.g.NeighborIndexes(q) {
			candidates[n] = struct{}{}
		}
	}

	m := make(Mapping, len(candidates))
	for n := range candidates {
		var K int
		overlap := []string{}
		for _, v := range t.g.PredecessorIndexes(n) {
			if _, ok := inU[v]; !ok {
				continue
			}
			K++
			if _, ok := inQ[v]; ok {
				overlap = append(overlap, t.g.ID(v))
			}
		}
		sort.Strings(overlap)
		m[t.g.ID(n)] = Result{
			PValue:     UpperTail(len(overlap), N, K, draws),
			Overlap:    overlap,
			K:          K,
			Population: N,
			Draws:      draws,
		}
	}
	t.logger.Debug("enrichment complete", "query", len(qIdx), "universe", N, "neighbours", len(m))
	return m, nil
}
