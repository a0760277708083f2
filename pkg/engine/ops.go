package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/DrSkyle/kgexplain/pkg/enrich"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/nullmodel"
	"github.com/DrSkyle/kgexplain/pkg/paths"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/selector"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
	"github.com/DrSkyle/kgexplain/pkg/swarm"
)

// Info summarizes the graph.
func (e *Engine) Info(ctx context.Context) (info graph.Info, err error) {
	err = e.run(ctx, "info", nil, func(context.Context) error {
		info = e.Graph.Info()
		return nil
	})
	return info, err
}

// RankOptions returns rank options seeded from the configuration.
func (e *Engine) RankOptions() rank.Options {
	c := e.config.Rank
	return rank.Options{
		Damping:       c.Damping,
		MaxIterations: c.MaxIterations,
		Tolerance:     c.Tolerance,
		Top:           c.Top,
	}
}

// Rank runs personalized PageRank from topics.
func (e *Engine) Rank(ctx context.Context, topics []string, opts rank.Options) (res *rank.Result, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("topics", len(topics)),
		attribute.Float64("damping", opts.Damping),
		attribute.Int("max_iterations", opts.MaxIterations),
	}
	err = e.run(ctx, "rank", attrs, func(ctx context.Context) error {
		var err error
		res, err = e.ranker.Rank(ctx, topics, opts)
		return err
	})
	return res, err
}

// Explain builds a Steiner tree over terminals. An empty strategy uses the
// configured default.
func (e *Engine) Explain(ctx context.Context, terminals []string, strategy string) (tree *steiner.Tree, err error) {
	if strategy == "" {
		strategy = e.config.Steiner.Strategy
	}
	attrs := []attribute.KeyValue{
		attribute.Int("terminals", len(terminals)),
		attribute.String("strategy", strategy),
	}
	err = e.run(ctx, "explain", attrs, func(ctx context.Context) error {
		s, err := steiner.ParseStrategy(strategy)
		if err != nil {
			return err
		}
		tree, err = e.steiner.Build(ctx, terminals, s)
		return err
	})
	return tree, err
}

// Compare builds one tree per strategy, every strategy when none is given.
func (e *Engine) Compare(ctx context.Context, terminals []string, strategies ...string) (trees []*steiner.Tree, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("terminals", len(terminals)),
		attribute.StringSlice("strategies", strategies),
	}
	err = e.run(ctx, "compare", attrs, func(ctx context.Context) error {
		parsed := make([]steiner.Strategy, 0, len(strategies))
		for _, s := range strategies {
			p, err := steiner.ParseStrategy(s)
			if err != nil {
				return err
			}
			parsed = append(parsed, p)
		}
		var err error
		trees, err = e.steiner.Compare(ctx, terminals, parsed...)
		return err
	})
	return trees, err
}

// UniverseSpec names a population in one of three ways. Exactly one is set.
type UniverseSpec struct {
	Category string
	IDs      []string
	// Selector is a CEL expression over node attributes.
	Selector string
}

func (u UniverseSpec) resolve(g *graph.Store) (graph.Universe, error) {
	set := 0
	for _, ok := range []bool{u.Category != "", len(u.IDs) > 0, u.Selector != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return graph.Universe{}, fmt.Errorf("%w: exactly one of category, ids or selector must name the universe", graph.ErrInvalidArgument)
	}
	switch {
	case u.Category != "":
		return graph.InCategory(u.Category), nil
	case len(u.IDs) > 0:
		return graph.OfIDs(u.IDs...), nil
	}
	sel, err := selector.Compile(u.Selector)
	if err != nil {
		return graph.Universe{}, err
	}
	return sel.Universe(g)
}

func (u UniverseSpec) String() string {
	switch {
	case u.Selector != "":
		return "selector(" + u.Selector + ")"
	case len(u.IDs) > 0:
		return graph.OfIDs(u.IDs...).String()
	}
	return graph.InCategory(u.Category).String()
}

// EnrichRequest is a batch of enrichment queries against one universe.
type EnrichRequest struct {
	Queries  [][]string
	Universe UniverseSpec
	// Alpha filters the printed report. Zero uses the configured value.
	Alpha float64
	// Adjust fills q-values with Benjamini-Hochberg per query.
	Adjust bool
}

// EnrichReport carries one mapping per query.
type EnrichReport struct {
	Universe string           `json:"universe"`
	Alpha    float64          `json:"alpha"`
	Adjusted bool             `json:"adjusted"`
	Results  []enrich.Mapping `json:"results"`
}

// Enrich runs a hypergeometric test for every query.
func (e *Engine) Enrich(ctx context.Context, req EnrichRequest) (rep *EnrichReport, err error) {
	if req.Alpha == 0 {
		req.Alpha = e.config.Enrich.Alpha
	}
	attrs := []attribute.KeyValue{
		attribute.Int("queries", len(req.Queries)),
		attribute.String("universe", req.Universe.String()),
	}
	err = e.run(ctx, "enrich", attrs, func(ctx context.Context) error {
		u, err := req.Universe.resolve(e.Graph)
		if err != nil {
			return err
		}
		results, err := e.enricher.EnrichBatch(ctx, req.Queries, u)
		if err != nil {
			return err
		}
		if req.Adjust {
			for _, m := range results {
				m.AdjustBH()
			}
		}
		rep = &EnrichReport{
			Universe: req.Universe.String(),
			Alpha:    req.Alpha,
			Adjusted: req.Adjust,
			Results:  results,
		}
		return nil
	})
	return rep, err
}

// NullRequest is a null-model run. Zero Samples, Workers and Seed take the
// configured values.
type NullRequest struct {
	Universe      UniverseSpec
	SetSize       int
	Samples       int
	DegreeMatched bool
	Reference     []string
	Targets       []string
	Workers       int
	Seed          uint64

	// Observed, when set, is scored against the null distribution.
	Observed []string
}

// NullReport is the sampled distribution and its summary.
type NullReport struct {
	Universe      string             `json:"universe"`
	SetSize       int                `json:"set_size"`
	DegreeMatched bool               `json:"degree_matched"`
	Summary       nullmodel.Summary  `json:"summary"`
	Observed      *nullmodel.Stats   `json:"observed,omitempty"`
	ZScores       map[string]float64 `json:"z_scores,omitempty"`
	Records       []nullmodel.Stats  `json:"records"`
	Pool          swarm.Stats        `json:"pool"`
}

// Null samples random node sets and summarizes their statistics.
func (e *Engine) Null(ctx context.Context, req NullRequest) (rep *NullReport, err error) {
	c := e.config.NullModel
	if req.Samples == 0 {
		req.Samples = c.Samples
	}
	if req.Workers == 0 {
		req.Workers = max(c.Workers, e.concurrency)
	}
	if req.Seed == 0 {
		req.Seed = c.Seed
	}
	attrs := []attribute.KeyValue{
		attribute.String("universe", req.Universe.String()),
		attribute.Int("set_size", req.SetSize),
		attribute.Int("samples", req.Samples),
		attribute.Bool("degree_matched", req.DegreeMatched),
	}
	err = e.run(ctx, "null", attrs, func(ctx context.Context) error {
		u, err := req.Universe.resolve(e.Graph)
		if err != nil {
			return err
		}
		records, err := e.sampler.Sample(ctx, nullmodel.Request{
			Universe:      u,
			SetSize:       req.SetSize,
			Samples:       req.Samples,
			DegreeMatched: req.DegreeMatched,
			Reference:     req.Reference,
			Targets:       req.Targets,
			Workers:       req.Workers,
			Seed:          req.Seed,
		})
		if err != nil {
			return err
		}
		rep = &NullReport{
			Universe:      req.Universe.String(),
			SetSize:       req.SetSize,
			DegreeMatched: req.DegreeMatched,
			Summary:       nullmodel.Summarize(records),
			Records:       records,
			Pool:          e.pool.GetStats(),
		}
		if len(req.Observed) == 0 {
			return nil
		}
		obs, err := e.sampler.Observe(req.Observed, req.Targets)
		if err != nil {
			return err
		}
		rep.Observed = &obs
		rep.ZScores = zScores(rep.Summary, obs)
		return nil
	})
	return rep, err
}

func zScores(sum nullmodel.Summary, obs nullmodel.Stats) map[string]float64 {
	z := map[string]float64{
		"average_pairwise_distance": nullmodel.ZScore(obs.AveragePairwiseDistance, sum.AveragePairwiseDistance),
		"degree_mean":               nullmodel.ZScore(obs.MeanDegree, sum.MeanDegree),
		"degree_std":                nullmodel.ZScore(obs.StdDegree, sum.StdDegree),
		"clustering":                nullmodel.ZScore(obs.Clustering, sum.Clustering),
		"average_jaccard":           nullmodel.ZScore(obs.AverageJaccard, sum.AverageJaccard),
	}
	if sum.AverageTargetDistance != nil && obs.AverageTargetDistance != nil {
		z["average_target_distance"] = nullmodel.ZScore(*obs.AverageTargetDistance, *sum.AverageTargetDistance)
	}
	return z
}

// PathResult is one shortest path. Distance is -1 when unreachable.
type PathResult struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Distance int      `json:"distance"`
	Path     []string `json:"path"`
}

// Path answers a shortest-path query from the shared cache.
func (e *Engine) Path(ctx context.Context, from, to string) (res *PathResult, err error) {
	attrs := []attribute.KeyValue{attribute.String("from", from), attribute.String("to", to)}
	err = e.run(ctx, "path", attrs, func(context.Context) error {
		p, err := e.cache.Path(from, to)
		if err != nil {
			return err
		}
		res = &PathResult{From: from, To: to, Distance: -1, Path: p}
		if p != nil {
			res.Distance = len(p) - 1
		}
		return nil
	})
	return res, err
}

// Distance is exposed for callers that only need hop counts.
func (e *Engine) Distance(from, to string) (int, error) {
	d, err := e.cache.Distance(from, to)
	if err != nil {
		return 0, err
	}
	if d == paths.Infinity {
		return -1, nil
	}
	return d, nil
}
