// Package rank scores nodes by relevance to a topic set with personalized PageRank.
package rank

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

var tracer = otel.Tracer("kgexplain/rank")

const (
	// DefaultDamping is the probability of following an edge instead of restarting.
	DefaultDamping = 0.7

	// DefaultMaxIterations is the fixed number of power-iteration steps.
	DefaultMaxIterations = 50
)

// Options configures a ranking run.
type Options struct {
	Damping       float64 `mapstructure:"damping" yaml:"damping"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations"`

	// Tolerance enables early exit once the L1 change of the score vector drops
	// below it. Zero runs exactly MaxIterations steps.
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`

	// Top truncates the ranked list. Zero keeps everything.
	Top int `mapstructure:"top" yaml:"top"`

	// Categories restricts the ranked list, not the walk, to the given categories.
	Categories []string `mapstructure:"categories" yaml:"categories"`
}

// DefaultOptions returns damping 0.7 and 50 iterations.
func DefaultOptions() Options {
	return Options{Damping: DefaultDamping, MaxIterations: DefaultMaxIterations}
}

// Validate rejects out-of-range parameters.
func (o Options) Validate() error {
	if !(o.Damping > 0 && o.Damping < 1) {
		return fmt.Errorf("%w: damping must be in (0,1), got %v", graph.ErrInvalidArgument, o.Damping)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be >= 1, got %d", graph.ErrInvalidArgument, o.MaxIterations)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0", graph.ErrInvalidArgument)
	}
	if o.Top < 0 {
		return fmt.Errorf("%w: top must be >= 0", graph.ErrInvalidArgument)
	}
	return nil
}

// Scored is one entry of the ranked list.
type Scored struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

// Result is the output of Rank.
type Result struct {
	Topics []string `json:"topics"`

	// Ranked excludes the topics and is sorted by score descending, then id.
	Ranked []Scored `json:"ranked"`

	// Scores holds every node, topics included. It sums to 1.
	Scores map[string]float64 `json:"-"`

	Iterations int `json:"iterations"`
}

// Ranker runs personalized PageRank over one store.
type Ranker struct {
	g      *graph.Store
	logger *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets the logger used for completion records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Ranker bound to g.
func New(g *graph.Store, opts ...Option) *Ranker {
	r := &Ranker{g: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every node with a random walk that restarts uniformly on topics.
// With no topics the restart is uniform over all nodes. Dangling nodes send their
// mass to the restart distribution.
func (r *Ranker) Rank(ctx context.Context, topics []string, opts Options) (_ *Result, err error) {
	ctx, span := tracer.Start(ctx, "Ranker.Rank", trace.WithAttributes(
		attribute.Int("topics", len(topics)),
		attribute.Float64("damping", opts.Damping),
		attribute.Int("max_iterations", opts.MaxIterations),
	))
	defer func() { telemetry.End(span, err) }()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	topicIdx, err := r.g.Dedupe(topics)
	if err != nil {
		return nil, err
	}

	n := r.g.Len()
	res := &Result{Topics: r.g.IDs(topicIdx), Scores: make(map[string]float64, n)}
	if n == 0 {
		return res, nil
	}

	restart := make([]float64, n)
	if len(topicIdx) == 0 {
		for i := range restart {
			restart[i] = 1 / float64(n)
		}
	} else {
		for _, t := range topicIdx {
			restart[t] = 1 / float64(len(topicIdx))
		}
	}

	outDeg := make([]float64, n)
	for i := 0; i < n; i++ {
		outDeg[i] = float64(r.g.DegreeAt(uint32(i)))
	}

	d := opts.Damping
	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter

		var dangling float64
		for i := range next {
			next[i] = 0
		}
		for u := 0; u < n; u++ {
			if outDeg[u] == 0 {
				dangling += x[u]
				continue
			}
			share := d * x[u] / outDeg[u]
			for _, v := range r.g.NeighborIndexes(uint32(u)) {
				next[v] += share
			}
		}
		var delta float64
		for i := range next {
			next[i] += (d*dangling + (1 - d)) * restart[i]
			delta += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if opts.Tolerance > 0 && delta < opts.Tolerance {
			break
		}
	}

	isTopic := make(map[uint32]struct{}, len(topicIdx))
	for _, t := range topicIdx {
		isTopic[t] = struct{}{}
	}
	var keep map[string]struct{}
	if len(opts.Categories) > 0 {
		keep = make(map[string]struct{}, len(opts.Categories))
		for _, c := range opts.Categories {
			keep[c] = struct{}{}
		}
	}

	res.Ranked = make([]Scored, 0, n-len(topicIdx))
	for i := 0; i < n; i++ {
		node := r.g.NodeAt(uint32(i))
		res.Scores[node.ID] = x[i]
		if _, ok := isTopic[uint32(i)]; ok {
			continue
		}
		if keep != nil {
			if _, ok := keep[node.Category]; !ok {
				continue
			}
		}
		res.Ranked = append(res.Ranked, Scored{ID: node.ID, Name: node.Name, Category: node.Category, Score: x[i]})
	}
	sort.Slice(res.Ranked, func(i, j int) bool {
		a, b := res.Ranked[i], res.Ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	if opts.Top > 0 && len(res.Ranked) > opts.Top {
		res.Ranked = res.Ranked[:opts.Top]
	}

	span.SetAttributes(attribute.Int("iterations", res.Iterations), attribute.Int("ranked", len(res.Ranked)))
	r.logger.Debug("rank complete", "topics", len(topicIdx), "iterations", res.Iterations, "ranked", len(res.Ranked))
	return res, nil
}
