// Package nullmodel draws random node sets from a universe and computes their
// statistics, giving an empirical null distribution for an observed set.
package nullmodel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/paths"
	"github.com/DrSkyle/kgexplain/pkg/swarm"
	"github.com/DrSkyle/kgexplain/pkg/telemetry"
)

var tracer = otel.Tracer("kgexplain/nullmodel")

// minWeight keeps every universe node drawable under degree matching.
const minWeight = 1e-12

// Request describes one null-model run.
type Request struct {
	Universe graph.Universe
	SetSize  int
	Samples  int

	// DegreeMatched draws nodes weighted by a kernel density estimate over the
	// degrees of Reference.
	DegreeMatched bool
	Reference     []string

	// Targets adds the average distance to these nodes to every record.
	Targets []string

	// Workers above 1 fans batches out over a worker pool. Each worker owns its
	// path cache and a generator seeded Seed+worker.
	Workers int
	Seed    uint64
}

// Sampler runs null-model requests over one store.
type Sampler struct {
	g      *graph.Store
	logger *slog.Logger
	pool   *swarm.Pool
	cache  *paths.Cache
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger used for progress records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPool runs batches on p instead of a pool sized per request.
func WithPool(p *swarm.Pool) Option {
	return func(s *Sampler) { s.pool = p }
}

// WithCache sets the cache Observe uses. Sample never touches it.
func WithCache(c *paths.Cache) Option {
	return func(s *Sampler) { s.cache = c }
}

// New returns a Sampler bound to g.
func New(g *graph.Store, opts ...Option) *Sampler {
	s := &Sampler{g: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = paths.New(g)
	}
	return s
}

// Observe computes the statistics of an observed set against the same targets
// a request would use.
func (s *Sampler) Observe(ids, targets []string) (Stats, error) {
	set, err := s.g.Dedupe(ids)
	if err != nil {
		return Stats{}, err
	}
	tIdx, err := s.g.Dedupe(targets)
	if err != nil {
		return Stats{}, err
	}
	return Compute(s.cache, set, tIdx), nil
}

// Sample draws req.Samples node sets and returns one record per set. Records are
// grouped by worker; order within the result carries no meaning.
func (s *Sampler) Sample(ctx context.Context, req Request) (_ []Stats, err error) {
	ctx, span := tracer.Start(ctx, "Sampler.Sample", trace.WithAttributes(
		attribute.String("universe", req.Universe.String()),
		attribute.Int("set_size", req.SetSize),
		attribute.Int("samples", req.Samples),
		attribute.Bool("degree_matched", req.DegreeMatched),
		attribute.Int("workers", req.Workers),
	))
	defer func() { telemetry.End(span, err) }()

	population, err := s.g.Resolve(req.Universe)
	if err != nil {
		return nil, err
	}
	if req.SetSize < 1 {
		return nil, fmt.Errorf("%w: set size must be >= 1, got %d", graph.ErrInvalidArgument, req.SetSize)
	}
	if req.Samples < 0 {
		return nil, fmt.Errorf("%w: samples must be >= 0, got %d", graph.ErrInvalidArgument, req.Samples)
	}
	if req.SetSize > len(population) {
		return nil, fmt.Errorf("%w: set size %d exceeds universe of %d", graph.ErrInsufficientPopulation, req.SetSize, len(population))
	}
	targets, err := s.g.Dedupe(req.Targets)
	if err != nil {
		return nil, err
	}

	var weights []float64
	if req.DegreeMatched {
		if len(req.Reference) == 0 {
			return nil, fmt.Errorf("%w: degree matching needs reference ids", graph.ErrInvalidArgument)
		}
		ref, err := s.g.Dedupe(req.Reference)
		if err != nil {
			return nil, err
		}
		weights = degreeWeights(s.g, ref, population)
	}

	workers := max(req.Workers, 1)
	workers = min(workers, max(req.Samples, 1))
	results := make([][]Stats, workers)

	tasks := make([]swarm.Task, 0, workers)
	for w, n := range Batches(req.Samples, workers) {
		if n == 0 {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) error {
			b := batch{
				cache:      paths.New(s.g),
				rng:        rand.New(rand.NewPCG(req.Seed+uint64(w), uint64(w))),
				population: population,
				weights:    weights,
				targets:    targets,
				setSize:    req.SetSize,
			}
			out, err := b.run(ctx, n)
			results[w] = out
			return err
		})
	}

	pool := s.pool
	if pool == nil {
		pool = swarm.NewPool(workers)
	}
	if err := pool.Run(ctx, tasks...); err != nil {
		return nil, err
	}

	out := make([]Stats, 0, req.Samples)
	for _, r := range results {
		out = append(out, r...)
	}
	span.SetAttributes(attribute.Int("records", len(out)))
	s.logger.Debug("null model sampled", "universe", req.Universe.String(), "records", len(out), "workers", workers)
	return out, nil
}

// Batches splits total into parts sizes that differ by at most one; the first
// total%parts batches take the remainder.
func Batches(total, parts int) []int {
	if parts < 1 {
		parts = 1
	}
	out := make([]int, parts)
	base, rem := total/parts, total%parts
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

type batch struct {
	cache      *paths.Cache
	rng        *rand.Rand
	population []uint32
	weights    []float64
	targets    []uint32
	setSize    int
}

func (b *batch) run(ctx context.Context, n int) ([]Stats, error) {
	out := make([]Stats, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		set, err := b.draw()
		if err != nil {
			return out, err
		}
		out = append(out, Compute(b.cache, set, b.targets))
	}
	return out, nil
}

func (b *batch) draw() ([]uint32, error) {
	if b.weights == nil {
		return graph.SampleIndexes(b.population, b.setSize, b.rng)
	}
	w := sampleuv.NewWeighted(slices.Clone(b.weights), b.rng)
	set := make([]uint32, 0, b.setSize)
	for len(set) < b.setSize {
		i, ok := w.Take()
		if !ok {
			return nil, fmt.Errorf("%w: weighted draw exhausted", graph.ErrInsufficientPopulation)
		}
		set = append(set, b.population[i])
	}
	return set, nil
}

// Bandwidth is Silverman's rule of thumb over the reference degrees, floored at 1.
func Bandwidth(degrees []float64) float64 {
	if len(degrees) < 2 {
		return 1
	}
	sd := stat.StdDev(degrees, nil)
	h := 1.06 * sd * math.Pow(float64(len(degrees)), -0.2)
	if math.IsNaN(h) || h < 1 {
		return 1
	}
	return h
}

// degreeWeights evaluates a Gaussian KDE of the reference degrees at the degree of
// every population node.
func degreeWeights(g *graph.Store, ref, population []uint32) []float64 {
	degrees := make([]float64, len(ref))
	for i, v := range ref {
		degrees[i] = float64(g.DegreeAt(v))
	}
	h := Bandwidth(degrees)
	kernels := make([]distuv.Normal, len(degrees))
	for i, d := range degrees {
		kernels[i] = distuv.Normal{Mu: d, Sigma: h}
	}

	density := make(map[int]float64)
	pdf := func(d int) float64 {
		if p, ok := density[d]; ok {
			return p
		}
		var p float64
		for _, k := range kernels {
			p += k.Prob(float64(d))
		}
		p /= float64(len(kernels))
		density[d] = p
		return p
	}

	weights := make([]float64, len(population))
	for i, v := range population {
		weights[i] = math.Max(pdf(g.DegreeAt(v)), minWeight)
	}
	return weights
}
