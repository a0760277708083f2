// Package steiner builds small trees that connect a terminal set ("explanations")
// with approximate Steiner tree heuristics over an unweighted graph.
package steiner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/paths"
	"github.com/DrSkyle/kgexplain/pkg/telemetry"
)

var tracer = otel.Tracer("kgexplain/steiner")

// ErrDisconnectedQuery means some terminal pair has no connecting path.
var ErrDisconnectedQuery = errors.New("disconnected query")

// Strategy names a tree construction heuristic.
type Strategy string

const (
	// NearestFragment grows one fragment by repeatedly attaching the closest
	// terminal (Takahashi-Matsuyama).
	NearestFragment Strategy = "nearest-fragment"
	// TwoPhase expands an MST of the terminal Voronoi graph (Mehlhorn).
	TwoPhase Strategy = "two-phase"
	// MetricClosure expands an MST of the complete terminal distance graph (Kou).
	MetricClosure Strategy = "metric-closure"
	// ShortestPaths unions the shortest paths from the first terminal.
	ShortestPaths Strategy = "shortest-paths"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{NearestFragment, TwoPhase, MetricClosure, ShortestPaths}
}

// ParseStrategy accepts a strategy name or the author alias.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(NearestFragment), "takahashi":
		return NearestFragment, nil
	case string(TwoPhase), "mehlhorn":
		return TwoPhase, nil
	case string(MetricClosure), "kou":
		return MetricClosure, nil
	case string(ShortestPaths):
		return ShortestPaths, nil
	}
	return "", fmt.Errorf("%w: unknown steiner strategy %q", graph.ErrInvalidArgument, s)
}

// Builder constructs trees over the store behind a shared path cache.
type Builder struct {
	g      *graph.Store
	cache  *paths.Cache
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for completion records.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder that answers distance queries through cache.
func NewBuilder(cache *paths.Cache, opts ...Option) *Builder {
	b := &Builder{g: cache.Graph(), cache: cache, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build connects terminals with the given strategy. Repeated terminals keep their
// first position.
func (b *Builder) Build(ctx context.Context, terminals []string, strategy Strategy) (_ *Tree, err error) {
	ctx, span := tracer.Start(ctx, "Builder.Build", trace.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.Int("terminals", len(terminals)),
	))
	defer func() { telemetry.End(span, err) }()

	if b.g.Directed() {
		return nil, fmt.Errorf("%w: steiner trees need an undirected graph", graph.ErrInvalidArgument)
	}
	if len(terminals) == 0 {
		return nil, fmt.Errorf("%w: empty terminal set", graph.ErrInvalidArgument)
	}
	term, err := b.g.Dedupe(terminals)
	if err != nil {
		return nil, err
	}
	if !b.g.SameComponent(term) {
		return nil, fmt.Errorf("%w: terminals span more than one component", ErrDisconnectedQuery)
	}
	ids := b.g.IDs(term)
	if len(term) == 1 {
		return newTree(strategy, ids, []string{ids[0]}, [][2]string{}), nil
	}

	var tree []edge
	switch strategy {
	case NearestFragment:
		tree, err = b.nearestFragment(ctx, term)
	case TwoPhase:
		tree, err = b.twoPhase(ctx, term)
	case MetricClosure:
		tree, err = b.metricClosure(ctx, term)
	case ShortestPaths:
		tree, err = b.shortestPaths(ctx, term)
	default:
		return nil, fmt.Errorf("%w: unknown steiner strategy %q", graph.ErrInvalidArgument, strategy)
	}
	if err != nil {
		return nil, err
	}
	tree = prune(tree, term)

	nodes, pairs := b.materialize(tree)
	out := newTree(strategy, ids, nodes, pairs)
	span.SetAttributes(attribute.Int("nodes", len(out.Nodes)))
	b.logger.Debug("steiner tree built", "strategy", strategy, "terminals", len(ids), "nodes", len(out.Nodes))
	return out, nil
}

// Compare builds one tree per strategy over the same terminals. All strategies
// share the builder's cache. With no strategies it runs every one.
func (b *Builder) Compare(ctx context.Context, terminals []string, strategies ...Strategy) ([]*Tree, error) {
	if len(strategies) == 0 {
		strategies = Strategies()
	}
	out := make([]*Tree, 0, len(strategies))
	for _, s := range strategies {
		t, err := b.Build(ctx, terminals, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// nearestFragment attaches the closest outstanding terminal to F until F holds
// every terminal, then spans the subgraph induced by F.
func (b *Builder) nearestFragment(ctx context.Context, term []uint32) ([]edge, error) {
	pos := make(map[uint32]int, len(term))
	for i, t := range term {
		pos[t] = i
	}
	inF := map[uint32]struct{}{term[0]: {}}
	fragment := []uint32{term[0]}
	remaining := len(term) - 1

	rank := func(v uint32) int {
		if _, ok := inF[v]; ok {
			return -1
		}
		if p, ok := pos[v]; ok {
			return p
		}
		return -1
	}
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		winner, path, ok := paths.Nearest(b.g, fragment, rank)
		if !ok {
			return nil, fmt.Errorf("%w: terminal unreachable from fragment", ErrDisconnectedQuery)
		}
		for _, v := range path {
			if _, ok := inF[v]; ok {
				continue
			}
			inF[v] = struct{}{}
			fragment = append(fragment, v)
			if _, isTerm := pos[v]; isTerm {
				remaining--
			}
		}
		b.logger.Debug("fragment grown", "terminal", b.g.ID(winner), "path", len(path))
	}

	var induced []edge
	for _, u := range fragment {
		for _, v := range b.g.NeighborIndexes(u) {
			if _, ok := inF[v]; ok && u < v {
				induced = append(induced, edge{u, v})
			}
		}
	}
	return spanningTree(induced), nil
}

// twoPhase spans the terminal Voronoi graph, expands every MST edge into a shortest
// path and spans the union.
func (b *Builder) twoPhase(ctx context.Context, term []uint32) ([]edge, error) {
	vor := paths.MultiSourceBFS(b.g, term)

	best := make(map[[2]int]int)
	for u := 0; u < b.g.Len(); u++ {
		su := vor.Source[u]
		if su < 0 {
			continue
		}
		for _, v := range b.g.NeighborIndexes(uint32(u)) {
			sv := vor.Source[v]
			if uint32(u) >= v || sv < 0 || su == sv {
				continue
			}
			key := [2]int{int(su), int(sv)}
			if key[0] > key[1] {
				key = [2]int{key[1], key[0]}
			}
			w := int(vor.Dist[u]) + 1 + int(vor.Dist[v])
			if cur, ok := best[key]; !ok || w < cur {
				best[key] = w
			}
		}
	}
	g1 := make([]weighted, 0, len(best))
	for k, w := range best {
		g1 = append(g1, weighted{w: w, a: k[0], b: k[1]})
	}
	return b.expand(ctx, term, g1)
}

// metricClosure spans the complete terminal graph weighted by hop distance.
func (b *Builder) metricClosure(ctx context.Context, term []uint32) ([]edge, error) {
	var closure []weighted
	for i := range term {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := b.cache.DistancesFromIndex(term[i], term[i+1:])
		for j, dist := range d {
			if dist == paths.Infinity {
				continue
			}
			closure = append(closure, weighted{w: dist, a: i, b: i + 1 + j})
		}
	}
	return b.expand(ctx, term, closure)
}

// shortestPaths spans the union of shortest paths from the first terminal.
func (b *Builder) shortestPaths(ctx context.Context, term []uint32) ([]edge, error) {
	var union []edge
	for _, t := range term[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := b.cache.PathIndex(term[0], t)
		if p == nil {
			return nil, fmt.Errorf("%w: %s unreachable", ErrDisconnectedQuery, b.g.ID(t))
		}
		union = appendPath(union, p)
	}
	return spanningTree(union), nil
}

// expand takes a minimum spanning tree of a terminal graph, replaces every tree edge
// with a shortest path and spans the result.
func (b *Builder) expand(ctx context.Context, term []uint32, g1 []weighted) ([]edge, error) {
	sort.Slice(g1, func(i, j int) bool {
		if g1[i].w != g1[j].w {
			return g1[i].w < g1[j].w
		}
		if g1[i].a != g1[j].a {
			return g1[i].a < g1[j].a
		}
		return g1[i].b < g1[j].b
	})

	uf := graph.NewUnionFind(len(term))
	var union []edge
	for _, e := range g1 {
		if !uf.Union(e.a, e.b) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := b.cache.PathIndex(term[e.a], term[e.b])
		if p == nil {
			return nil, fmt.Errorf("%w: %s unreachable from %s", ErrDisconnectedQuery, b.g.ID(term[e.b]), b.g.ID(term[e.a]))
		}
		union = appendPath(union, p)
	}
	if uf.Sets() != 1 {
		return nil, fmt.Errorf("%w: terminal graph is not connected", ErrDisconnectedQuery)
	}
	return spanningTree(union), nil
}

func (b *Builder) materialize(tree []edge) ([]string, [][2]string) {
	seen := make(map[uint32]struct{}, len(tree)+1)
	var nodes []string
	add := func(v uint32) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			nodes = append(nodes, b.g.ID(v))
		}
	}
	pairs := make([][2]string, 0, len(tree))
	for _, e := range tree {
		add(e.u)
		add(e.v)
		pairs = append(pairs, [2]string{b.g.ID(e.u), b.g.ID(e.v)})
	}
	return nodes, pairs
}
