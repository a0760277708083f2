package nullmodel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/paths"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func small(t *testing.T) *graph.Store {
	t.Helper()
	// Triangle a-b-c, pendant d on c, isolated e.
	g, err := graph.FromRecords(
		[]graph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}},
		[]graph.Edge{
			{Subject: "a", Object: "b"},
			{Subject: "b", Object: "c"},
			{Subject: "c", Object: "a"},
			{Subject: "c", Object: "d"},
		},
	)
	require.NoError(t, err)
	return g
}

func TestCompute(t *testing.T) {
	g := small(t)
	cache := paths.New(g)
	set, err := g.Indexes([]string{"a", "b", "d"})
	require.NoError(t, err)
	e, _ := g.Index("e")

	st := Compute(cache, set, []uint32{e})
	assert.Equal(t, []string{"a", "b", "d"}, st.IDs)
	assert.InDelta(t, 5.0/3, st.AveragePairwiseDistance, 1e-12)
	assert.InDelta(t, 5.0/3, st.MeanDegree, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/9), st.StdDegree, 1e-12)
	assert.InDelta(t, 2.0/3, st.Clustering, 1e-12)
	assert.InDelta(t, 4.0/9, st.AverageJaccard, 1e-12)
	require.NotNil(t, st.AverageTargetDistance)
	assert.Zero(t, *st.AverageTargetDistance)
	assert.Equal(t, 3, st.DisconnectedTargets)
	assert.Zero(t, st.DisconnectedPairs)
}

func TestCompute_DisconnectedPairs(t *testing.T) {
	g := small(t)
	set, err := g.Indexes([]string{"a", "e", "c"})
	require.NoError(t, err)

	st := Compute(paths.New(g), set, nil)
	assert.Equal(t, 2, st.DisconnectedPairs)
	assert.Equal(t, 1.0, st.AveragePairwiseDistance)
	assert.Nil(t, st.AverageTargetDistance)
	assert.False(t, math.IsNaN(st.AverageJaccard))
}

func TestBatches(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, Batches(10, 3))
	assert.Equal(t, []int{1, 1, 0}, Batches(2, 3))
	assert.Equal(t, []int{7}, Batches(7, 0))
}

func TestBandwidth(t *testing.T) {
	assert.Equal(t, 1.0, Bandwidth(nil))
	assert.Equal(t, 1.0, Bandwidth([]float64{4, 4, 4}))
	assert.Greater(t, Bandwidth([]float64{1, 50, 100, 400}), 1.0)
}

func barabasi(t *testing.T) *graph.Store {
	t.Helper()
	g, err := graph.BarabasiAlbert(1000, 2, 7, "Gene", "Disease")
	require.NoError(t, err)
	return g
}

func TestSample_Uniform(t *testing.T) {
	g := barabasi(t)
	s := New(g)
	req := Request{Universe: graph.InCategory("Gene"), SetSize: 20, Samples: 30, Seed: 3}

	out, err := s.Sample(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out, 30)
	for _, r := range out {
		require.Len(t, r.IDs, 20)
		seen := map[string]bool{}
		for _, id := range r.IDs {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
			n, err := g.Node(id)
			require.NoError(t, err)
			assert.Equal(t, "Gene", n.Category)
		}
		assert.Greater(t, r.AveragePairwiseDistance, 1.0)
		assert.Zero(t, r.DisconnectedPairs)
	}
}

func TestSample_ParallelIsExactAndDeterministic(t *testing.T) {
	g := barabasi(t)
	s := New(g)
	req := Request{
		Universe: graph.InCategory("Gene"),
		SetSize:  10,
		Samples:  23,
		Workers:  4,
		Seed:     11,
		Targets:  []string{"node-0"},
	}

	first, err := s.Sample(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 23)
	for _, r := range first {
		require.NotNil(t, r.AverageTargetDistance)
	}

	second, err := s.Sample(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSample_DegreeMatched(t *testing.T) {
	g := barabasi(t)
	s := New(g)
	// The seed star nodes are the hubs of the graph.
	hubs := []string{"node-0", "node-1", "node-2"}

	base := Request{Universe: graph.InCategory("Gene"), SetSize: 5, Samples: 40, Seed: 5}
	uniform, err := s.Sample(context.Background(), base)
	require.NoError(t, err)

	matched := base
	matched.DegreeMatched = true
	matched.Reference = hubs
	biased, err := s.Sample(context.Background(), matched)
	require.NoError(t, err)

	assert.Greater(t, Summarize(biased).MeanDegree.Mean, Summarize(uniform).MeanDegree.Mean)
}

func TestSample_Errors(t *testing.T) {
	g := small(t)
	s := New(g)
	ctx := context.Background()

	_, err := s.Sample(ctx, Request{Universe: graph.OfIDs("a", "b"), SetSize: 3, Samples: 1})
	assert.True(t, errors.Is(err, graph.ErrInsufficientPopulation))

	_, err = s.Sample(ctx, Request{Universe: graph.OfIDs("a", "b"), SetSize: 1, Samples: 1, DegreeMatched: true})
	assert.True(t, errors.Is(err, graph.ErrInvalidArgument))

	_, err = s.Sample(ctx, Request{Universe: graph.InCategory("Nope"), SetSize: 1, Samples: 1})
	assert.True(t, errors.Is(err, graph.ErrInvalidArgument))

	_, err = s.Sample(ctx, Request{Universe: graph.OfIDs("a"), SetSize: 1, Samples: 1, Targets: []string{"zz"}})
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Sample(cancelled, Request{Universe: graph.OfIDs("a", "b", "c"), SetSize: 2, Samples: 10, Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSample_Zero(t *testing.T) {
	out, err := New(small(t)).Sample(context.Background(), Request{Universe: graph.OfIDs("a", "b"), SetSize: 2})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestObserveAndZScore(t *testing.T) {
	g := barabasi(t)
	s := New(g)

	obs, err := s.Observe([]string{"node-0", "node-1", "node-2"}, nil)
	require.NoError(t, err)
	null, err := s.Sample(context.Background(), Request{Universe: graph.InCategory("Gene"), SetSize: 3, Samples: 50, Seed: 1})
	require.NoError(t, err)

	sum := Summarize(null)
	assert.Equal(t, 50, sum.Samples)
	assert.Nil(t, sum.AverageTargetDistance)
	// Hubs sit close together.
	assert.Less(t, ZScore(obs.AveragePairwiseDistance, sum.AveragePairwiseDistance), 0.0)

	assert.Equal(t, 0.0, ZScore(1, Moments{Mean: 1}))
	assert.True(t, math.IsInf(ZScore(2, Moments{Mean: 1}), 1))
}

func TestSample_FailureMarksSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	_, err := New(small(t)).Sample(context.Background(), Request{Universe: graph.OfIDs("a", "b"), SetSize: 3, Samples: 1})
	require.Error(t, err)

	var found bool
	for _, s := range sr.Ended() {
		if s.Name() == "Sampler.Sample" {
			found = true
			assert.Equal(t, codes.Error, s.Status().Code)
			assert.NotEmpty(t, s.Events(), "error event")
		}
	}
	assert.True(t, found)
}
