package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

func TestUpperTail_Known(t *testing.T) {
	// N=10, K=5, n=3.
	assert.InDelta(t, 1.0, UpperTail(0, 10, 5, 3), 1e-12)
	assert.InDelta(t, 1-10.0/120, UpperTail(1, 10, 5, 3), 1e-12)
	assert.InDelta(t, 10.0/120, UpperTail(3, 10, 5, 3), 1e-12)
	assert.Equal(t, 0.0, UpperTail(4, 10, 5, 3))
	// Draws exceed the unmarked population, so at least two successes are certain.
	assert.InDelta(t, 1.0, UpperTail(2, 6, 4, 4), 1e-12)
}

func TestUpperTail_BoundedAndMonotone(t *testing.T) {
	for N := 1; N <= 40; N += 3 {
		for K := 0; K <= N; K++ {
			for n := 0; n <= N; n += 2 {
				prev := 1.0
				for k := 0; k <= n+1; k++ {
					p := UpperTail(k, N, K, n)
					require.GreaterOrEqual(t, p, 0.0)
					require.LessOrEqual(t, p, 1.0)
					require.LessOrEqual(t, p, prev, "N=%d K=%d n=%d k=%d", N, K, n, k)
					prev = p
				}
			}
		}
	}
}

func TestUpperTail_SmallTail(t *testing.T) {
	// All 50 draws hit the 50 marked items out of 20000.
	p := UpperTail(50, 20000, 50, 50)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1e-100)
}

func fixture(t *testing.T) *graph.Store {
	t.Helper()
	g, err := graph.FromRecords(
		[]graph.Node{
			{ID: "g1", Category: "Gene"}, {ID: "g2", Category: "Gene"},
			{ID: "g3", Category: "Gene"}, {ID: "g4", Category: "Gene"},
			{ID: "p1", Category: "Pathway"}, {ID: "p2", Category: "Pathway"},
			{ID: "d", Category: "Drug"},
		},
		[]graph.Edge{
			{Subject: "p1", Object: "g1"}, {Subject: "p1", Object: "g2"}, {Subject: "p1", Object: "g3"},
			{Subject: "p2", Object: "g4"},
			{Subject: "d", Object: "g1"},
		},
	)
	require.NoError(t, err)
	return g
}

func TestEnrich(t *testing.T) {
	tester := New(fixture(t))

	m, err := tester.Enrich(context.Background(), []string{"g1", "g2", "g1"}, graph.InCategory("Gene"))
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.NotContains(t, m, "p2")

	p1 := m["p1"]
	assert.Equal(t, []string{"g1", "g2"}, p1.Overlap)
	assert.Equal(t, 3, p1.K)
	assert.Equal(t, 4, p1.Population)
	assert.Equal(t, 2, p1.Draws)
	assert.InDelta(t, 0.5, p1.PValue, 1e-12)

	d := m["d"]
	assert.Equal(t, 1, d.Observed())
	assert.InDelta(t, 0.5, d.PValue, 1e-12)

	sorted := m.Sorted()
	assert.Equal(t, "d", sorted[0].ID, "equal p-values sort by id")

	m.AdjustBH()
	assert.InDelta(t, 0.5, m["p1"].QValue, 1e-12)
	assert.Len(t, m.Significant(0.5, true), 2)
	assert.Empty(t, m.Significant(0.05, false))
}

func TestEnrich_DrawsCappedAtUniverse(t *testing.T) {
	tester := New(fixture(t))

	m, err := tester.Enrich(context.Background(), []string{"g1", "g2", "g3", "g4", "d", "p1"}, graph.OfIDs("g1", "g2", "g3"))
	require.NoError(t, err)
	for id, r := range m {
		assert.Equal(t, 3, r.Draws, id)
		assert.GreaterOrEqual(t, r.PValue, 0.0)
		assert.LessOrEqual(t, r.PValue, 1.0)
	}
}

func TestEnrichBatch(t *testing.T) {
	tester := New(fixture(t))

	out, err := tester.EnrichBatch(context.Background(), [][]string{{"g4"}, {"g1"}, {}}, graph.InCategory("Gene"))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "p2")
	assert.Contains(t, out[1], "p1")
	assert.Contains(t, out[1], "d")
	assert.Empty(t, out[2])
}

func TestEnrich_Errors(t *testing.T) {
	tester := New(fixture(t))
	ctx := context.Background()

	_, err := tester.Enrich(ctx, []string{"nope"}, graph.InCategory("Gene"))
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))

	_, err = tester.Enrich(ctx, []string{"g1"}, graph.InCategory("Protein"))
	assert.True(t, errors.Is(err, graph.ErrInvalidArgument))

	_, err = tester.Enrich(ctx, []string{"g1"}, graph.OfIDs("g1", "ghost"))
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}

func TestEnrichBatch_FailureMarksSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	_, err := New(fixture(t)).EnrichBatch(context.Background(), [][]string{{"nope"}}, graph.InCategory("Gene"))
	require.Error(t, err)

	var found bool
	for _, s := range sr.Ended() {
		if s.Name() == "Tester.EnrichBatch" {
			found = true
			assert.Equal(t, codes.Error, s.Status().Code)
			assert.NotEmpty(t, s.Events(), "error event")
		}
	}
	assert.True(t, found)
}
