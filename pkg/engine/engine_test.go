package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/plan"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/report"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
	"github.com/DrSkyle/kgexplain/pkg/storage"
)

func newEngine(t *testing.T, opts ...Option) (*Engine, *tracetest.SpanRecorder) {
	t.Helper()
	g, err := graph.BarabasiAlbert(200, 2, 7, MockCategories...)
	require.NoError(t, err)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	opts = append([]Option{WithTracer(tp.Tracer("test"))}, opts...)
	e, err := New(g, opts...)
	require.NoError(t, err)
	return e, sr
}

func spanNames(sr *tracetest.SpanRecorder) []string {
	var out []string
	for _, s := range sr.Ended() {
		out = append(out, s.Name())
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)

	g, err := graph.Cycle(4, "Gene")
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Rank.Damping = 1.5
	_, err = New(g, WithConfig(cfg))
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestEngine_Rank(t *testing.T) {
	e, sr := newEngine(t)
	opts := e.RankOptions()
	opts.Top = 10

	res, err := e.Rank(context.Background(), []string{"node-0", "node-5"}, opts)
	require.NoError(t, err)
	assert.Len(t, res.Ranked, 10)
	assert.Equal(t, rank.DefaultMaxIterations, res.Iterations)
	assert.Contains(t, spanNames(sr), "kgexplain/rank")
}

func TestEngine_FailedOperationMarksSpan(t *testing.T) {
	e, sr := newEngine(t)
	_, err := e.Rank(context.Background(), []string{"ghost"}, e.RankOptions())
	require.ErrorIs(t, err, graph.ErrNodeNotFound)

	ended := sr.Ended()
	require.NotEmpty(t, ended)
	last := ended[len(ended)-1]
	assert.Equal(t, "kgexplain/rank", last.Name())
	assert.Equal(t, codes.Error, last.Status().Code)
}

func TestEngine_RecoversPanics(t *testing.T) {
	e, sr := newEngine(t)
	err := e.run(context.Background(), "boom", nil, func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, spanNames(sr), "kgexplain/boom")
}

func TestEngine_ExplainAndCompare(t *testing.T) {
	e, _ := newEngine(t)
	terms := []string{"node-3", "node-40", "node-99", "node-150"}

	tree, err := e.Explain(context.Background(), terms, "")
	require.NoError(t, err)
	assert.Equal(t, steiner.NearestFragment, tree.Strategy)
	assert.True(t, tree.IsTree())

	trees, err := e.Compare(context.Background(), terms)
	require.NoError(t, err)
	assert.Len(t, trees, len(steiner.Strategies()))

	_, err = e.Explain(context.Background(), terms, "dijkstra")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestEngine_Enrich(t *testing.T) {
	e, _ := newEngine(t)
	rep, err := e.Enrich(context.Background(), EnrichRequest{
		Queries:  [][]string{{"node-0", "node-4"}, {"node-8"}},
		Universe: UniverseSpec{Category: "Gene"},
		Adjust:   true,
	})
	require.NoError(t, err)
	assert.Len(t, rep.Results, 2)
	assert.Equal(t, config.DefaultAlpha, rep.Alpha)
	assert.Equal(t, "category(Gene)", rep.Universe)

	_, err = e.Enrich(context.Background(), EnrichRequest{
		Queries:  [][]string{{"node-0"}},
		Universe: UniverseSpec{Category: "Gene", Selector: "degree > 2"},
	})
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)

	sel, err := e.Enrich(context.Background(), EnrichRequest{
		Queries:  [][]string{{"node-0"}},
		Universe: UniverseSpec{Selector: `category == "Pathway"`},
	})
	require.NoError(t, err)
	assert.Equal(t, `selector(category == "Pathway")`, sel.Universe)
}

func TestEngine_Null(t *testing.T) {
	e, _ := newEngine(t, WithConcurrency(2))
	rep, err := e.Null(context.Background(), NullRequest{
		Universe: UniverseSpec{Category: "Gene"},
		SetSize:  5,
		Samples:  8,
		Seed:     3,
		Targets:  []string{"node-1"},
		Observed: []string{"node-0", "node-4", "node-8", "node-12", "node-16"},
	})
	require.NoError(t, err)
	assert.Len(t, rep.Records, 8)
	assert.Equal(t, 8, rep.Summary.Samples)
	require.NotNil(t, rep.Observed)
	assert.Contains(t, rep.ZScores, "degree_mean")
	assert.Contains(t, rep.ZScores, "average_target_distance")
	assert.Equal(t, int64(2), rep.Pool.TasksCompleted)

	_, err = e.Null(context.Background(), NullRequest{Universe: UniverseSpec{Category: "Gene"}, SetSize: 51})
	assert.ErrorIs(t, err, graph.ErrInsufficientPopulation)
}

func TestEngine_Path(t *testing.T) {
	g, err := graph.FromRecords(
		[]graph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "z"}},
		[]graph.Edge{{Subject: "a", Object: "b"}, {Subject: "b", Object: "c"}},
	)
	require.NoError(t, err)
	e, err := New(g)
	require.NoError(t, err)

	res, err := e.Path(context.Background(), "a", "c")
	require.NoError(t, err)
	assert.Equal(t, &PathResult{From: "a", To: "c", Distance: 2, Path: []string{"a", "b", "c"}}, res)

	res, err = e.Path(context.Background(), "a", "z")
	require.NoError(t, err)
	assert.Equal(t, -1, res.Distance)
	assert.Nil(t, res.Path)

	d, err := e.Distance("c", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, d)
}

const testPlan = `
rank "r" {
  topics = ["node-0"]
  top    = 5
}

explain "t" {
  terminals = var.terminals
}

null "n" {
  category = "Gene"
  set_size = 3
  samples  = 4
}
`

func TestEngine_Execute(t *testing.T) {
	e, sr := newEngine(t)
	p, err := plan.Parse([]byte(testPlan), "test.hcl", map[string]string{"terminals": "node-1,node-5,node-9"})
	require.NoError(t, err)

	results, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, plan.KindRank, results[0].Kind)
	assert.Len(t, results[0].Value.(*rank.Result).Ranked, 5)
	assert.Equal(t, []string{"node-1", "node-5", "node-9"}, results[1].Value.(*steiner.Tree).Terminals)
	assert.Len(t, results[2].Value.(*NullReport).Records, 4)
	assert.Contains(t, spanNames(sr), "kgexplain/execute")
}

func TestEngine_ExecuteStopsAtFailure(t *testing.T) {
	e, _ := newEngine(t)
	p, err := plan.Parse([]byte(`
explain "bad" {
  terminals = ["node-1", "ghost"]
}
rank "never" {
  topics = ["node-0"]
}
`), "bad.hcl", nil)
	require.NoError(t, err)

	results, err := e.Execute(context.Background(), p)
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
	assert.Empty(t, results)
}

func TestEngine_Export(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	tree, err := e.Explain(ctx, []string{"node-1", "node-2"}, "two-phase")
	require.NoError(t, err)
	null, err := e.Null(ctx, NullRequest{Universe: UniverseSpec{Category: "Drug"}, SetSize: 2, Samples: 3})
	require.NoError(t, err)

	require.NoError(t, e.Export(ctx, dir, report.FormatCSV,
		Result{Kind: plan.KindExplain, Name: "tree", Value: tree},
		Result{Kind: plan.KindNull, Name: "baseline", Value: null},
	))

	keys, err := storage.NewLocalStore(dir).List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"explain/tree.csv", "null/baseline.csv", "null/baseline.summary.json"}, keys)
}

func TestLoadGraph(t *testing.T) {
	g, err := LoadGraph(context.Background(), config.GraphConfig{Mock: 50}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, g.Len())
	assert.ElementsMatch(t, MockCategories, g.Categories())

	_, err = LoadGraph(context.Background(), config.GraphConfig{}, 1, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestNewLogger_Redacts(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, true, "debug")
	log.Debug("uploading", "bucket", "reports", "secret_access_key", "AKIA...", "Token", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "reports", rec["bucket"])
	assert.Equal(t, "[REDACTED]", rec["secret_access_key"])
	assert.Equal(t, "[REDACTED]", rec["Token"])
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, false, "warn")
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestArtifacts_EnrichCSV(t *testing.T) {
	as, err := Artifacts(report.FormatCSV, "enrich/x", &EnrichReport{})
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, "enrich/x.csv", as[0].Key)

	as, err = Artifacts(report.FormatJSON, "path/p", &PathResult{})
	require.NoError(t, err)
	assert.Equal(t, "path/p.json", as[0].Key)
}
