package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/kgexplain/pkg/enrich"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/nullmodel"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
	"github.com/DrSkyle/kgexplain/pkg/storage"
)

func ranks() *rank.Result {
	return &rank.Result{
		Topics: []string{"Gene::1"},
		Ranked: []rank.Scored{
			{ID: "Gene::1", Name: "BRCA1", Category: "Gene", Score: 0.5},
			{ID: "Pathway::9", Name: "DNA repair", Category: "Pathway", Score: 0.25},
		},
		Iterations: 50,
	}
}

func tree() *steiner.Tree {
	return &steiner.Tree{
		Strategy:  steiner.NearestFragment,
		Terminals: []string{"a", "c"},
		Nodes:     []string{"a", "b", "c"},
		Edges:     [][2]string{{"a", "b"}, {"b", "c"}},
	}
}

func mapping() enrich.Mapping {
	return enrich.Mapping{
		"p1": {PValue: 0.5, QValue: 0.5, Overlap: []string{"g1", "g2"}, K: 2, Population: 4, Draws: 2},
		"p2": {PValue: 1, QValue: 1, Overlap: []string{}, K: 1, Population: 4, Draws: 2},
	}
}

func records() []nullmodel.Stats {
	target := 2.0
	return []nullmodel.Stats{
		{AveragePairwiseDistance: 1.5, MeanDegree: 2, StdDegree: 0.5, Clustering: 1, AverageJaccard: 0.25, DisconnectedPairs: 1},
		{AveragePairwiseDistance: 2, MeanDegree: 3, AverageTargetDistance: &target},
	}
}

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t)

	tests := []struct {
		name   string
		format Format
		value  any
		key    string
	}{
		{"ranks", FormatCSV, ranks(), "ranks.csv"},
		{"tree", FormatJSON, tree(), "tree.json"},
		{"enrichment", FormatCSV, mapping(), "enrichment.csv"},
		{"stats", FormatCSV, records(), "stats.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Encode(tt.format, tt.name, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.key, a.Key)
			g.Assert(t, tt.name, a.Data)
		})
	}
}

func TestEncode_CSVFallsBackToJSON(t *testing.T) {
	a, err := Encode(FormatCSV, "info", graph.Info{Nodes: 1})
	require.NoError(t, err)
	assert.Equal(t, "info.json", a.Key)
	assert.True(t, strings.HasSuffix(string(a.Data), "}\n"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir())
	a, err := Encode(FormatJSON, "run/tree", tree())
	require.NoError(t, err)
	require.NoError(t, Export(ctx, store, a))

	data, err := store.Get(ctx, "run/tree.json")
	require.NoError(t, err)
	assert.Equal(t, a.Data, data)
}

func TestPrinters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintRanks(&buf, ranks()))
	require.NoError(t, PrintTrees(&buf, tree(), &steiner.Tree{Strategy: steiner.TwoPhase, Nodes: []string{"a"}}))
	require.NoError(t, PrintEnrichment(&buf, []enrich.Mapping{mapping()}, 0.5, false))
	require.NoError(t, PrintInfo(&buf, graph.Info{Nodes: 3, Edges: 2, Components: 1, Categories: map[string]int{"Gene": 3}}))

	sum := nullmodel.Summarize(records())
	obs := records()[0]
	require.NoError(t, PrintNull(&buf, sum, &obs))

	out := buf.String()
	for _, want := range []string{"BRCA1", "50 iterations", "nearest-fragment", "single node [a]", "p1", "1 at alpha 0.5", "Gene", "average target distance", "disconnected pairs"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "p2", "p2 is above alpha")
}
