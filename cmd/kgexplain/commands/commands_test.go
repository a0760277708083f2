package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/kgexplain/pkg/graph"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KGEXPLAIN_TELEMETRY_DISABLED", "true")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfo(t *testing.T) {
	out, err := run(t, "--mock", "60", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph")
	assert.Contains(t, out, "60")
	assert.Contains(t, out, "Pathway")
}

func TestRank(t *testing.T) {
	out, err := run(t, "--mock", "60", "rank", "--topics", "node-0,node-1", "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Personalized PageRank")
	// Topics are left out of the ranking.
	assert.NotRegexp(t, `\bnode-[01]\b`, out)
	assert.Regexp(t, `\bnode-\d+\b`, out)
}

func TestRank_RequiresTopics(t *testing.T) {
	_, err := run(t, "--mock", "60", "rank")
	assert.Error(t, err)
}

func TestExplain_ExportsCSV(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "--mock", "80", "--output", dir, "--format", "csv", "explain", "--terminals", "node-1,node-7,node-30")
	require.NoError(t, err)
	assert.Contains(t, out, "[SUCCESS]")

	data, err := os.ReadFile(filepath.Join(dir, "explain", "tree.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "strategy,source,target")
}

func TestEnrich_UniverseFlagsAreExclusive(t *testing.T) {
	_, err := run(t, "--mock", "60", "enrich", "--query", "node-0", "--category", "Gene", "--universe-expr", "degree > 1")
	assert.Error(t, err)

	out, err := run(t, "--mock", "60", "enrich", "--query", "node-0,node-4", "--query", "node-8", "--category", "Gene")
	require.NoError(t, err)
	assert.Contains(t, out, "Enrichment query 1")
}

func TestNull(t *testing.T) {
	out, err := run(t, "--mock", "80", "null", "--category", "Gene", "--size", "4", "--samples", "6", "--workers", "2",
		"--observed", "node-0,node-4,node-8,node-12")
	require.NoError(t, err)
	assert.Contains(t, out, "Null model (6 samples")
	assert.Contains(t, out, "observed")
}

func TestPath(t *testing.T) {
	out, err := run(t, "--mock", "30", "path", "--from", "node-0", "--to", "node-0")
	require.NoError(t, err)
	assert.Contains(t, out, "distance 0: node-0")

	_, err = run(t, "--mock", "30", "path", "--from", "node-0", "--to", "ghost")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestRunPlan(t *testing.T) {
	dir := t.TempDir()
	planFile := filepath.Join(dir, "plan.hcl")
	require.NoError(t, os.WriteFile(planFile, []byte(`
graph {
  mock = 90
}

rank "seeds" {
  topics = var.topics
  top    = 4
}

explain "tree" {
  terminals = var.topics
  compare   = true
}
`), 0644))

	outDir := filepath.Join(dir, "out")
	out, err := run(t, "--output", outDir, "run", planFile, "--var", "topics=node-2,node-9,node-33")
	require.NoError(t, err)
	assert.Contains(t, out, "Steiner trees")

	for _, key := range []string{"rank/seeds.json", "explain/tree.json"} {
		_, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(key)))
		assert.NoError(t, err, key)
	}
}

func TestConfig(t *testing.T) {
	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "damping: 0.7")
	assert.Contains(t, out, "strategy: nearest-fragment")
}

func TestConfig_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rank:\n  damping: 0.85\n"), 0644))

	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "damping: 0.85")
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"terminals=a,b", "alpha=0.1=x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"terminals": "a,b", "alpha": "0.1=x"}, vars)

	_, err = parseVars([]string{"=nokey"})
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
	_, err = parseVars([]string{"plain"})
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}
