// Package report renders analysis results as JSON, CSV and terminal tables.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/DrSkyle/kgexplain/pkg/enrich"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/nullmodel"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
	"github.com/DrSkyle/kgexplain/pkg/storage"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" and "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", graph.ErrInvalidArgument, s)
}

// Artifact is one encoded result ready for a BlobStore.
type Artifact struct {
	Key  string
	Data []byte
}

// JSON encodes v with two-space indentation and a trailing newline.
func JSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Encode renders v under name in the given format. CSV is supported for the
// result types of every analysis; anything else falls back to JSON.
func Encode(format Format, name string, v any) (Artifact, error) {
	if format == FormatCSV {
		data, ok, err := encodeCSV(v)
		if err != nil {
			return Artifact{}, err
		}
		if ok {
			return Artifact{Key: name + ".csv", Data: data}, nil
		}
	}
	data, err := JSON(v)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Artifact{Key: name + ".json", Data: data}, nil
}

// Export writes every artifact to store.
func Export(ctx context.Context, store storage.BlobStore, artifacts ...Artifact) error {
	for _, a := range artifacts {
		if err := store.Put(ctx, a.Key, a.Data); err != nil {
			return err
		}
		slog.Debug("artifact written", "key", a.Key, "bytes", len(a.Data))
	}
	return nil
}

func encodeCSV(v any) ([]byte, bool, error) {
	var rows [][]string
	switch r := v.(type) {
	case *rank.Result:
		rows = RanksTable(r)
	case *steiner.Tree:
		rows = TreeTable(r)
	case []*steiner.Tree:
		rows = SummaryTable(r)
	case enrich.Mapping:
		rows = EnrichmentTable([]enrich.Mapping{r})
	case []enrich.Mapping:
		rows = EnrichmentTable(r)
	case []nullmodel.Stats:
		rows = StatsTable(r)
	default:
		return nil, false, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, true, err
	}
	return buf.Bytes(), true, nil
}

func ff(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

// RanksTable is a header row plus one row per ranked node.
func RanksTable(r *rank.Result) [][]string {
	rows := [][]string{{"rank", "id", "name", "category", "score"}}
	for i, s := range r.Ranked {
		rows = append(rows, []string{strconv.Itoa(i + 1), s.ID, s.Name, s.Category, ff(s.Score)})
	}
	return rows
}

// TreeTable lists tree edges.
func TreeTable(t *steiner.Tree) [][]string {
	rows := [][]string{{"strategy", "source", "target"}}
	for _, e := range t.Edges {
		rows = append(rows, []string{string(t.Strategy), e[0], e[1]})
	}
	return rows
}

// SummaryTable compares tree sizes across strategies.
func SummaryTable(trees []*steiner.Tree) [][]string {
	rows := [][]string{{"strategy", "nodes", "edges", "steiner_nodes"}}
	for _, t := range trees {
		s := t.Summary()
		rows = append(rows, []string{string(s.Strategy), strconv.Itoa(s.Nodes), strconv.Itoa(s.Edges), strconv.Itoa(s.SteinerNodes)})
	}
	return rows
}

// EnrichmentTable flattens one mapping per query, most significant first.
func EnrichmentTable(ms []enrich.Mapping) [][]string {
	rows := [][]string{{"query", "id", "p_value", "q_value", "observed", "k_universe", "population", "draws", "overlap"}}
	for q, m := range ms {
		for _, e := range m.Sorted() {
			rows = append(rows, []string{
				strconv.Itoa(q),
				e.ID,
				ff(e.PValue),
				ff(e.QValue),
				strconv.Itoa(e.Observed()),
				strconv.Itoa(e.K),
				strconv.Itoa(e.Population),
				strconv.Itoa(e.Draws),
				strings.Join(e.Overlap, ";"),
			})
		}
	}
	return rows
}

// StatsTable has one row per sampled or observed set.
func StatsTable(records []nullmodel.Stats) [][]string {
	rows := [][]string{{"sample", "average_pairwise_distance", "degree_mean", "degree_std", "clustering", "average_jaccard", "average_target_distance", "disconnected_pairs"}}
	for i, s := range records {
		target := ""
		if s.AverageTargetDistance != nil {
			target = ff(*s.AverageTargetDistance)
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			ff(s.AveragePairwiseDistance),
			ff(s.MeanDegree),
			ff(s.StdDegree),
			ff(s.Clustering),
			ff(s.AverageJaccard),
			target,
			strconv.Itoa(s.DisconnectedPairs),
		})
	}
	return rows
}
