package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/DrSkyle/kgexplain/pkg/enrich"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/nullmodel"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
)

var (
	colorNeonGreen  = lipgloss.Color("#00FF99")
	colorNeonPurple = lipgloss.Color("#874BFD")
	colorTextSub    = lipgloss.Color("#64748B")

	titleStyle  = lipgloss.NewStyle().Foreground(colorNeonPurple).Bold(true).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Foreground(colorNeonGreen).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	subtle      = lipgloss.NewStyle().Foreground(colorTextSub)
)

// Table renders rows (first row is the header) with a rounded border.
func Table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorTextSub)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(rows[0]...).
		Rows(rows[1:]...)
	return t.Render()
}

func section(w io.Writer, title string, rows [][]string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), Table(rows))
	return err
}

func short(x float64) string { return strconv.FormatFloat(x, 'g', 4, 64) }

// PrintInfo writes a graph summary.
func PrintInfo(w io.Writer, info graph.Info) error {
	rows := [][]string{
		{"metric", "value"},
		{"nodes", strconv.Itoa(info.Nodes)},
		{"edges", strconv.Itoa(info.Edges)},
		{"directed", strconv.FormatBool(info.Directed)},
		{"components", strconv.Itoa(info.Components)},
		{"max degree", strconv.Itoa(info.MaxDegree)},
		{"mean degree", short(info.MeanDegree)},
	}
	if err := section(w, "Graph", rows); err != nil {
		return err
	}

	cats := make([]string, 0, len(info.Categories))
	for c := range info.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	catRows := [][]string{{"category", "nodes"}}
	for _, c := range cats {
		catRows = append(catRows, []string{c, strconv.Itoa(info.Categories[c])})
	}
	return section(w, "Categories", catRows)
}

// PrintRanks writes the ranked list.
func PrintRanks(w io.Writer, r *rank.Result) error {
	rows := RanksTable(r)
	for _, row := range rows[1:] {
		if s, err := strconv.ParseFloat(row[4], 64); err == nil {
			row[4] = short(s)
		}
	}
	title := fmt.Sprintf("Personalized PageRank (%d iterations)", r.Iterations)
	return section(w, title, rows)
}

// PrintTrees writes one summary row per tree, then the edges of each.
func PrintTrees(w io.Writer, trees ...*steiner.Tree) error {
	if err := section(w, "Steiner trees", SummaryTable(trees)); err != nil {
		return err
	}
	for _, t := range trees {
		if len(t.Edges) == 0 {
			if _, err := fmt.Fprintln(w, subtle.Render(fmt.Sprintf("%s: single node %v", t.Strategy, t.Nodes))); err != nil {
				return err
			}
			continue
		}
		rows := [][]string{{"source", "target"}}
		for _, e := range t.Edges {
			rows = append(rows, []string{e[0], e[1]})
		}
		if err := section(w, string(t.Strategy), rows); err != nil {
			return err
		}
	}
	return nil
}

// PrintEnrichment writes the significant entries of each query.
func PrintEnrichment(w io.Writer, ms []enrich.Mapping, alpha float64, adjusted bool) error {
	for q, m := range ms {
		rows := [][]string{{"id", "p", "q", "overlap", "K", "N", "n"}}
		for _, e := range m.Significant(alpha, adjusted) {
			rows = append(rows, []string{
				e.ID, short(e.PValue), short(e.QValue), strconv.Itoa(e.Observed()),
				strconv.Itoa(e.K), strconv.Itoa(e.Population), strconv.Itoa(e.Draws),
			})
		}
		title := fmt.Sprintf("Enrichment query %d (%d tested, %d at alpha %g)", q, len(m), len(rows)-1, alpha)
		if err := section(w, title, rows); err != nil {
			return err
		}
	}
	return nil
}

// PrintNull writes null-distribution moments. With observed set, each metric
// gains its value and z-score.
func PrintNull(w io.Writer, sum nullmodel.Summary, observed *nullmodel.Stats) error {
	type metric struct {
		name string
		null nullmodel.Moments
		obs  float64
	}
	metrics := []metric{
		{"average pairwise distance", sum.AveragePairwiseDistance, 0},
		{"degree mean", sum.MeanDegree, 0},
		{"degree std", sum.StdDegree, 0},
		{"clustering", sum.Clustering, 0},
		{"average jaccard", sum.AverageJaccard, 0},
	}
	if observed != nil {
		metrics[0].obs = observed.AveragePairwiseDistance
		metrics[1].obs = observed.MeanDegree
		metrics[2].obs = observed.StdDegree
		metrics[3].obs = observed.Clustering
		metrics[4].obs = observed.AverageJaccard
	}
	if sum.AverageTargetDistance != nil {
		m := metric{name: "average target distance", null: *sum.AverageTargetDistance}
		if observed != nil && observed.AverageTargetDistance != nil {
			m.obs = *observed.AverageTargetDistance
		}
		metrics = append(metrics, m)
	}

	header := []string{"metric", "mean", "std", "n"}
	if observed != nil {
		header = append(header, "observed", "z")
	}
	rows := [][]string{header}
	for _, m := range metrics {
		row := []string{m.name, short(m.null.Mean), short(m.null.Std), strconv.Itoa(m.null.N)}
		if observed != nil {
			row = append(row, short(m.obs), short(nullmodel.ZScore(m.obs, m.null)))
		}
		rows = append(rows, row)
	}
	title := fmt.Sprintf("Null model (%d samples, %d disconnected pairs)", sum.Samples, sum.DisconnectedPairs)
	return section(w, title, rows)
}
