package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/engine"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/report"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
)

// engineFor loads the graph described by gc and wraps it in an engine.
func (a *app) engineFor(ctx context.Context, gc config.GraphConfig) (*engine.Engine, error) {
	g, err := engine.LoadGraph(ctx, gc, a.cfg.NullModel.Seed, slog.Default())
	if err != nil {
		return nil, err
	}
	return engine.New(g,
		engine.WithLogger(slog.Default()),
		engine.WithConfig(a.cfg),
	)
}

func (a *app) open(ctx context.Context) (*engine.Engine, error) {
	return a.engineFor(ctx, a.cfg.Graph)
}

// emit prints every result to the terminal and exports them when an output
// target is configured.
func (a *app) emit(ctx context.Context, e *engine.Engine, results ...engine.Result) error {
	for _, r := range results {
		if err := a.print(r); err != nil {
			return err
		}
	}
	if a.cfg.Output.Dir == "" {
		return nil
	}
	format, err := report.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := e.Export(ctx, a.cfg.Output.Dir, format, results...); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(a.out, "\n[SUCCESS] %d result(s) exported to %s\n", len(results), a.cfg.Output.Dir)
	return nil
}

func (a *app) print(r engine.Result) error {
	switch v := r.Value.(type) {
	case graph.Info:
		return report.PrintInfo(a.out, v)
	case *rank.Result:
		return report.PrintRanks(a.out, v)
	case *steiner.Tree:
		return report.PrintTrees(a.out, v)
	case []*steiner.Tree:
		return report.PrintTrees(a.out, v...)
	case *engine.EnrichReport:
		return report.PrintEnrichment(a.out, v.Results, v.Alpha, v.Adjusted)
	case *engine.NullReport:
		return report.PrintNull(a.out, v.Summary, v.Observed)
	case *engine.PathResult:
		if v.Path == nil {
			_, err := fmt.Fprintf(a.out, "%s and %s are not connected\n", v.From, v.To)
			return err
		}
		_, err := fmt.Fprintf(a.out, "distance %d: %s\n", v.Distance, strings.Join(v.Path, " -> "))
		return err
	}
	data, err := report.JSON(r.Value)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

// splitIDs flattens comma-separated flag values and drops blanks.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
