package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/engine"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/plan"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarize the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			info, err := e.Info(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: engine.KindInfo, Name: "graph", Value: info})
		},
	}
}

func (a *app) rankCmd() *cobra.Command {
	var (
		topics     []string
		categories []string
		top        int
		damping    float64
		iterations int
		tolerance  float64
		name       string
	)
	cmd := &cobra.Command{
		Use:     "rank",
		Short:   "Rank nodes by personalized PageRank from topic nodes",
		Example: "  kgexplain rank --graph edges.tsv --topics HGNC:1100,HGNC:1101 --top 20",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			opts := e.RankOptions()
			if cmd.Flags().Changed("top") {
				opts.Top = top
			}
			if cmd.Flags().Changed("damping") {
				opts.Damping = damping
			}
			if cmd.Flags().Changed("max-iterations") {
				opts.MaxIterations = iterations
			}
			if cmd.Flags().Changed("tolerance") {
				opts.Tolerance = tolerance
			}
			opts.Categories = categories

			res, err := e.Rank(cmd.Context(), topics, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: plan.KindRank, Name: name, Value: res})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&topics, "topics", nil, "Topic node ids (comma-separated)")
	f.StringSliceVar(&categories, "categories", nil, "Only list nodes of these categories")
	f.IntVar(&top, "top", 0, "Keep the top N nodes")
	f.Float64Var(&damping, "damping", config.DefaultDamping, "Probability of following an edge")
	f.IntVar(&iterations, "max-iterations", config.DefaultMaxIterations, "Power iterations")
	f.Float64Var(&tolerance, "tolerance", 0, "Stop early once the L1 change drops below this")
	f.StringVar(&name, "name", "ranks", "Artifact name")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func (a *app) explainCmd() *cobra.Command {
	var (
		terminals []string
		strategy  string
		compare   bool
		name      string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Connect terminal nodes with a Steiner tree",
		Example: `  kgexplain explain --terminals HGNC:1100,HGNC:1101,MONDO:0007254
  kgexplain explain --terminals a,b,c --compare`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			var value any
			if compare {
				value, err = e.Compare(cmd.Context(), terminals)
			} else {
				value, err = e.Explain(cmd.Context(), terminals, strategy)
			}
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: plan.KindExplain, Name: name, Value: value})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&terminals, "terminals", nil, "Terminal node ids (comma-separated)")
	f.StringVar(&strategy, "strategy", "", "nearest-fragment (takahashi), two-phase (mehlhorn), metric-closure (kou) or shortest-paths")
	f.BoolVar(&compare, "compare", false, "Build a tree with every strategy")
	f.StringVar(&name, "name", "tree", "Artifact name")
	_ = cmd.MarkFlagRequired("terminals")
	return cmd
}

// universeFlags registers the three mutually exclusive ways to name a universe.
func universeFlags(cmd *cobra.Command, u *engine.UniverseSpec) {
	f := cmd.Flags()
	f.StringVar(&u.Category, "category", "", "Universe: every node of this category")
	f.StringSliceVar(&u.IDs, "universe", nil, "Universe: explicit node ids")
	f.StringVar(&u.Selector, "universe-expr", "", `Universe: CEL expression, e.g. 'category == "Gene" && degree > 5'`)
	cmd.MarkFlagsMutuallyExclusive("category", "universe", "universe-expr")
	cmd.MarkFlagsOneRequired("category", "universe", "universe-expr")
}

func (a *app) enrichCmd() *cobra.Command {
	var (
		req     engine.EnrichRequest
		queries []string
		name    string
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Test neighbours of query sets for over-representation",
		Example: `  kgexplain enrich --query HGNC:1100,HGNC:1101 --query HGNC:7 --category Gene
  kgexplain enrich --query a,b --universe-expr 'source == "HGNC"' --adjust`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, q := range queries {
				req.Queries = append(req.Queries, splitIDs([]string{q}))
			}
			if !cmd.Flags().Changed("adjust") {
				req.Adjust = a.cfg.Enrich.Adjust
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := e.Enrich(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: plan.KindEnrich, Name: name, Value: rep})
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&queries, "query", nil, "Query set (comma-separated ids); repeat for a batch")
	f.Float64Var(&req.Alpha, "alpha", 0, "Significance threshold for the printed report (default from config)")
	f.BoolVar(&req.Adjust, "adjust", false, "Apply Benjamini-Hochberg per query")
	f.StringVar(&name, "name", "enrichment", "Artifact name")
	universeFlags(cmd, &req.Universe)
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func (a *app) nullCmd() *cobra.Command {
	var (
		req  engine.NullRequest
		name string
	)
	cmd := &cobra.Command{
		Use:   "null",
		Short: "Sample random node sets to build a null distribution",
		Example: `  kgexplain null --category Gene --size 20 --samples 1000 --workers 8
  kgexplain null --category Gene --size 20 --degree-matched --reference a,b,c --observed a,b,c`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("size") {
				req.SetSize = a.cfg.NullModel.SetSize
			}
			if req.DegreeMatched && len(req.Reference) == 0 {
				req.Reference = req.Observed
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := e.Null(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: plan.KindNull, Name: name, Value: rep})
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.SetSize, "size", config.DefaultSetSize, "Nodes per sampled set")
	f.IntVar(&req.Samples, "samples", 0, "Number of sets (default from config)")
	f.BoolVar(&req.DegreeMatched, "degree-matched", false, "Weight draws by a degree KDE of the reference set")
	f.StringSliceVar(&req.Reference, "reference", nil, "Reference ids for degree matching (default --observed)")
	f.StringSliceVar(&req.Targets, "targets", nil, "Also measure distance to these ids")
	f.StringSliceVar(&req.Observed, "observed", nil, "Observed set scored against the null")
	f.IntVar(&req.Workers, "workers", 0, "Parallel workers (default from config)")
	f.Uint64Var(&req.Seed, "seed", 0, "Random seed (default from config)")
	f.StringVar(&name, "name", "null", "Artifact name")
	universeFlags(cmd, &req.Universe)
	return cmd
}

func (a *app) pathCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print one shortest path between two nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := e.Path(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, engine.Result{Kind: engine.KindPath, Name: "path", Value: res})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source node id")
	cmd.Flags().StringVar(&to, "to", "", "Target node id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:     "run <plan.hcl>",
		Short:   "Execute an HCL analysis plan",
		Example: "  kgexplain run plan.hcl --var terminals=HGNC:1100,HGNC:1101 --output s3://reports/run-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseVars(vars)
			if err != nil {
				return err
			}
			p, err := plan.ParseFile(args[0], values)
			if err != nil {
				return err
			}

			gc := a.cfg.Graph
			flags := cmd.Flags()
			if p.Graph != nil && !flags.Changed("graph") && !flags.Changed("mock") {
				gc = config.GraphConfig{Path: p.Graph.Path, Directed: p.Graph.Directed, Mock: p.Graph.Mock}
			}
			e, err := a.engineFor(cmd.Context(), gc)
			if err != nil {
				return err
			}
			results, err := e.Execute(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), e, results...)
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Plan variable key=value; commas make a list")
	return cmd
}

func parseVars(kvs []string) (map[string]string, error) {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --var %q is not key=value", graph.ErrInvalidArgument, kv)
		}
		out[k] = v
	}
	return out, nil
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Dump(a.out, a.cfg)
		},
	}
}
