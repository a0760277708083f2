package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/engine"
	"github.com/DrSkyle/kgexplain/pkg/telemetry"
	"github.com/DrSkyle/kgexplain/pkg/version"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool

	cfg      config.Config
	shutdown func(context.Context) error
	out      io.Writer
	errOut   io.Writer
}

// Execute runs the CLI and exits 1 on error.
func Execute() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "kgexplain",
		Short: "Explain gene and entity sets against a biomedical knowledge graph",
		Long: `kgexplain - Knowledge Graph Explanation Engine

Rank. Connect. Enrich. Compare against chance.`,
		Version:           version.Current,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(cmd.Context())
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default $HOME/.kgexplain.yaml)")
	pf.String("graph", "", "Edge list (CSV/TSV, optionally .gz)")
	pf.Bool("directed", false, "Treat edges as directed")
	pf.Int("mock", 0, "Generate a Barabasi-Albert graph with this many nodes")
	pf.String("output", "", "Export directory or s3://bucket/prefix")
	pf.String("format", config.DefaultFormat, "Export format: json or csv")
	pf.Bool("json-logs", false, "Emit JSON logs")
	pf.String("otel-endpoint", "", "OTLP HTTP endpoint for traces")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	for key, flag := range map[string]string{
		"graph.path":         "graph",
		"graph.directed":     "directed",
		"graph.mock":         "mock",
		"output.dir":         "output",
		"output.format":      "format",
		"logging.json":       "json-logs",
		"telemetry.endpoint": "otel-endpoint",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.AddCommand(
		a.infoCmd(),
		a.rankCmd(),
		a.explainCmd(),
		a.enrichCmd(),
		a.nullCmd(),
		a.pathCmd(),
		a.runCmd(),
		a.configCmd(),
	)
	return rootCmd
}

// setup loads the configuration, installs the logger and starts tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWith(a.v, a.configPath())
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	logger := engine.NewLogger(a.errOut, cfg.Logging.JSON, cfg.Logging.Level)
	slog.SetDefault(logger)

	if !cfg.Telemetry.Disabled {
		shutdown, err := telemetry.Init(cmd.Context(), telemetry.Options{
			ServiceName:    version.AppName,
			ServiceVersion: version.Current,
			Endpoint:       cfg.Telemetry.Endpoint,
		})
		if err != nil {
			logger.Warn("Telemetry failed", "error", err)
		} else {
			a.shutdown = shutdown
		}
	}
	return nil
}

// configPath returns the explicit --config file, or the home default when it exists.
func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".kgexplain.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("KGEXPLAIN %s", version.Current)))
	fmt.Fprintln(w, cmd.Short)

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	if cmd.Example != "" {
		fmt.Fprintln(w, titleStyle.Render("EXAMPLES"))
		fmt.Fprintln(w, cmd.Example)
		fmt.Fprintln(w)
	}

	printFlags := func(title string, set *pflag.FlagSet) {
		if !set.HasAvailableFlags() {
			return
		}
		fmt.Fprintln(w, titleStyle.Render(title))
		set.VisitAll(func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			output := fmt.Sprintf("  --%-18s %s", f.Name, f.Usage)
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
				output += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			fmt.Fprintln(w, flagStyle.Render(output))
		})
		fmt.Fprintln(w)
	}
	printFlags("FLAGS", cmd.LocalFlags())
	printFlags("GLOBAL FLAGS", cmd.InheritedFlags())
}
