package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/contsim/internal/experiment"
	"github.com/san-kum/contsim/internal/viz"
)

var (
	dataDir  string
	logLevel string

	configFile   string
	preset       string
	lambda0      float64
	u0           []float64
	params       []string
	maxSteps     int
	maxArclength float64
	lambdaMin    float64
	lambdaMax    float64
	direction    float64
	ds           float64
	dsMax        float64
	weight       float64
	predictor    string
	noSwitch     bool
	depth        int
	sequential   bool
	metricsAddr  string
	showPlot     bool

	component  int
	plotWidth  int
	plotHeight int
	plotBranch int
	csvBranch  int
	outFile    string
)

// main registers the contsim commands. Without a subcommand it opens the
// interactive problem picker.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "contsim",
		Short: "numerical continuation and bifurcation lab",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.SetOutput(io.Discard)
			return viz.RunInteractive(cmd.Context(), experiment.NewRegistry())
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".contsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "trace the branch tree of a problem",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runContinuation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSwitch, "no-switch", false, "do not start branches at branch points")
	runCmd.Flags().IntVar(&depth, "depth", 2, "maximum branch switching depth")
	runCmd.Flags().BoolVar(&sequential, "sequential", false, "trace child branches one at a time")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "print the branch diagram when done")
	runCmd.Flags().IntVar(&plotWidth, "width", 70, "diagram width in cells")
	runCmd.Flags().IntVar(&plotHeight, "height", 20, "diagram height in cells")

	liveCmd := &cobra.Command{
		Use:   "live [problem]",
		Short: "continue a single branch with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show branches and bifurcations of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the branch diagram of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&component, "component", -1, "plot u[i] instead of |u|")
	plotCmd.Flags().IntVar(&plotWidth, "width", 70, "diagram width in cells")
	plotCmd.Flags().IntVar(&plotHeight, "height", 20, "diagram height in cells")
	plotCmd.Flags().IntVar(&plotBranch, "branch", -1, "also plot λ along this branch")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export one branch of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	exportCSVCmd.Flags().IntVar(&csvBranch, "branch", 0, "branch index")

	presetsCmd := &cobra.Command{
		Use:   "presets [problem]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	problemsCmd := &cobra.Command{
		Use:   "problems",
		Short: "list built-in problems",
		RunE:  listProblems,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, showCmd, plotCmd, exportJSONCmd, exportCSVCmd, presetsCmd, problemsCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&lambda0, "lambda", 0, "starting parameter value")
	f.Float64SliceVar(&u0, "u", nil, "starting guess for u (comma separated)")
	f.StringArrayVar(&params, "param", nil, "problem parameter name=value (repeatable)")
	f.IntVar(&maxSteps, "max-steps", 200, "maximum steps per branch")
	f.Float64Var(&maxArclength, "max-arclength", 0, "maximum arclength per branch (0 disables)")
	f.Float64Var(&lambdaMin, "lambda-min", -1, "lower parameter bound")
	f.Float64Var(&lambdaMax, "lambda-max", 1, "upper parameter bound")
	f.Float64Var(&direction, "direction", 1, "initial direction of λ (+1 or -1)")
	f.Float64Var(&ds, "ds", 0.05, "initial arclength step")
	f.Float64Var(&dsMax, "ds-max", 0.25, "maximum arclength step")
	f.Float64Var(&weight, "weight", 0.5, "weight of u in the arclength constraint")
	f.StringVar(&predictor, "predictor", "tangent", "predictor (tangent, secant)")
}
