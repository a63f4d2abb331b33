package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/contsim/internal/config"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/experiment"
	"github.com/san-kum/contsim/internal/metrics"
	"github.com/san-kum/contsim/internal/storage"
	"github.com/san-kum/contsim/internal/viz"
)

// resolveConfig layers the run configuration: defaults, then the preset,
// then the config file, then any flag set on the command line.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Problem = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Problem, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Problem))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			loaded.Problem = args[0]
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("lambda") {
		cfg.Start.Lambda = lambda0
	}
	if f.Changed("u") {
		cfg.Start.U = append([]float64(nil), u0...)
	}
	if f.Changed("param") {
		kv, err := parseParams(params)
		if err != nil {
			return nil, err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(kv))
		}
		for k, v := range kv {
			cfg.Params[k] = v
		}
	}
	if f.Changed("max-steps") {
		cfg.Stop.MaxSteps = maxSteps
	}
	if f.Changed("max-arclength") {
		cfg.Stop.MaxArclength = maxArclength
	}
	if f.Changed("lambda-min") {
		cfg.Stop.LambdaMin = lambdaMin
	}
	if f.Changed("lambda-max") {
		cfg.Stop.LambdaMax = lambdaMax
	}

	cc := &cfg.Continuation
	if f.Changed("direction") {
		cc.Direction = direction
	}
	if f.Changed("ds") {
		cc.Step.Initial = ds
	}
	if f.Changed("ds-max") {
		cc.Step.Max = dsMax
	}
	if f.Changed("weight") {
		cc.Weight = weight
	}
	if f.Changed("predictor") {
		cc.Predictor = predictor
	}
	if f.Changed("no-switch") {
		cc.Switching.Enabled = !noSwitch
	}
	if f.Changed("depth") {
		cc.Switching.MaxDepth = depth
	}
	if f.Changed("sequential") {
		cc.Switching.Parallel = !sequential
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseParams reads name=value pairs.
func parseParams(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value)", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", name)
		}
		out[name] = v
	}
	return out, nil
}

// serveMetrics exposes reg on addr until the returned stop function runs.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "metrics listener")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Warn("metrics server stopped")
		}
	}()
	logrus.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runContinuation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	exp.AddObserver(metrics.NewCollector(reg, cfg.Problem))
	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	fmt.Printf("continuing %s from λ=%g...\n", cfg.Problem, cfg.Start.Lambda)
	start := time.Now()

	tree, traceErr := exp.Run(cmd.Context())
	if tree == nil {
		return traceErr
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, tree, traceErr)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n\n", runID)
	printTree(os.Stdout, tree)

	if showPlot {
		fmt.Println()
		fmt.Print(viz.DiagramFromTree(tree, plotWidth, plotHeight, viz.NormMeasure).Render())
	}
	if traceErr != nil {
		fmt.Printf("\nbranch errors:\n%v\n", traceErr)
	}
	return nil
}

func printTree(w io.Writer, tree *continuation.Tree) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"branch", "parent", "depth", "points", "λ min", "λ max", "reason"})
	for _, b := range tree.Branches {
		s := metrics.Summarize(b.Points)
		table.Append([]string{
			b.ID, dash(b.Parent), strconv.Itoa(b.Depth), strconv.Itoa(s.Points),
			fmt.Sprintf("%.6g", s.LambdaMin), fmt.Sprintf("%.6g", s.LambdaMax), string(b.Reason),
		})
	}
	table.Render()

	if tree.Bifurcations() == 0 {
		fmt.Fprintln(w, "no bifurcations detected")
		return
	}
	fmt.Fprintln(w)
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"branch", "kind", "λ", "s", "test", "crossed", "localized"})
	for _, b := range tree.Branches {
		for _, r := range b.Bifurcations {
			table.Append([]string{
				b.ID, r.Kind.String(), fmt.Sprintf("%.8g", r.Lambda()), fmt.Sprintf("%.4f", r.Arclength),
				r.Test, fmt.Sprintf("%+d", r.Crossed), strconv.FormatBool(r.Localized),
			})
		}
	}
	table.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.Discard)

	d, err := viz.StartDriver(cmd.Context(), experiment.NewRegistry(), cfg, logrus.WithField("problem", cfg.Problem))
	if err != nil {
		return err
	}
	title := cfg.Problem
	if preset != "" {
		title += " / " + preset
	}
	return viz.RunLive(cmd.Context(), d, cfg.Terminator(), title, cfg.Stop.MaxSteps)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"run id", "problem", "time", "branches", "bifurcations", "status"})
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "errors"
		}
		table.Append([]string{
			r.ID, r.Problem, r.Timestamp.Format("2006-01-02 15:04:05"),
			strconv.Itoa(len(r.Branches)), strconv.Itoa(r.Bifurcations), status,
		})
	}
	table.Render()
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s (n=%d)\n", meta.Problem, meta.Dim)
	for _, k := range sortedKeys(meta.Params) {
		fmt.Printf("  %s = %g\n", k, meta.Params[k])
	}
	fmt.Printf("start: λ=%g\n\n", meta.Start.Lambda)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "branch", "parent", "depth", "points", "rejected", "arclength", "λ min", "λ max", "mean it", "stable", "reason"})
	for i, b := range meta.Branches {
		points, err := st.LoadBranch(meta.ID, i)
		if err != nil {
			return err
		}
		s := metrics.Summarize(points)
		stable := "-"
		if !math.IsNaN(s.Stability) {
			stable = fmt.Sprintf("%.0f%%", 100*s.Stability)
		}
		table.Append([]string{
			strconv.Itoa(i), b.ID, dash(b.Parent), strconv.Itoa(b.Depth), strconv.Itoa(s.Points),
			strconv.Itoa(b.Rejections), fmt.Sprintf("%.4f", s.Arclength),
			fmt.Sprintf("%.6g", s.LambdaMin), fmt.Sprintf("%.6g", s.LambdaMax),
			fmt.Sprintf("%.2f", s.MeanIterations), stable, b.Reason,
		})
	}
	table.Render()

	bifs, err := st.LoadBifurcations(meta.ID)
	if err != nil {
		return err
	}
	if len(bifs) == 0 {
		fmt.Println("no bifurcations detected")
		return nil
	}
	fmt.Println()
	table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"branch", "kind", "λ", "|u|", "test", "crossed", "iterations", "localized"})
	for _, r := range bifs {
		table.Append([]string{
			r.Branch, r.Kind.String(), fmt.Sprintf("%.8g", r.Lambda()), fmt.Sprintf("%.6g", r.X.U().Norm()),
			r.Test, fmt.Sprintf("%+d", r.Crossed), strconv.Itoa(r.Iterations), strconv.FormatBool(r.Localized),
		})
	}
	table.Render()
	if meta.Error != "" {
		fmt.Printf("\nerrors: %s\n", meta.Error)
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	measure, label := viz.NormMeasure, "|u|"
	if component >= 0 {
		if component >= meta.Dim {
			return fmt.Errorf("component %d out of range (n=%d)", component, meta.Dim)
		}
		measure, label = viz.ComponentMeasure(component), fmt.Sprintf("u[%d]", component)
	}

	d := viz.NewDiagram(plotWidth, plotHeight, measure)
	for i := range meta.Branches {
		points, err := st.LoadBranch(meta.ID, i)
		if err != nil {
			return err
		}
		d.AddBranch(points)
	}
	bifs, err := st.LoadBifurcations(meta.ID)
	if err != nil {
		return err
	}
	for _, r := range bifs {
		d.AddBifurcation(r.Record)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s, %s against λ\n\n", meta.Problem, label)
	fmt.Print(d.Render())
	fmt.Println("\nF fold  B branch point  H hopf  ? unclassified  ··· unstable")

	if plotBranch >= 0 {
		points, err := st.LoadBranch(meta.ID, plotBranch)
		if err != nil {
			return err
		}
		lambdas := make([]float64, len(points))
		for i, p := range points {
			lambdas[i] = p.Lambda()
		}
		if len(lambdas) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(lambdas,
				asciigraph.Height(10),
				asciigraph.Width(plotWidth),
				asciigraph.Caption(fmt.Sprintf("λ per step, branch %d", plotBranch))))
		}
	}
	return nil
}

// output returns stdout or the --output file.
func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportJSON(w, args[0]); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportCSV(w, args[0], csvBranch); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func listPresets(cmd *cobra.Command, args []string) error {
	problems := experiment.NewRegistry().ListProblems()
	if len(args) > 0 {
		problems = args[:1]
	}
	for _, p := range problems {
		presets := config.ListPresets(p)
		if len(presets) == 0 {
			fmt.Printf("no presets for problem: %s\n", p)
			continue
		}
		fmt.Printf("presets for %s:\n", p)
		for _, name := range presets {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func listProblems(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"problem", "description", "parameters"})
	for _, name := range reg.ListProblems() {
		ps, err := reg.Params(name)
		if err != nil {
			return err
		}
		var parts []string
		for _, k := range sortedKeys(ps) {
			parts = append(parts, fmt.Sprintf("%s=%g", k, ps[k]))
		}
		table.Append([]string{name, reg.Describe(name), strings.Join(parts, " ")})
	}
	table.Render()
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
