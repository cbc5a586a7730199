package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/octoarm/internal/analysis"
	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/experiment"
	"github.com/san-kum/octoarm/internal/optim"
	"github.com/san-kum/octoarm/internal/storage"
	"github.com/san-kum/octoarm/internal/viz"
)

// convergenceWindow is the number of trailing iterations used to estimate
// the contraction rate.
const convergenceWindow = 50

var (
	dataDir    string
	configFile string
	preset     string
	stepsize   float64
	tolerance  float64
	maxIter    int
	workers    int
	logLevel   string
	plot       bool
	save       bool
	sweepVals  string
	sweepBy    string
	ticksSteps int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "octoarm",
		Short:        "optimal muscle activations for a quasi-static octopus arm",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".octoarm", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().Float64Var(&stepsize, "stepsize", 0, "activation descent rate")
	rootCmd.PersistentFlags().Float64Var(&tolerance, "tol", 0, "activation difference tolerance")
	rootCmd.PersistentFlags().IntVar(&maxIter, "max-iter", 0, "maximum number of iterations")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent muscle evaluations")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "solve for the muscle activations",
		RunE:  runSolve,
	}
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot activation profiles and convergence")
	runCmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "solve with a live convergence monitor",
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&ticksSteps, "steps-per-tick", 10, "iterations per frame")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search an algorithm parameter",
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepBy, "param", "stepsize", "parameter to sweep")
	sweepCmd.Flags().StringVar(&sweepVals, "values", "1e-8,1e-7,1e-6", "comma separated values")
	sweepCmd.Flags().String("metric", "tip_distance", "metric to minimise")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tELEMENTS\tLAYOUT\tTARGET")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, p.Rod.NElements, p.Muscles.Layout, p.Target.Kind)
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, presetsCmd, configCmd, listCmd, plotCmd, exportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig starts from the defaults, then a preset, then a config file, and
// finally applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("stepsize") {
		cfg.Algorithm.Stepsize = stepsize
	}
	if flags.Changed("tol") {
		cfg.Algorithm.ActivationDiffTolerance = tolerance
	}
	if flags.Changed("max-iter") {
		cfg.Algorithm.MaxIterNumber = maxIter
	}
	if flags.Changed("workers") {
		cfg.Algorithm.Workers = workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = lvl
	return zc.Build()
}

func setup(cmd *cobra.Command) (*experiment.Experiment, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return exp, log, nil
}

func runName() string {
	if preset != "" {
		return preset
	}
	if configFile != "" {
		return strings.TrimSuffix(strings.TrimSuffix(configFile, ".yaml"), ".yml")
	}
	return "default"
}

func runSolve(cmd *cobra.Command, args []string) error {
	exp, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	hist := &storage.History{}
	exp.Driver().AddObserver(hist)

	fmt.Printf("solving %s (%d elements, %d muscle groups)...\n", runName(), exp.Rod().NElements, len(exp.Groups()))
	start := time.Now()
	result, runErr := exp.Run(cmd.Context())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("status: %s\n", result.Status)
	fmt.Printf("iterations: %d\n", result.Iterations)
	fmt.Printf("activation diff: %.3e\n", result.ActivationDiff)
	tip := exp.Rod().Tip()
	fmt.Printf("tip: (%.5f, %.5f, %.5f)\n", tip.X, tip.Y, tip.Z)
	if rate, err := analysis.ContractionRate(hist.Diffs, convergenceWindow); err == nil {
		fmt.Printf("contraction rate: %.4f per iteration\n", rate)
		if result.Status != control.Converged {
			if n, err := analysis.IterationsToTolerance(hist.Diffs, exp.Config().Algorithm.ActivationDiffTolerance, convergenceWindow); err == nil {
				fmt.Printf("estimated iterations to tolerance: %g\n", n)
			}
		}
	}
	printMetrics(result.Metrics)

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(runName(), exp, result, hist)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	if plot {
		plotActivations(exp, result)
		plotHistory(hist.Diffs)
	}
	return runErr
}

func printMetrics(metrics map[string]float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nMETRIC\tVALUE")
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", name, metrics[name])
	}
	w.Flush()
}

func plotActivations(exp *experiment.Experiment, result *control.Result) {
	for i, g := range exp.Groups() {
		a := result.Activations[i]
		if len(a) < 2 {
			continue
		}
		graph := asciigraph.Plot(a,
			asciigraph.Height(6),
			asciigraph.Width(80),
			asciigraph.LowerBound(0),
			asciigraph.UpperBound(1),
			asciigraph.Caption(g.Name()+" activation along the arm"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
}

func plotHistory(diffs []float64) {
	if len(diffs) < 2 {
		return
	}
	logDiff := make([]float64, len(diffs))
	for i, d := range diffs {
		logDiff[i] = math.Log10(math.Max(d, 1e-300))
	}
	graph := asciigraph.Plot(logDiff,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("log10 activation difference per iteration"),
	)
	fmt.Println(graph)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The monitor owns the terminal, so nothing is logged while it runs.
	exp, err := experiment.New(cfg, zap.NewNop())
	if err != nil {
		return err
	}

	m := viz.NewMonitor(exp)
	m.StepsPerTick = ticksSteps
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if mon, ok := final.(viz.Monitor); ok {
		fmt.Printf("status: %s after %d iterations\n", mon.Status(), exp.Driver().Iterations())
		return mon.Err()
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	metric, _ := cmd.Flags().GetString("metric")

	values, err := parseValues(sweepVals)
	if err != nil {
		return err
	}

	log, err := newLogger(base.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	type sweepRow struct {
		value float64
		exp   *experiment.Experiment
	}
	var rows []sweepRow
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := optim.Apply(base, params)
		if err != nil {
			return nil, err
		}
		exp, err := experiment.New(cfg, log)
		if err != nil {
			return nil, err
		}
		rows = append(rows, sweepRow{value: params[sweepBy], exp: exp})
		return exp, nil
	}

	gs := optim.NewGridSearch([]string{sweepBy}, [][]float64{values})
	best, val, err := gs.Search(cmd.Context(), build, metric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTATUS\tITERATIONS\tACTIVATION DIFF\n", strings.ToUpper(sweepBy))
	for _, r := range rows {
		d := r.exp.Driver()
		fmt.Fprintf(w, "%g\t%s\t%d\t%.3e\n", r.value, d.Status(), d.Iterations(), d.ActivationDiff())
	}
	w.Flush()
	if err != nil {
		return err
	}
	fmt.Printf("\nbest %s: %g (%s = %.6g)\n", sweepBy, best[sweepBy], metric, val)
	return nil
}

func parseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value %q", p)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, errors.New("no values to sweep")
	}
	return values, nil
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

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tLAYOUT\tTARGET\tSTATUS\tITER\tSTEPSIZE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%g\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Layout,
			run.Target,
			run.Status,
			run.Iterations,
			run.Stepsize,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	_, activations, err := st.LoadActivations(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("status: %s after %d iterations\n\n", meta.Status, meta.Iterations)
	for m, a := range activations {
		if len(a) < 2 {
			continue
		}
		caption := fmt.Sprintf("muscle %d activation", m)
		if m < len(meta.Muscles) {
			caption = meta.Muscles[m] + " activation"
		}
		fmt.Println(asciigraph.Plot(a,
			asciigraph.Height(6),
			asciigraph.Width(80),
			asciigraph.LowerBound(0),
			asciigraph.UpperBound(1),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}

	diffs, err := st.LoadHistory(runID)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return err
	}
	plotHistory(diffs)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
