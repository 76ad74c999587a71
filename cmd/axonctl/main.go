package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"axonsim/internal/stats"
	"axonsim/internal/storage"
	"axonsim/pkg/axonsim"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "axonsim.db"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	isTerminal = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "spikes":
		return runSpikes(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "circuits":
		return runCircuits(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags are shared by every command that opens a client.
type storeFlags struct {
	kind         *string
	dbPath       *string
	artifactsDir *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:         fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaultDB, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "run artifacts directory (empty disables)"),
	}
}

func (f storeFlags) client() (*axonsim.Client, error) {
	return axonsim.New(axonsim.Options{
		StoreKind:    *f.kind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *store.kind)
	return nil
}

// runFlags binds the simulation flags shared by run and compare.
type runFlags struct {
	configPath *string
	runID      *string
	circuit    *string
	size       *int
	engine     *string
	dt         *float64
	duration   *float64
	horizon    *float64
	maxEvents  *int
	tmin       *float64
	tcod       *float64
	recallAt   *float64
	noRecall   *bool
	verbose    *bool
	jsonOut    *bool
	inputs     inputFlags
	store      storeFlags
	fs         *flag.FlagSet
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	f := &runFlags{
		configPath: fs.String("config", "", "optional run config JSON path"),
		runID:      fs.String("run-id", "", "explicit run id (optional)"),
		circuit:    fs.String("circuit", "memory", "circuit name (see axonctl circuits)"),
		size:       fs.Int("size", 0, "circuit size, e.g. synchronizer lane count (0 uses the circuit default)"),
		engine:     fs.String("engine", axonsim.EngineFixed, "engine: fixed|predictive"),
		dt:         fs.Float64("dt", 0.01, "integration step in ms"),
		duration:   fs.Float64("duration", 800, "simulated time in ms"),
		horizon:    fs.Float64("horizon", 500, "predictive look-ahead window in ms"),
		maxEvents:  fs.Int("max-events", 0, "abort after this many queued events (0 uses engine default)"),
		tmin:       fs.Float64("tmin", 10, "encoder minimum interval in ms"),
		tcod:       fs.Float64("tcod", 100, "encoder coding range in ms"),
		recallAt:   fs.Float64("recall-at", 200, "time the circuit's recall neurons fire"),
		noRecall:   fs.Bool("no-recall", false, "never fire recall neurons"),
		verbose:    fs.Bool("verbose", false, "log progress to stderr"),
		jsonOut:    fs.Bool("json", false, "emit the summary as JSON"),
		store:      addStoreFlags(fs),
	}
	fs.Var(&f.inputs, "input", "input value with optional start offset, value[@t0]; repeat per lane")
	f.fs = fs
	return f
}

// request merges config file values under explicitly set flags.
func (f *runFlags) request() (axonsim.RunRequest, error) {
	setFlags := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) {
		setFlags[fl.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*f.configPath)
	if err != nil {
		return axonsim.RunRequest{}, err
	}
	if *f.configPath == "" {
		req = axonsim.RunRequest{
			RunID:       *f.runID,
			Circuit:     *f.circuit,
			CircuitSize: *f.size,
			Engine:      *f.engine,
			DT:          *f.dt,
			Duration:    *f.duration,
			Horizon:     *f.horizon,
			MaxEvents:   *f.maxEvents,
			Tmin:        *f.tmin,
			Tcod:        *f.tcod,
			Inputs:      f.inputs,
		}
		if setFlags["recall-at"] {
			at := *f.recallAt
			req.RecallAt = &at
		}
	} else {
		overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":     *f.runID,
			"circuit":    *f.circuit,
			"size":       *f.size,
			"engine":     *f.engine,
			"dt":         *f.dt,
			"duration":   *f.duration,
			"horizon":    *f.horizon,
			"max-events": *f.maxEvents,
			"tmin":       *f.tmin,
			"tcod":       *f.tcod,
			"recall-at":  *f.recallAt,
			"input":      []axonsim.Input(f.inputs),
		})
	}
	if *f.noRecall {
		req.NoRecall = true
	}
	if len(req.Inputs) == 0 {
		return axonsim.RunRequest{}, errors.New("at least one --input is required")
	}
	return req, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	f := addRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := f.request()
	if err != nil {
		return err
	}
	logger := newLogger(*f.verbose)

	client, err := f.store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	logger.Info("run starting", "circuit", req.Circuit, "engine", req.Engine, "inputs", len(req.Inputs), "duration", req.Duration)
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("run finished", "run_id", summary.RunID, "spikes", summary.SpikeCount, "steps", summary.Stats.Steps)

	if *f.jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "run completed run_id=%s circuit=%s engine=%s spikes=%d events=%s\n",
		summary.RunID,
		summary.Circuit,
		summary.Engine,
		summary.SpikeCount,
		humanize.Comma(int64(summary.Stats.ProcessedTotal())),
	)
	if err := writeOutputs(summary.Outputs); err != nil {
		return err
	}
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts_dir=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	f := addRunFlags(fs)
	tolerance := fs.Float64("tolerance", 0.05, "maximum spike time shift treated as agreement")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := f.request()
	if err != nil {
		return err
	}
	logger := newLogger(*f.verbose)

	client, err := f.store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	logger.Info("compare starting", "circuit", req.Circuit, "inputs", len(req.Inputs), "dt", req.DT)
	summary, err := client.Compare(ctx, req)
	if err != nil {
		return err
	}
	within := summary.Divergence.Within(*tolerance)
	logger.Info("compare finished", "within", within, "max_shift", summary.Divergence.MaxShift)

	if *f.jsonOut {
		return writeJSON(struct {
			axonsim.CompareSummary
			Tolerance float64
			Within    bool
		}{summary, *tolerance, within})
	}
	for _, side := range []axonsim.RunSummary{summary.Fixed, summary.Predictive} {
		fmt.Fprintf(stdout, "engine=%s spikes=%d events=%s\n", side.Engine, side.SpikeCount, humanize.Comma(int64(side.Stats.ProcessedTotal())))
		if err := writeOutputs(side.Outputs); err != nil {
			return err
		}
	}
	d := summary.Divergence
	fmt.Fprintf(stdout, "divergence matched=%d count_mismatches=%d max_shift=%.6f mean_shift=%.6f within=%t\n",
		d.Matched, d.CountMismatches, d.MaxShift, d.MeanShift, within)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, axonsim.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.RunID,
			item.CreatedAtUTC,
			item.Circuit,
			item.Engine,
			formatValues(item.Inputs),
			formatDecoded(item.Outputs),
			strconv.Itoa(item.SpikeCount),
		})
	}
	return writeTable([]string{"RUN_ID", "CREATED_AT", "CIRCUIT", "ENGINE", "INPUTS", "OUTPUTS", "SPIKES"}, rows)
}

func runSpikes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("spikes", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	neuron := fs.String("neuron", "", "keep only neurons whose uid contains this text")
	silent := fs.Bool("silent", false, "include neurons that never fired")
	jsonOut := fs.Bool("json", false, "emit spike trains as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	trains, err := client.Spikes(ctx, axonsim.SpikesRequest{RunID: *runID, Latest: *latest, Neuron: *neuron})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(trains)
	}

	rows := make([][]string, 0, len(trains))
	for _, train := range trains {
		if len(train.Times) == 0 && !*silent {
			continue
		}
		rows = append(rows, []string{
			train.NeuronUID,
			train.Module,
			strconv.Itoa(len(train.Times)),
			formatValues(train.Times),
		})
	}
	return writeTable([]string{"NEURON", "MODULE", "COUNT", "TIMES"}, rows)
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	depth := fs.Int("depth", 1, "module depth for neuron usage (0 prints the root only)")
	defaults := stats.DefaultHardwareModel()
	searchSteps := fs.Int("search-steps", defaults.SearchSteps, "prediction search steps costed per g-type update")
	clockMHz := fs.Float64("clock-mhz", defaults.ClockMHz, "hardware clock in MHz")
	batch := fs.Int("batch", defaults.Batch, "updates processed per pipeline pass")
	jsonOut := fs.Bool("json", false, "emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hw := defaults
	hw.SearchSteps = *searchSteps
	hw.ClockMHz = *clockMHz
	hw.Batch = *batch
	if err := hw.Validate(); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.Report(ctx, axonsim.ReportRequest{RunID: *runID, Latest: *latest, Depth: *depth, Hardware: &hw})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(report)
	}
	fmt.Fprintf(stdout, "run_id=%s\n", report.RunID)
	return stats.WriteReport(stdout, report)
}

func runCircuits(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("circuits", flag.ContinueOnError)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items := client.Circuits()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Name, item.Description})
	}
	return writeTable([]string{"NAME", "DESCRIPTION"}, rows)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, axonsim.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: axonctl <init|run|compare|runs|spikes|report|circuits|export> [flags]", msg)
}

// newLogger returns a stderr text logger when verbose is set and a
// discarding one otherwise.
func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeOutputs(outputs []axonsim.Output) error {
	rows := make([][]string, 0, len(outputs))
	for _, out := range outputs {
		value := "n/a"
		switch {
		case out.Error != "":
			value = "error: " + out.Error
		case out.Decoded:
			value = strconv.FormatFloat(out.Value, 'f', 6, 64)
		}
		rows = append(rows, []string{strconv.Itoa(out.Lane), value, formatValues(out.Spikes)})
	}
	return writeTable([]string{"LANE", "VALUE", "SPIKES"}, rows)
}

// writeTable aligns columns for a terminal and emits plain tab-separated
// rows otherwise.
func writeTable(header []string, rows [][]string) error {
	if !isTerminal() {
		for _, row := range append([][]string{header}, rows...) {
			if _, err := fmt.Fprintln(stdout, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, row := range append([][]string{header}, rows...) {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValues(values []float64) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.FormatFloat(v, 'g', 6, 64))
	}
	return strings.Join(parts, ",")
}

// formatDecoded renders per-lane outputs; nil lanes did not decode.
func formatDecoded(values []*float64) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			parts = append(parts, "n/a")
			continue
		}
		parts = append(parts, strconv.FormatFloat(*v, 'g', 6, 64))
	}
	return strings.Join(parts, ",")
}

// inputFlags collects repeated --input flags, one lane per occurrence.
type inputFlags []axonsim.Input

func (f *inputFlags) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, 0, len(*f))
	for _, in := range *f {
		parts = append(parts, fmt.Sprintf("%g@%g", in.Value, in.T0))
	}
	return strings.Join(parts, ",")
}

func (f *inputFlags) Set(s string) error {
	in, err := parseInput(s, len(*f))
	if err != nil {
		return err
	}
	*f = append(*f, in)
	return nil
}

func parseInput(s string, lane int) (axonsim.Input, error) {
	valuePart, offsetPart, hasOffset := strings.Cut(strings.TrimSpace(s), "@")
	value, err := strconv.ParseFloat(valuePart, 64)
	if err != nil {
		return axonsim.Input{}, fmt.Errorf("input %q: %w", s, err)
	}
	in := axonsim.Input{Lane: lane, Value: value}
	if hasOffset {
		t0, err := strconv.ParseFloat(offsetPart, 64)
		if err != nil {
			return axonsim.Input{}, fmt.Errorf("input %q offset: %w", s, err)
		}
		in.T0 = t0
	}
	return in, nil
}
