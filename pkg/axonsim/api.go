// Package axonsim is the public entry point for building reference
// circuits, driving them with encoded values, and keeping the results.
package axonsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"axonsim/internal/circuitid"
	"axonsim/internal/circuits"
	"axonsim/internal/encoding"
	"axonsim/internal/model"
	"axonsim/internal/nn"
	"axonsim/internal/sim"
	"axonsim/internal/stats"
	"axonsim/internal/storage"
)

const (
	EngineFixed      = "fixed"
	EnginePredictive = "predictive"

	defaultDBPath   = "axonsim.db"
	defaultCircuit  = "memory"
	defaultDuration = 800.0
	defaultRecallAt = 200.0
	defaultRunLimit = 20

	// createdAtLayout is fixed width so timestamps sort as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives config.json, spikes.csv and report.json per
	// run. Empty disables artifact files.
	ArtifactsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
}

type Input struct {
	Lane  int
	Value float64
	T0    float64
}

type RunRequest struct {
	RunID       string
	Circuit     string
	CircuitSize int
	Engine      string
	DT          float64
	Duration    float64
	Horizon     float64
	MaxEvents   int
	Tmin        float64
	Tcod        float64
	Inputs      []Input
	// RecallAt is when the circuit's recall neurons fire. Nil picks 200 for
	// circuits that have recall neurons.
	RecallAt *float64
	// NoRecall leaves recall neurons silent; outputs then never fire.
	NoRecall bool
}

// Output is one decoded lane. Spikes are the readout neuron's; for a
// signed lane they are the polarity that fired. Error is set when the
// readout is malformed, such as both polarities firing.
type Output struct {
	Lane    int
	Value   float64
	Decoded bool
	Spikes  []float64
	Error   string `json:",omitempty"`
}

type RunSummary struct {
	RunID        string
	Circuit      string
	Engine       string
	Outputs      []Output
	SpikeCount   int
	Stats        sim.RunStats
	ArtifactsDir string
}

type CompareSummary struct {
	Fixed      RunSummary
	Predictive RunSummary
	Divergence stats.Divergence
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Circuit      string
	Engine       string
	Inputs       []float64
	// Outputs holds nil for lanes that did not decode.
	Outputs    []*float64
	SpikeCount int
}

type SpikesRequest struct {
	RunID  string
	Latest bool
	// Neuron keeps only trains whose neuron UID contains this text.
	Neuron string
}

type ReportRequest struct {
	RunID    string
	Latest   bool
	Depth    int
	Hardware *stats.HardwareModel
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type CircuitItem struct {
	Name        string
	Description string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: opts.ArtifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) Circuits() []CircuitItem {
	specs := circuits.List()
	out := make([]CircuitItem, 0, len(specs))
	for _, spec := range specs {
		out = append(out, CircuitItem{Name: spec.Name, Description: spec.Description})
	}
	return out
}

// Run simulates one request and persists the record and spike trains.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req, err := withDefaults(req)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	res, err := simulate(ctx, req, req.Engine)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	record := res.record(runID, req, time.Now().UTC())
	trains := res.trains()

	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := c.store.SaveSpikeTrains(ctx, runID, trains); err != nil {
		return RunSummary{}, fmt.Errorf("save spikes %s: %w", runID, err)
	}

	summary := res.summary(runID, req)
	if c.artifactsDir != "" {
		report, err := stats.BuildReport(res.handle.Module, 1, record.SpikeCount, res.stats.Processed, stats.DefaultHardwareModel())
		if err != nil {
			return RunSummary{}, err
		}
		report.RunID = runID
		runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
			Record: record,
			Spikes: trains,
			Report: &report,
		})
		if err != nil {
			return RunSummary{}, err
		}
		if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
			RunID:        runID,
			Circuit:      record.Circuit,
			Engine:       record.Engine,
			SpikeCount:   record.SpikeCount,
			CreatedAtUTC: record.CreatedAtUTC,
		}); err != nil {
			return RunSummary{}, err
		}
		summary.ArtifactsDir = filepath.Clean(runDir)
	}
	return summary, nil
}

// Compare runs the request on both engines and measures how far their
// spike logs drift apart. Nothing is persisted.
func (c *Client) Compare(ctx context.Context, req RunRequest) (CompareSummary, error) {
	req, err := withDefaults(req)
	if err != nil {
		return CompareSummary{}, err
	}

	fixed, err := simulate(ctx, req, EngineFixed)
	if err != nil {
		return CompareSummary{}, fmt.Errorf("%s: %w", EngineFixed, err)
	}
	predictive, err := simulate(ctx, req, EnginePredictive)
	if err != nil {
		return CompareSummary{}, fmt.Errorf("%s: %w", EnginePredictive, err)
	}

	fixedReq, predReq := req, req
	fixedReq.Engine, predReq.Engine = EngineFixed, EnginePredictive
	return CompareSummary{
		Fixed:      fixed.summary("", fixedReq),
		Predictive: predictive.summary("", predReq),
		Divergence: stats.CompareSpikeLogs(fixed.log, predictive.log),
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunLimit
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		item := RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Circuit:      run.Circuit,
			Engine:       run.Engine,
			SpikeCount:   run.SpikeCount,
		}
		for _, in := range run.Inputs {
			item.Inputs = append(item.Inputs, in.Value)
		}
		for _, o := range run.Outputs {
			var value *float64
			if o.Decoded {
				v := o.Value
				value = &v
			}
			item.Outputs = append(item.Outputs, value)
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) Spikes(ctx context.Context, req SpikesRequest) ([]model.SpikeTrain, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	trains, ok, err := c.store.GetSpikeTrains(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("spike trains not found for run id: %s", runID)
	}
	if req.Neuron == "" {
		return trains, nil
	}
	filtered := trains[:0]
	for _, train := range trains {
		if strings.Contains(strings.ToLower(train.NeuronUID), strings.ToLower(req.Neuron)) {
			filtered = append(filtered, train)
		}
	}
	return filtered, nil
}

// Report rebuilds the run's circuit for neuron usage and costs the stored
// event counts against the hardware model.
func (c *Client) Report(ctx context.Context, req ReportRequest) (stats.Report, error) {
	if req.Depth < 0 {
		return stats.Report{}, errors.New("depth must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return stats.Report{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return stats.Report{}, err
	}
	if !ok {
		return stats.Report{}, fmt.Errorf("run not found: %s", runID)
	}

	enc, err := encoding.New(run.Tmin, run.Tcod)
	if err != nil {
		return stats.Report{}, err
	}
	h, err := circuits.Build(nn.NewNetwork(), enc, run.Circuit, run.Circuit, circuits.Options{Size: run.CircuitSize})
	if err != nil {
		return stats.Report{}, err
	}
	processed := make(map[nn.SynapseType]int, len(run.Processed))
	for name, count := range run.Processed {
		t, err := nn.ParseSynapseType(name)
		if err != nil {
			return stats.Report{}, fmt.Errorf("run %s: %w", runID, err)
		}
		processed[t] = count
	}

	hw := stats.DefaultHardwareModel()
	if req.Hardware != nil {
		hw = *req.Hardware
	}
	report, err := stats.BuildReport(h.Module, req.Depth, run.SpikeCount, processed, hw)
	if err != nil {
		return stats.Report{}, err
	}
	report.RunID = runID
	return report, nil
}

// Export copies a run's artifact files to req.OutDir.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if c.artifactsDir == "" {
		return ExportSummary{}, errors.New("export requires an artifacts directory")
	}
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		return ExportSummary{}, errors.New("export requires an output directory")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func withDefaults(req RunRequest) (RunRequest, error) {
	req.Circuit = circuitid.Normalize(req.Circuit)
	if req.Circuit == "" {
		req.Circuit = defaultCircuit
	}
	if req.Engine == "" {
		req.Engine = EngineFixed
	}
	if req.Engine != EngineFixed && req.Engine != EnginePredictive {
		return RunRequest{}, fmt.Errorf("unsupported engine: %s", req.Engine)
	}
	if req.DT == 0 {
		req.DT = sim.DefaultDT
	}
	if req.Duration == 0 {
		req.Duration = defaultDuration
	}
	if req.Horizon == 0 {
		req.Horizon = sim.DefaultHorizon
	}
	if req.Tmin == 0 && req.Tcod == 0 {
		req.Tmin = encoding.DefaultTmin
		req.Tcod = encoding.DefaultTcod
	}
	for _, f := range []struct {
		name  string
		value float64
	}{{"dt", req.DT}, {"duration", req.Duration}, {"horizon", req.Horizon}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return RunRequest{}, fmt.Errorf("%s must be finite, got %v", f.name, f.value)
		}
	}
	if req.RecallAt != nil && (math.IsNaN(*req.RecallAt) || math.IsInf(*req.RecallAt, 0)) {
		return RunRequest{}, fmt.Errorf("recall_at must be finite, got %v", *req.RecallAt)
	}
	if req.Duration < 0 {
		return RunRequest{}, errors.New("duration must be >= 0")
	}
	if len(req.Inputs) == 0 {
		return RunRequest{}, errors.New("at least one input is required")
	}
	return req, nil
}

// simResult is one finished simulation before it is persisted.
type simResult struct {
	net     *nn.Network
	handle  circuits.Handle
	enc     encoding.Encoder
	log     sim.SpikeLog
	stats   sim.RunStats
	outputs []Output
	recall  *float64
}

func simulate(ctx context.Context, req RunRequest, engineName string) (simResult, error) {
	enc, err := encoding.New(req.Tmin, req.Tcod)
	if err != nil {
		return simResult{}, err
	}
	net := nn.NewNetwork()
	h, err := circuits.Build(net, enc, req.Circuit, req.Circuit, circuits.Options{Size: req.CircuitSize})
	if err != nil {
		return simResult{}, err
	}

	cfg := sim.Config{DT: req.DT, Horizon: req.Horizon, MaxEvents: req.MaxEvents}
	var engine sim.Engine
	switch engineName {
	case EngineFixed:
		engine, err = sim.NewFixedStep(h.Module, enc, cfg)
	case EnginePredictive:
		engine, err = sim.NewPredictive(h.Module, enc, cfg)
	default:
		err = fmt.Errorf("unsupported engine: %s", engineName)
	}
	if err != nil {
		return simResult{}, err
	}

	for _, in := range req.Inputs {
		if in.Lane < 0 || in.Lane >= h.InputLanes() {
			return simResult{}, fmt.Errorf("input lane %d out of range: circuit %s has %d", in.Lane, req.Circuit, h.InputLanes())
		}
		if err := applyInput(engine, h, in); err != nil {
			return simResult{}, fmt.Errorf("input lane %d: %w", in.Lane, err)
		}
	}

	recall := req.RecallAt
	if req.NoRecall {
		recall = nil
	} else if recall == nil && len(h.Recall) > 0 {
		at := defaultRecallAt
		recall = &at
	}
	if recall != nil {
		for _, id := range h.Recall {
			if err := engine.ApplyInputSpike(id, *recall); err != nil {
				return simResult{}, fmt.Errorf("recall: %w", err)
			}
		}
	}

	if err := engine.Advance(ctx, req.Duration); err != nil {
		return simResult{}, err
	}

	log := engine.SpikeLog()
	return simResult{
		net:     net,
		handle:  h,
		enc:     enc,
		log:     log,
		stats:   engine.Stats(),
		outputs: decodeOutputs(log, enc, h),
		recall:  recall,
	}, nil
}

// applyInput drives one lane. Signed lanes carry |v| on the polarity
// neuron matching the sign of v.
func applyInput(engine sim.Engine, h circuits.Handle, in Input) error {
	if in.Lane < len(h.Inputs) {
		return engine.ApplyInputValue(in.Value, h.Inputs[in.Lane], in.T0)
	}
	pair := h.SignedInputs[in.Lane-len(h.Inputs)]
	target := pair.Plus
	if in.Value < 0 {
		target = pair.Minus
	}
	if err := engine.ApplyInputValue(math.Abs(in.Value), target, in.T0); err != nil {
		return fmt.Errorf("signed value %v: %w", in.Value, err)
	}
	return nil
}

func decodeOutputs(log sim.SpikeLog, enc encoding.Encoder, h circuits.Handle) []Output {
	outputs := make([]Output, 0, h.OutputLanes())
	for lane, id := range h.Outputs {
		out := Output{Lane: lane, Spikes: log[id]}
		if v, err := log.Decode(enc, id); err == nil {
			out.Value = v
			out.Decoded = true
		}
		outputs = append(outputs, out)
	}
	for i, pair := range h.SignedOutputs {
		out := Output{Lane: len(h.Outputs) + i, Spikes: log[pair.Plus]}
		if len(out.Spikes) == 0 {
			out.Spikes = log[pair.Minus]
		}
		v, ok, err := sim.DecodeSigned(log, enc, pair.Plus, pair.Minus, 1)
		switch {
		case err != nil:
			out.Error = err.Error()
		case ok:
			out.Value = v
			out.Decoded = true
		}
		outputs = append(outputs, out)
	}
	return outputs
}

func (r simResult) summary(runID string, req RunRequest) RunSummary {
	return RunSummary{
		RunID:      runID,
		Circuit:    req.Circuit,
		Engine:     req.Engine,
		Outputs:    r.outputs,
		SpikeCount: r.log.Count(),
		Stats:      r.stats,
	}
}

func (r simResult) record(runID string, req RunRequest, now time.Time) model.RunRecord {
	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Circuit:         req.Circuit,
		CircuitSize:     req.CircuitSize,
		Engine:          req.Engine,
		DT:              req.DT,
		Duration:        req.Duration,
		Horizon:         req.Horizon,
		Tmin:            r.enc.Tmin,
		Tcod:            r.enc.Tcod,
		RecallAt:        r.recall,
		SpikeCount:      r.log.Count(),
		Processed:       make(map[string]int, len(r.stats.Processed)),
		Steps:           r.stats.Steps,
		CreatedAtUTC:    now.Format(createdAtLayout),
	}
	for _, in := range req.Inputs {
		record.Inputs = append(record.Inputs, model.InputRecord{Lane: in.Lane, Value: in.Value, T0: in.T0})
	}
	for _, out := range r.outputs {
		o := model.OutputRecord{Lane: out.Lane, Value: out.Value, Decoded: out.Decoded, Spikes: out.Spikes, Error: out.Error}
		if len(out.Spikes) >= 2 {
			o.Interval = out.Spikes[1] - out.Spikes[0]
		}
		record.Outputs = append(record.Outputs, o)
	}
	for _, t := range nn.SynapseTypes() {
		record.Processed[t.String()] = r.stats.Processed[t]
	}
	return record
}

// trains lists every neuron of the circuit in id order, silent ones
// included.
func (r simResult) trains() []model.SpikeTrain {
	owners := r.handle.Module.NeuronModules()
	ids := make([]nn.NeuronID, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	trains := make([]model.SpikeTrain, 0, len(ids))
	for _, id := range ids {
		n, _ := r.net.Neuron(id)
		times := r.log[id]
		if times == nil {
			times = []float64{}
		}
		trains = append(trains, model.SpikeTrain{NeuronUID: n.UID, Module: owners[id], Times: times})
	}
	return trains
}
