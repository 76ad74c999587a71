package axonsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"axonsim/internal/circuits"
	"axonsim/internal/encoding"
	"axonsim/internal/nn"
	"axonsim/internal/sim"
	"axonsim/internal/stats"
)

func newTestClient(t *testing.T, artifactsDir string) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory", ArtifactsDir: artifactsDir})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunMemoryBothEngines(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	for _, engine := range []string{EngineFixed, EnginePredictive} {
		summary, err := client.Run(ctx, RunRequest{
			Engine: engine,
			Inputs: []Input{{Value: 0.1234}},
		})
		if err != nil {
			t.Fatalf("%s run: %v", engine, err)
		}
		if summary.RunID == "" || summary.Circuit != "memory" || summary.Engine != engine {
			t.Fatalf("%s: unexpected summary: %+v", engine, summary)
		}
		if len(summary.Outputs) != 1 || !summary.Outputs[0].Decoded {
			t.Fatalf("%s: expected decoded output, got %+v", engine, summary.Outputs)
		}
		if math.Abs(summary.Outputs[0].Value-0.1234) > 1e-2 {
			t.Fatalf("%s: recalled %v", engine, summary.Outputs[0].Value)
		}
		if summary.Stats.ProcessedTotal() == 0 || summary.SpikeCount == 0 {
			t.Fatalf("%s: expected activity, got %+v", engine, summary.Stats)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Engine != EnginePredictive {
		t.Fatalf("expected newest predictive run first, got %+v", runs)
	}
	if len(runs[0].Outputs) != 1 || runs[0].Outputs[0] == nil || math.Abs(*runs[0].Outputs[0]-0.1234) > 1e-2 {
		t.Fatalf("unexpected stored outputs: %+v", runs[0].Outputs)
	}

	trains, err := client.Spikes(ctx, SpikesRequest{Latest: true, Neuron: "output"})
	if err != nil {
		t.Fatalf("spikes: %v", err)
	}
	if len(trains) != 1 || len(trains[0].Times) != 2 || trains[0].Times[0] != 202 {
		t.Fatalf("unexpected output train: %+v", trains)
	}

	report, err := client.Report(ctx, ReportRequest{RunID: runs[1].RunID})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.RunID != runs[1].RunID || len(report.Neurons) != 1 || report.Neurons[0].Neurons != 8 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Spikes != runs[1].SpikeCount || report.Performance.Updates == 0 || report.Power.Total <= 0 {
		t.Fatalf("unexpected report costs: %+v", report)
	}
	var buf bytes.Buffer
	if err := stats.WriteReport(&buf, report); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if !strings.Contains(buf.String(), "-> Total: 8 neurons") {
		t.Fatalf("unexpected report output:\n%s", buf.String())
	}
}

func TestClientRunValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	cases := []struct {
		name string
		req  RunRequest
	}{
		{name: "no inputs", req: RunRequest{}},
		{name: "unknown engine", req: RunRequest{Engine: "analog", Inputs: []Input{{Value: 0.5}}}},
		{name: "unknown circuit", req: RunRequest{Circuit: "adder", Inputs: []Input{{Value: 0.5}}}},
		{name: "value out of range", req: RunRequest{Inputs: []Input{{Value: 1.5}}}},
		{name: "lane out of range", req: RunRequest{Inputs: []Input{{Lane: 1, Value: 0.5}}}},
		{name: "bad encoder", req: RunRequest{Tmin: -1, Tcod: 100, Inputs: []Input{{Value: 0.5}}}},
		{name: "nan duration", req: RunRequest{Duration: math.NaN(), Inputs: []Input{{Value: 0.5}}}},
		{name: "inf duration", req: RunRequest{Duration: math.Inf(1), Inputs: []Input{{Value: 0.5}}}},
		{name: "nan dt", req: RunRequest{DT: math.NaN(), Inputs: []Input{{Value: 0.5}}}},
		{name: "inf horizon", req: RunRequest{Engine: EnginePredictive, Horizon: math.Inf(1), Inputs: []Input{{Value: 0.5}}}},
		{name: "nan recall", req: RunRequest{RecallAt: ptr(math.NaN()), Inputs: []Input{{Value: 0.5}}}},
		{name: "signed value out of range", req: RunRequest{Circuit: "signed_memory", Inputs: []Input{{Value: -1.5}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_, err := client.Run(runCtx, tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected up-front rejection, got %v", err)
			}
		})
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("failed runs must not be stored, got %+v", runs)
	}
}

func TestClientRunSynchronizerWithArtifacts(t *testing.T) {
	ctx := context.Background()
	artifactsDir := t.TempDir()
	client := newTestClient(t, artifactsDir)

	summary, err := client.Run(ctx, RunRequest{
		RunID:       "sync-1",
		Circuit:     "Sync",
		CircuitSize: 2,
		Engine:      EnginePredictive,
		Inputs:      []Input{{Lane: 0, Value: 0.3}, {Lane: 1, Value: 0.7, T0: 12}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "sync-1" || summary.Circuit != "synchronizer" || len(summary.Outputs) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Outputs[0].Spikes[0] != summary.Outputs[1].Spikes[0] {
		t.Fatalf("outputs not aligned: %+v", summary.Outputs)
	}
	for i, want := range []float64{0.3, 0.7} {
		if math.Abs(summary.Outputs[i].Value-want) > 1e-2 {
			t.Fatalf("lane %d: got %v want %v", i, summary.Outputs[i].Value, want)
		}
	}

	for _, file := range []string{"config.json", "spikes.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: filepath.Join(t.TempDir(), "exports")})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "sync-1" {
		t.Fatalf("unexpected export: %+v", exported)
	}

	report, err := client.Report(ctx, ReportRequest{Latest: true, Depth: 1})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	// sync module plus its two memory lanes.
	if len(report.Neurons) != 3 || report.Neurons[0].Neurons != 21 {
		t.Fatalf("unexpected usage: %+v", report.Neurons)
	}
}

func TestClientRunNoRecallLeavesMemorySilent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	summary, err := client.Run(ctx, RunRequest{RunID: "quiet", Inputs: []Input{{Value: 0.5}}, NoRecall: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Outputs[0].Decoded || len(summary.Outputs[0].Spikes) != 0 {
		t.Fatalf("expected silent output, got %+v", summary.Outputs[0])
	}
	trains, err := client.Spikes(ctx, SpikesRequest{RunID: "quiet", Neuron: "ready"})
	if err != nil {
		t.Fatalf("spikes: %v", err)
	}
	if len(trains) != 1 || len(trains[0].Times) != 1 {
		t.Fatalf("expected ready to fire once while storing, got %+v", trains)
	}
}

func TestClientRunsListingEncodesUndecodedOutputs(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	if _, err := client.Run(ctx, RunRequest{RunID: "quiet", Inputs: []Input{{Value: 0.5}}, NoRecall: true}); err != nil {
		t.Fatalf("run quiet: %v", err)
	}
	if _, err := client.Run(ctx, RunRequest{RunID: "loud", Inputs: []Input{{Value: 0.5}}}); err != nil {
		t.Fatalf("run loud: %v", err)
	}
	items, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(items) != 2 || items[1].RunID != "quiet" || len(items[1].Outputs) != 1 || items[1].Outputs[0] != nil {
		t.Fatalf("expected a nil output for the silent run, got %+v", items)
	}
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal runs: %v", err)
	}
	var decoded []RunItem
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if decoded[1].Outputs[0] != nil || decoded[0].Outputs[0] == nil || math.Abs(*decoded[0].Outputs[0]-0.5) > 1e-2 {
		t.Fatalf("unexpected outputs after round trip: %s", data)
	}
}

func TestClientRunSignedMemory(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	for _, engine := range []string{EngineFixed, EnginePredictive} {
		for _, v := range []float64{-0.4, 0.7} {
			summary, err := client.Run(ctx, RunRequest{Circuit: "signed-memory", Engine: engine, Inputs: []Input{{Value: v}}})
			if err != nil {
				t.Fatalf("%s v=%v: run: %v", engine, v, err)
			}
			if summary.Circuit != "signed_memory" || len(summary.Outputs) != 1 {
				t.Fatalf("%s: unexpected summary %+v", engine, summary)
			}
			out := summary.Outputs[0]
			if !out.Decoded || out.Error != "" || len(out.Spikes) != 2 {
				t.Fatalf("%s v=%v: expected decoded signed output, got %+v", engine, v, out)
			}
			if math.Abs(out.Value-v) > 1e-2 {
				t.Fatalf("%s: recalled %v, want %v", engine, out.Value, v)
			}
		}
	}

	run, ok, err := client.store.GetRun(ctx, mustLatestRunID(t, client))
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if o := run.Outputs[0]; !o.Decoded || math.Abs(o.Interval-(10+70)) > 0.05 {
		t.Fatalf("unexpected stored signed output: %+v", o)
	}
}

func TestDecodeOutputsReportsAmbiguousSignedLane(t *testing.T) {
	enc := encoding.Default()
	h := circuits.Handle{
		Outputs:       []nn.NeuronID{0},
		SignedOutputs: []circuits.SignedPair{{Plus: 1, Minus: 2}, {Plus: 3, Minus: 4}},
	}
	log := sim.SpikeLog{
		0: {202, 262},
		1: {204, 234},
		2: {204, 264},
		4: {300, 320},
	}

	outputs := decodeOutputs(log, enc, h)
	if len(outputs) != 3 {
		t.Fatalf("expected three lanes, got %+v", outputs)
	}
	if !outputs[0].Decoded || math.Abs(outputs[0].Value-0.5) > 1e-9 {
		t.Fatalf("unexpected plain lane: %+v", outputs[0])
	}
	if outputs[1].Lane != 1 || outputs[1].Decoded || !strings.Contains(outputs[1].Error, sim.ErrAmbiguousReadout.Error()) {
		t.Fatalf("expected ambiguous readout on lane 1, got %+v", outputs[1])
	}
	if outputs[2].Lane != 2 || !outputs[2].Decoded || math.Abs(outputs[2].Value+0.1) > 1e-9 || outputs[2].Spikes[0] != 300 {
		t.Fatalf("expected -0.1 from the minus neuron on lane 2, got %+v", outputs[2])
	}
}

func ptr(v float64) *float64 {
	return &v
}

func mustLatestRunID(t *testing.T, client *Client) string {
	t.Helper()
	id, err := client.resolveRunID(context.Background(), "", true)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	return id
}

func TestClientCompareEngines(t *testing.T) {
	client := newTestClient(t, "")
	summary, err := client.Compare(context.Background(), RunRequest{Inputs: []Input{{Value: 0.5}}})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if summary.Fixed.Engine != EngineFixed || summary.Predictive.Engine != EnginePredictive {
		t.Fatalf("unexpected engines: %s %s", summary.Fixed.Engine, summary.Predictive.Engine)
	}
	if !summary.Divergence.Within(0.05) {
		t.Fatalf("engines diverged: %+v", summary.Divergence)
	}
	if math.Abs(summary.Fixed.Outputs[0].Value-summary.Predictive.Outputs[0].Value) > 1e-3 {
		t.Fatalf("decoded outputs differ: %v vs %v", summary.Fixed.Outputs[0].Value, summary.Predictive.Outputs[0].Value)
	}
}

func TestClientLookupErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "")

	if _, err := client.Spikes(ctx, SpikesRequest{}); err == nil {
		t.Fatal("expected run id error")
	}
	if _, err := client.Spikes(ctx, SpikesRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting selector error")
	}
	if _, err := client.Report(ctx, ReportRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Report(ctx, ReportRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing run error")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected missing artifacts dir error")
	}
}

func TestClientCircuits(t *testing.T) {
	client := newTestClient(t, "")
	items := client.Circuits()
	if len(items) < 3 || items[0].Name != "inverting_memory" {
		t.Fatalf("unexpected circuits: %+v", items)
	}
}
