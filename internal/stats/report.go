package stats

import (
	"fmt"
	"io"

	"axonsim/internal/nn"
)

// Report summarizes what a run cost: neurons per module, spikes fired,
// synaptic events processed and the hardware estimate derived from them.
type Report struct {
	RunID       string                 `json:"run_id,omitempty"`
	Neurons     []UsageLine            `json:"neurons"`
	Spikes      int                    `json:"spikes"`
	Processed   map[nn.SynapseType]int `json:"processed"`
	Hardware    HardwareModel          `json:"hardware"`
	Performance Performance            `json:"performance"`
	Power       PowerEstimate          `json:"power"`
}

func BuildReport(root *nn.Module, depth, spikes int, processed map[nn.SynapseType]int, hw HardwareModel) (Report, error) {
	perf, err := EstimatePerformance(processed, hw)
	if err != nil {
		return Report{}, err
	}
	counts := make(map[nn.SynapseType]int, len(nn.SynapseTypes()))
	for _, t := range nn.SynapseTypes() {
		counts[t] = processed[t]
	}
	return Report{
		Neurons:     NeuronUsage(root, depth),
		Spikes:      spikes,
		Processed:   counts,
		Hardware:    hw,
		Performance: perf,
		Power:       EstimatePower(perf, hw),
	}, nil
}

func WriteReport(w io.Writer, r Report) error {
	sections := []struct {
		title string
		write func() error
	}{
		{"NEURON USAGE", func() error { return WriteNeuronUsage(w, r.Neurons) }},
		{"SPIKE COUNT", func() error {
			_, err := fmt.Fprintf(w, "-> Total: %d spikes\n", r.Spikes)
			return err
		}},
		{"ENERGY & LATENCY", func() error {
			for _, t := range nn.SynapseTypes() {
				if _, err := fmt.Fprintf(w, "%s-type updates: %d\n", t, r.Processed[t]); err != nil {
					return err
				}
			}
			return WritePowerEstimate(w, r.Performance, r.Power)
		}},
	}
	for i, section := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "--- %s ---\n", section.title); err != nil {
			return err
		}
		if err := section.write(); err != nil {
			return err
		}
	}
	return nil
}
