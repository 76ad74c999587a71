package stats

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"

	"axonsim/internal/nn"
)

// Pipeline stage latencies of the modelled neuron core, in clock cycles.
const (
	cyclesEncoding   = 2
	cyclesDecoding   = 2
	cyclesScheduling = 1
	cyclesSRAM       = 1
	cyclesCompute    = 1
)

// HardwareModel describes the neuron core a run is costed against.
type HardwareModel struct {
	SearchSteps int     `json:"search_steps"`
	ClockMHz    float64 `json:"clock_mhz"`
	Batch       int     `json:"batch"`

	EnergyPerSOP float64 `json:"energy_per_sop_j"`
	Leak         float64 `json:"leak_w"`
	IdlePerMHz   float64 `json:"idle_per_mhz_w"`
	Vdd          float64 `json:"vdd"`
}

func DefaultHardwareModel() HardwareModel {
	return HardwareModel{
		SearchSteps:  5000,
		ClockMHz:     200,
		Batch:        1,
		EnergyPerSOP: 12e-12,
		Leak:         27e-6,
		IdlePerMHz:   178e-6,
		Vdd:          0.9,
	}
}

func (m HardwareModel) Validate() error {
	if m.SearchSteps < 1 {
		return fmt.Errorf("search steps must be >= 1, got %d", m.SearchSteps)
	}
	if !(m.ClockMHz > 0) {
		return fmt.Errorf("clock must be > 0 MHz, got %v", m.ClockMHz)
	}
	if m.Batch < 1 {
		return fmt.Errorf("batch must be >= 1, got %d", m.Batch)
	}
	if !(m.Vdd > 0) {
		return errors.New("vdd must be > 0")
	}
	return nil
}

type Performance struct {
	Updates int     `json:"updates"`
	Cycles  int     `json:"cycles"`
	Seconds float64 `json:"seconds"`
}

// EstimatePerformance costs a run from its processed event counts. A V event
// is one update; conductance and gate events each trigger a binary search
// over the prediction grid.
func EstimatePerformance(processed map[nn.SynapseType]int, hw HardwareModel) (Performance, error) {
	if err := hw.Validate(); err != nil {
		return Performance{}, err
	}
	searchCost := int(math.Ceil(math.Log2(float64(hw.SearchSteps))))
	updates := processed[nn.SynapseV]
	updates += searchCost * (processed[nn.SynapseGe] + processed[nn.SynapseGf] + processed[nn.SynapseGate])

	batches := (updates + hw.Batch - 1) / hw.Batch
	cycles := batches*(cyclesSRAM+cyclesCompute+cyclesScheduling) + cyclesEncoding + cyclesDecoding + cyclesScheduling
	return Performance{
		Updates: updates,
		Cycles:  cycles,
		Seconds: float64(cycles) / (hw.ClockMHz * 1e6),
	}, nil
}

// PowerEstimate is in SI base units: W, J, A and SOP/s.
type PowerEstimate struct {
	Leak    float64 `json:"leak_w"`
	Idle    float64 `json:"idle_w"`
	Dynamic float64 `json:"dynamic_w"`
	Total   float64 `json:"total_w"`
	Energy  float64 `json:"energy_j"`
	Current float64 `json:"current_a"`
	SOPRate float64 `json:"sop_rate"`
}

func EstimatePower(perf Performance, hw HardwareModel) PowerEstimate {
	var rate float64
	if perf.Seconds > 0 {
		rate = float64(perf.Updates) / perf.Seconds
	}
	est := PowerEstimate{
		Leak:    hw.Leak,
		Idle:    hw.IdlePerMHz * hw.ClockMHz,
		Dynamic: hw.EnergyPerSOP * rate,
		SOPRate: rate,
	}
	est.Total = est.Leak + est.Idle + est.Dynamic
	est.Energy = est.Total * perf.Seconds
	if hw.Vdd > 0 {
		est.Current = est.Total / hw.Vdd
	}
	return est
}

// Fields renders the estimate with SI prefixes, in report order.
func (p PowerEstimate) Fields() [][2]string {
	return [][2]string{
		{"P_leak", humanize.SIWithDigits(p.Leak, 3, "W")},
		{"P_idle", humanize.SIWithDigits(p.Idle, 3, "W")},
		{"P_dynamic", humanize.SIWithDigits(p.Dynamic, 3, "W")},
		{"P_total", humanize.SIWithDigits(p.Total, 3, "W")},
		{"E_total", humanize.SIWithDigits(p.Energy, 3, "J")},
		{"I_total", humanize.SIWithDigits(p.Current, 3, "A")},
		{"r_SOP", humanize.SIWithDigits(p.SOPRate, 3, "SOP/s")},
	}
}

func WritePowerEstimate(w io.Writer, perf Performance, power PowerEstimate) error {
	if _, err := fmt.Fprintf(w, "Latency per iteration: %s\n", humanize.SIWithDigits(perf.Seconds, 3, "s")); err != nil {
		return err
	}
	for _, field := range power.Fields() {
		if _, err := fmt.Fprintf(w, "%-22s %s\n", field[0]+":", field[1]); err != nil {
			return err
		}
	}
	return nil
}
