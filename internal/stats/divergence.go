package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"axonsim/internal/nn"
	"axonsim/internal/sim"
)

type NeuronDivergence struct {
	Neuron   nn.NeuronID `json:"neuron"`
	CountA   int         `json:"count_a"`
	CountB   int         `json:"count_b"`
	MaxShift float64     `json:"max_shift"`
}

// Divergence compares two spike logs of the same network. Shifts are taken
// over the spikes both logs share, matched by order.
type Divergence struct {
	Neurons         []NeuronDivergence `json:"neurons"`
	CountMismatches int                `json:"count_mismatches"`
	Matched         int                `json:"matched"`
	MaxShift        float64            `json:"max_shift"`
	MeanShift       float64            `json:"mean_shift"`
}

// Within reports whether both logs fired the same number of spikes per
// neuron and no matched spike moved by more than tol.
func (d Divergence) Within(tol float64) bool {
	return d.CountMismatches == 0 && d.MaxShift <= tol
}

func CompareSpikeLogs(a, b sim.SpikeLog) Divergence {
	ids := make([]nn.NeuronID, 0, len(a)+len(b))
	for id := range a {
		ids = append(ids, id)
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var out Divergence
	var total float64
	for _, id := range ids {
		ta, tb := a[id], b[id]
		nd := NeuronDivergence{Neuron: id, CountA: len(ta), CountB: len(tb)}
		if n := min(len(ta), len(tb)); n > 0 {
			nd.MaxShift = floats.Distance(ta[:n], tb[:n], math.Inf(1))
			total += floats.Distance(ta[:n], tb[:n], 1)
			out.Matched += n
		}
		if nd.CountA != nd.CountB {
			out.CountMismatches++
		}
		out.MaxShift = math.Max(out.MaxShift, nd.MaxShift)
		out.Neurons = append(out.Neurons, nd)
	}
	if out.Matched > 0 {
		out.MeanShift = total / float64(out.Matched)
	}
	return out
}
