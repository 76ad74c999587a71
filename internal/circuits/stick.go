// Package circuits builds reference spike-timing circuits on top of an
// nn.Network and keeps a registry of them by name.
package circuits

import (
	"fmt"

	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

// Neuron constants shared by the reference circuits.
const (
	Vt   = 10.0
	Tm   = 100.0
	Tf   = 20.0
	Tsyn = 1.0
	Tneu = 0.01

	we = Vt
	wi = -Vt
)

// Params are the neuron parameters every reference circuit uses.
func Params() nn.Params {
	return nn.Params{Vt: Vt, Tm: Tm, Tf: Tf}
}

// accWeight is the ge weight that integrates to Vt over exactly Tmax.
func accWeight(enc encoding.Encoder) float64 {
	return Vt * Tm / enc.Tmax()
}

// wiring records the first Connect error so builders can wire a whole
// circuit and check once.
type wiring struct {
	m   *nn.Module
	err error
}

func (w *wiring) connect(pre, post nn.NeuronID, t nn.SynapseType, weight, delay float64) {
	if w.err != nil {
		return
	}
	if _, err := w.m.Connect(pre, post, t, weight, delay); err != nil {
		w.err = fmt.Errorf("%s: %w", w.m.UID(), err)
	}
}
