package circuits

import (
	"fmt"

	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

const DefaultSynchronizerSize = 2

// Synchronizer buffers N values in memory lanes. Once every lane reports
// ready, the sync neuron recalls all of them so the outputs start together.
type Synchronizer struct {
	Module *nn.Module

	Sync    nn.NeuronID
	Inputs  []nn.NeuronID
	Outputs []nn.NeuronID
	Lanes   []*Memory
}

// NewSynchronizer builds an n-lane synchronizer; n <= 0 selects
// DefaultSynchronizerSize.
func NewSynchronizer(net *nn.Network, enc encoding.Encoder, n int, name string) (*Synchronizer, error) {
	if n <= 0 {
		n = DefaultSynchronizerSize
	}
	m := net.NewModule(name)
	p := Params()
	s := &Synchronizer{
		Module: m,
		Sync:   m.AddNeuron(p, "sync"),
	}

	w := wiring{m: m}
	for i := 0; i < n; i++ {
		in := m.AddNeuron(p, fmt.Sprintf("input_%d", i))
		out := m.AddNeuron(p, fmt.Sprintf("output_%d", i))
		lane, err := NewMemory(net, enc, fmt.Sprintf("mem_%d", i))
		if err != nil {
			return nil, err
		}
		if err := m.AddSubnetwork(lane.Module); err != nil {
			return nil, err
		}

		w.connect(in, lane.Input, nn.SynapseV, we, Tsyn)
		w.connect(lane.Output, out, nn.SynapseV, we, Tsyn)
		// Slightly above we/n so n ready pulses always reach threshold.
		w.connect(lane.Ready, s.Sync, nn.SynapseV, we/float64(n)+0.0001, Tsyn)
		w.connect(s.Sync, lane.Recall, nn.SynapseV, we, Tsyn)

		s.Inputs = append(s.Inputs, in)
		s.Outputs = append(s.Outputs, out)
		s.Lanes = append(s.Lanes, lane)
	}
	if w.err != nil {
		return nil, w.err
	}
	return s, nil
}

func (s *Synchronizer) Handle() Handle {
	return Handle{
		Module:  s.Module,
		Inputs:  append([]nn.NeuronID(nil), s.Inputs...),
		Outputs: append([]nn.NeuronID(nil), s.Outputs...),
	}
}
