package circuits

import (
	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

// Memory holds one encoded interval. A spike on Recall replays it on
// Output; Ready fires once the value has been captured.
type Memory struct {
	Module *nn.Module

	Input  nn.NeuronID
	First  nn.NeuronID
	Last   nn.NeuronID
	Acc    nn.NeuronID
	Acc2   nn.NeuronID
	Recall nn.NeuronID
	Ready  nn.NeuronID
	Output nn.NeuronID
}

func NewMemory(net *nn.Network, enc encoding.Encoder, name string) (*Memory, error) {
	m := net.NewModule(name)
	p := Params()
	mem := &Memory{
		Module: m,
		Input:  m.AddNeuron(p, "input"),
		First:  m.AddNeuron(p, "first"),
		Last:   m.AddNeuron(p, "last"),
		Acc:    m.AddNeuron(p, "acc"),
		Acc2:   m.AddNeuron(p, "acc2"),
		Recall: m.AddNeuron(p, "recall"),
		Ready:  m.AddNeuron(p, "ready"),
		Output: m.AddNeuron(p, "output"),
	}
	wacc := accWeight(enc)

	w := wiring{m: m}
	w.connect(mem.Input, mem.First, nn.SynapseV, we, Tsyn)
	w.connect(mem.Input, mem.Last, nn.SynapseV, 0.5*we, Tsyn)
	// first only answers the leading pulse.
	w.connect(mem.First, mem.First, nn.SynapseV, wi, Tsyn)
	w.connect(mem.First, mem.Acc, nn.SynapseGe, wacc, Tsyn)
	// acc2 charges from the trailing pulse until acc reaches Tmax.
	w.connect(mem.Last, mem.Acc2, nn.SynapseGe, wacc, 2*Tsyn)
	w.connect(mem.Acc, mem.Acc2, nn.SynapseGe, -wacc, Tsyn)
	w.connect(mem.Recall, mem.Acc2, nn.SynapseGe, wacc, Tsyn)
	w.connect(mem.Recall, mem.Output, nn.SynapseV, we, 2*Tsyn)
	w.connect(mem.Acc2, mem.Output, nn.SynapseV, we, Tsyn)
	w.connect(mem.Acc, mem.Ready, nn.SynapseV, we, Tsyn)
	if w.err != nil {
		return nil, w.err
	}
	return mem, nil
}

func (m *Memory) Handle() Handle {
	return Handle{
		Module:  m.Module,
		Inputs:  []nn.NeuronID{m.Input},
		Outputs: []nn.NeuronID{m.Output},
		Recall:  []nn.NeuronID{m.Recall},
		Ready:   []nn.NeuronID{m.Ready},
	}
}
