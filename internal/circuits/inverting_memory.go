package circuits

import (
	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

// InvertingMemory stores v and replays 1-v on recall.
type InvertingMemory struct {
	Module *nn.Module

	Input  nn.NeuronID
	First  nn.NeuronID
	Last   nn.NeuronID
	Acc    nn.NeuronID
	Recall nn.NeuronID
	Output nn.NeuronID
}

func NewInvertingMemory(net *nn.Network, enc encoding.Encoder, name string) (*InvertingMemory, error) {
	m := net.NewModule(name)
	p := Params()
	mem := &InvertingMemory{
		Module: m,
		Input:  m.AddNeuron(p, "input"),
		First:  m.AddNeuron(p, "first"),
		Last:   m.AddNeuron(p, "last"),
		Acc:    m.AddNeuron(p, "acc"),
		Recall: m.AddNeuron(p, "recall"),
		Output: m.AddNeuron(p, "output"),
	}
	wacc := accWeight(enc)

	w := wiring{m: m}
	w.connect(mem.Input, mem.First, nn.SynapseV, we, Tsyn)
	w.connect(mem.Input, mem.Last, nn.SynapseV, 0.5*we, Tsyn)
	w.connect(mem.First, mem.First, nn.SynapseV, wi, Tsyn)
	// Delaying the charge by Tmin leaves acc holding v*Tcod worth of drive.
	w.connect(mem.First, mem.Acc, nn.SynapseGe, wacc, Tsyn+enc.Tmin)
	w.connect(mem.Last, mem.Acc, nn.SynapseGe, -wacc, Tsyn)
	w.connect(mem.Recall, mem.Acc, nn.SynapseGe, wacc, Tsyn)
	w.connect(mem.Acc, mem.Output, nn.SynapseV, we, Tsyn)
	w.connect(mem.Recall, mem.Output, nn.SynapseV, we, 2*Tsyn+Tneu)
	if w.err != nil {
		return nil, w.err
	}
	return mem, nil
}

func (m *InvertingMemory) Handle() Handle {
	return Handle{
		Module:  m.Module,
		Inputs:  []nn.NeuronID{m.Input},
		Outputs: []nn.NeuronID{m.Output},
		Recall:  []nn.NeuronID{m.Recall},
	}
}
