package circuits

import (
	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

// SignedMemory stores a value in [-1, 1]. The magnitude goes through an
// inner Memory; the sign is latched by a pair of ready neurons that veto
// the opposite output on recall.
type SignedMemory struct {
	Module *nn.Module
	Mem    *Memory

	InputPos  nn.NeuronID
	InputNeg  nn.NeuronID
	ReadyPos  nn.NeuronID
	ReadyNeg  nn.NeuronID
	Recall    nn.NeuronID
	OutputPos nn.NeuronID
	OutputNeg nn.NeuronID
	Ready     nn.NeuronID
}

func NewSignedMemory(net *nn.Network, enc encoding.Encoder, name string) (*SignedMemory, error) {
	m := net.NewModule(name)
	p := Params()
	sm := &SignedMemory{
		Module:    m,
		InputPos:  m.AddNeuron(p, "input+"),
		InputNeg:  m.AddNeuron(p, "input-"),
		ReadyPos:  m.AddNeuron(p, "ready+"),
		ReadyNeg:  m.AddNeuron(p, "ready-"),
		Recall:    m.AddNeuron(p, "recall"),
		OutputPos: m.AddNeuron(p, "output+"),
		OutputNeg: m.AddNeuron(p, "output-"),
		Ready:     m.AddNeuron(p, "ready"),
	}
	mem, err := NewMemory(net, enc, "mem")
	if err != nil {
		return nil, err
	}
	if err := m.AddSubnetwork(mem.Module); err != nil {
		return nil, err
	}
	sm.Mem = mem

	w := wiring{m: m}
	w.connect(sm.InputPos, sm.ReadyPos, nn.SynapseV, we, Tsyn)
	w.connect(sm.InputNeg, sm.ReadyNeg, nn.SynapseV, we, Tsyn)
	w.connect(sm.InputPos, sm.ReadyNeg, nn.SynapseV, 0.25*we, Tsyn)
	w.connect(sm.InputNeg, sm.ReadyPos, nn.SynapseV, 0.25*we, Tsyn)
	w.connect(sm.ReadyPos, sm.ReadyNeg, nn.SynapseV, 0.5*wi, Tsyn)
	w.connect(sm.ReadyNeg, sm.ReadyPos, nn.SynapseV, 0.5*wi, Tsyn)
	w.connect(sm.Recall, sm.ReadyPos, nn.SynapseV, 0.5*we, Tsyn)
	w.connect(sm.Recall, sm.ReadyNeg, nn.SynapseV, 0.5*we, Tsyn)

	w.connect(sm.InputPos, mem.Input, nn.SynapseV, we, Tsyn)
	w.connect(sm.InputNeg, mem.Input, nn.SynapseV, we, Tsyn)
	w.connect(sm.Recall, mem.Recall, nn.SynapseV, we, Tsyn)
	w.connect(mem.Output, sm.OutputPos, nn.SynapseV, we, Tsyn)
	w.connect(mem.Output, sm.OutputNeg, nn.SynapseV, we, Tsyn)

	// The latched sign holds the wrong output far below threshold.
	w.connect(sm.ReadyPos, sm.OutputNeg, nn.SynapseV, 2*wi, Tsyn)
	w.connect(sm.ReadyNeg, sm.OutputPos, nn.SynapseV, 2*wi, Tsyn)
	w.connect(mem.Output, sm.Ready, nn.SynapseV, we, Tsyn)
	if w.err != nil {
		return nil, w.err
	}
	return sm, nil
}

func (m *SignedMemory) Handle() Handle {
	return Handle{
		Module:        m.Module,
		SignedInputs:  []SignedPair{{Plus: m.InputPos, Minus: m.InputNeg}},
		SignedOutputs: []SignedPair{{Plus: m.OutputPos, Minus: m.OutputNeg}},
		Recall:        []nn.NeuronID{m.Recall},
		Ready:         []nn.NeuronID{m.Ready},
	}
}
