package nn

import (
	"errors"
	"math"
	"testing"
)

func TestModuleAllNeuronsOrder(t *testing.T) {
	net := NewNetwork()
	root := net.NewModule("root")
	a := root.AddNeuron(testParams(), "a")

	sub := net.NewModule("sub")
	b := sub.AddNeuron(testParams(), "b")
	c := sub.AddNeuron(testParams(), "c")

	nested := net.NewModule("nested")
	d := nested.AddNeuron(testParams(), "d")
	if err := sub.AddSubnetwork(nested); err != nil {
		t.Fatalf("attach nested: %v", err)
	}
	if err := root.AddSubnetwork(sub); err != nil {
		t.Fatalf("attach sub: %v", err)
	}
	e := root.AddNeuron(testParams(), "e")

	got := root.AllNeurons()
	want := []NeuronID{a, e, b, c, d}
	if len(got) != len(want) {
		t.Fatalf("unexpected neuron count: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got=%v want=%v", got, want)
		}
	}

	modules := root.NeuronModules()
	if modules[d] != nested.UID() || modules[a] != root.UID() {
		t.Fatalf("unexpected module mapping: %v", modules)
	}
}

func TestNeuronUIDsAndLookup(t *testing.T) {
	net := NewNetwork()
	m := net.NewModule("memory")
	id := m.AddNeuron(testParams(), "input")

	n, ok := net.Neuron(id)
	if !ok {
		t.Fatal("expected neuron")
	}
	if n.UID != "(m0,n0)_input" {
		t.Fatalf("unexpected uid: %s", n.UID)
	}
	if m.UID() != "(m0)_memory" {
		t.Fatalf("unexpected module uid: %s", m.UID())
	}
	got, ok := net.Lookup(n.UID)
	if !ok || got != id {
		t.Fatalf("lookup failed: id=%d ok=%t", got, ok)
	}
	if found, ok := m.Find("input"); !ok || found != id {
		t.Fatalf("find failed: id=%d ok=%t", found, ok)
	}
	if n.V != n.Vreset {
		t.Fatalf("new neuron must start at rest: %+v", n)
	}
}

func TestConnectAppendsOutgoingSynapses(t *testing.T) {
	net := NewNetwork()
	m := net.NewModule("")
	pre := m.AddNeuron(testParams(), "pre")
	post := m.AddNeuron(testParams(), "post")

	if _, err := m.Connect(pre, post, SynapseGe, 1.5, 2); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := m.Connect(pre, pre, SynapseV, -10, 1); err != nil {
		t.Fatalf("connect self: %v", err)
	}

	n, _ := net.Neuron(pre)
	if len(n.Out) != 2 {
		t.Fatalf("expected 2 outgoing synapses, got %d", len(n.Out))
	}
	if n.Out[0].Post != post || n.Out[0].Type != SynapseGe || n.Out[0].Delay != 2 {
		t.Fatalf("unexpected first synapse: %+v", n.Out[0])
	}
	if n.Out[1].ID != 1 || net.SynapseCount() != 2 {
		t.Fatalf("unexpected synapse ids: %+v count=%d", n.Out[1], net.SynapseCount())
	}
}

func TestConnectRejectsMalformedWiring(t *testing.T) {
	net := NewNetwork()
	m := net.NewModule("")
	a := m.AddNeuron(testParams(), "a")

	tests := []struct {
		name   string
		post   NeuronID
		typ    SynapseType
		weight float64
		delay  float64
		want   error
	}{
		{name: "unknown-post", post: 7, typ: SynapseV, weight: 1, delay: 1, want: ErrUnknownNeuron},
		{name: "invalid-type", post: a, typ: SynapseType(0), weight: 1, delay: 1, want: ErrInvalidSynapse},
		{name: "negative-delay", post: a, typ: SynapseV, weight: 1, delay: -1, want: ErrInvalidSynapse},
		{name: "fractional-gate", post: a, typ: SynapseGate, weight: 0.5, delay: 1, want: ErrInvalidSynapse},
		{name: "nan-weight", post: a, typ: SynapseGe, weight: math.NaN(), delay: 1, want: ErrInvalidSynapse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Connect(a, tc.post, tc.typ, tc.weight, tc.delay)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAddSubnetworkGuards(t *testing.T) {
	net := NewNetwork()
	root := net.NewModule("root")
	sub := net.NewModule("sub")
	if err := root.AddSubnetwork(sub); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := root.AddSubnetwork(sub); !errors.Is(err, ErrModuleAttached) {
		t.Fatalf("expected ErrModuleAttached, got %v", err)
	}
	if err := sub.AddSubnetwork(root); !errors.Is(err, ErrModuleCycle) {
		t.Fatalf("expected ErrModuleCycle, got %v", err)
	}

	other := NewNetwork().NewModule("other")
	if err := root.AddSubnetwork(other); !errors.Is(err, ErrForeignModule) {
		t.Fatalf("expected ErrForeignModule, got %v", err)
	}
}

func TestSnapshotIsPrivate(t *testing.T) {
	net := NewNetwork()
	m := net.NewModule("")
	id := m.AddNeuron(testParams(), "a")

	snap := net.Snapshot()
	snap[id].ReceiveSynapticEvent(SynapseV, 5)
	snap[id].RecordSpike(1)

	n, _ := net.Neuron(id)
	if n.V != 0 || len(n.SpikeTimes) != 0 {
		t.Fatalf("snapshot mutation leaked into network: %+v", n)
	}
}

func TestValidateReportsBadNeuron(t *testing.T) {
	net := NewNetwork()
	m := net.NewModule("")
	m.AddNeuron(Params{Vt: 10, Tm: 0, Tf: 20}, "bad")
	if err := net.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
