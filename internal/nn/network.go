package nn

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownNeuron  = errors.New("unknown neuron")
	ErrForeignModule  = errors.New("module belongs to another network")
	ErrModuleAttached = errors.New("module already attached")
	ErrModuleCycle    = errors.New("module cycle")
)

// Network is the construction context for one simulated circuit. It owns
// the neuron and synapse arenas and mints every id; modules are views that
// group arena indices.
type Network struct {
	neurons  []Neuron
	synapses []Synapse
	modules  []*Module
	byUID    map[string]NeuronID
}

func NewNetwork() *Network {
	return &Network{byUID: make(map[string]NeuronID)}
}

// NewModule creates a detached module. Attach it with AddSubnetwork or use
// it as a simulation root.
func (net *Network) NewModule(name string) *Module {
	index := len(net.modules)
	uid := fmt.Sprintf("(m%d)", index)
	if name != "" {
		uid += "_" + name
	}
	m := &Module{net: net, index: index, name: name, uid: uid}
	net.modules = append(net.modules, m)
	return m
}

func (net *Network) NeuronCount() int {
	return len(net.neurons)
}

func (net *Network) SynapseCount() int {
	return len(net.synapses)
}

// Neuron returns a copy of the neuron with the given id.
func (net *Network) Neuron(id NeuronID) (Neuron, bool) {
	if !net.has(id) {
		return Neuron{}, false
	}
	return net.neurons[id], true
}

func (net *Network) Synapse(id SynapseID) (Synapse, bool) {
	if id < 0 || int(id) >= len(net.synapses) {
		return Synapse{}, false
	}
	return net.synapses[id], true
}

func (net *Network) Lookup(uid string) (NeuronID, bool) {
	id, ok := net.byUID[uid]
	return id, ok
}

// Snapshot returns private copies of every neuron in the arena. Outgoing
// synapse slices are shared and must be treated as read-only.
func (net *Network) Snapshot() []Neuron {
	out := make([]Neuron, len(net.neurons))
	copy(out, net.neurons)
	for i := range out {
		out[i].SpikeTimes = nil
	}
	return out
}

// Validate checks every neuron's parameters.
func (net *Network) Validate() error {
	for i := range net.neurons {
		if err := net.neurons[i].Params.Validate(); err != nil {
			return fmt.Errorf("neuron %s: %w", net.neurons[i].UID, err)
		}
	}
	return nil
}

func (net *Network) addNeuron(m *Module, p Params, name string) NeuronID {
	id := NeuronID(len(net.neurons))
	uid := fmt.Sprintf("(m%d,n%d)", m.index, id)
	if name != "" {
		uid += "_" + name
	}
	net.neurons = append(net.neurons, NewNeuron(id, uid, name, p))
	net.byUID[uid] = id
	return id
}

// Connect wires pre to post. Weight and delay are fixed from here on.
func (net *Network) Connect(pre, post NeuronID, t SynapseType, weight, delay float64) (SynapseID, error) {
	if !net.has(pre) {
		return 0, fmt.Errorf("%w: pre %d", ErrUnknownNeuron, pre)
	}
	if !net.has(post) {
		return 0, fmt.Errorf("%w: post %d", ErrUnknownNeuron, post)
	}
	if !t.Valid() {
		return 0, fmt.Errorf("%w: type %s", ErrInvalidSynapse, t)
	}
	if err := t.CheckWeight(weight); err != nil {
		return 0, err
	}
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay < 0 {
		return 0, fmt.Errorf("%w: delay %v", ErrInvalidSynapse, delay)
	}

	syn := Synapse{
		ID:     SynapseID(len(net.synapses)),
		Pre:    pre,
		Post:   post,
		Type:   t,
		Weight: weight,
		Delay:  delay,
	}
	net.synapses = append(net.synapses, syn)
	net.neurons[pre].Out = append(net.neurons[pre].Out, syn)
	return syn.ID, nil
}

func (net *Network) has(id NeuronID) bool {
	return id >= 0 && int(id) < len(net.neurons)
}

// Module is a named hierarchical grouping of neurons and sub-modules.
type Module struct {
	net    *Network
	index  int
	name   string
	uid    string
	parent *Module

	neurons     []NeuronID
	subnetworks []*Module
}

func (m *Module) Network() *Network { return m.net }
func (m *Module) UID() string       { return m.uid }
func (m *Module) Name() string      { return m.name }

// AddNeuron creates a neuron owned by this module. The neuron starts at
// rest: V = Vreset, no drift, gate closed.
func (m *Module) AddNeuron(p Params, name string) NeuronID {
	id := m.net.addNeuron(m, p, name)
	m.neurons = append(m.neurons, id)
	return id
}

func (m *Module) Connect(pre, post NeuronID, t SynapseType, weight, delay float64) (SynapseID, error) {
	return m.net.Connect(pre, post, t, weight, delay)
}

// AddSubnetwork attaches sub below m. Both must come from the same network.
func (m *Module) AddSubnetwork(sub *Module) error {
	if sub == nil {
		return errors.New("subnetwork is nil")
	}
	if sub.net != m.net {
		return fmt.Errorf("%w: %s", ErrForeignModule, sub.uid)
	}
	if sub.parent != nil {
		return fmt.Errorf("%w: %s under %s", ErrModuleAttached, sub.uid, sub.parent.uid)
	}
	for cur := m; cur != nil; cur = cur.parent {
		if cur == sub {
			return fmt.Errorf("%w: %s", ErrModuleCycle, sub.uid)
		}
	}
	sub.parent = m
	m.subnetworks = append(m.subnetworks, sub)
	return nil
}

// Neurons returns the neurons owned directly by m.
func (m *Module) Neurons() []NeuronID {
	return append([]NeuronID(nil), m.neurons...)
}

func (m *Module) Subnetworks() []*Module {
	return append([]*Module(nil), m.subnetworks...)
}

// AllNeurons flattens m's own neurons followed by each sub-module's, depth
// first, in insertion order.
func (m *Module) AllNeurons() []NeuronID {
	out := make([]NeuronID, 0, len(m.neurons))
	m.walk(func(mod *Module) {
		out = append(out, mod.neurons...)
	})
	return out
}

// NeuronModules maps every reachable neuron to the UID of the module that
// owns it.
func (m *Module) NeuronModules() map[NeuronID]string {
	out := make(map[NeuronID]string)
	m.walk(func(mod *Module) {
		for _, id := range mod.neurons {
			out[id] = mod.uid
		}
	})
	return out
}

// Find returns the neuron owned directly by m with the given name.
func (m *Module) Find(name string) (NeuronID, bool) {
	for _, id := range m.neurons {
		if m.net.neurons[id].Name == name {
			return id, true
		}
	}
	return 0, false
}

func (m *Module) walk(fn func(*Module)) {
	fn(m)
	for _, sub := range m.subnetworks {
		sub.walk(fn)
	}
}
