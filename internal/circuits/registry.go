package circuits

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"axonsim/internal/circuitid"
	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

var (
	ErrCircuitExists   = errors.New("circuit already registered")
	ErrCircuitNotFound = errors.New("circuit not found")
)

// Options tune a circuit build. Size is the lane count of circuits that
// replicate a block, such as the synchronizer.
type Options struct {
	Size int `json:"size,omitempty"`
}

// SignedPair is a differential lane. A value v >= 0 travels on Plus and a
// negative one as |v| on Minus.
type SignedPair struct {
	Plus  nn.NeuronID
	Minus nn.NeuronID
}

// Handle exposes the interface neurons of a built circuit. Recall and Ready
// are empty for circuits that trigger themselves. Lanes are numbered over
// the plain neurons first, then the signed pairs.
type Handle struct {
	Module        *nn.Module
	Inputs        []nn.NeuronID
	Outputs       []nn.NeuronID
	SignedInputs  []SignedPair
	SignedOutputs []SignedPair
	Recall        []nn.NeuronID
	Ready         []nn.NeuronID
}

func (h Handle) InputLanes() int {
	return len(h.Inputs) + len(h.SignedInputs)
}

func (h Handle) OutputLanes() int {
	return len(h.Outputs) + len(h.SignedOutputs)
}

// Builder adds a named circuit to net.
type Builder func(net *nn.Network, enc encoding.Encoder, name string, opts Options) (Handle, error)

type Spec struct {
	Name        string
	Description string
	Build       Builder
}

var circuitRegistry = struct {
	mu sync.RWMutex
	m  map[string]Spec
}{
	m: make(map[string]Spec),
}

func init() {
	initializeBuiltInCircuits()
}

func initializeBuiltInCircuits() {
	MustRegister(Spec{
		Name:        "memory",
		Description: "stores one interval and replays it after a recall spike",
		Build: func(net *nn.Network, enc encoding.Encoder, name string, _ Options) (Handle, error) {
			m, err := NewMemory(net, enc, name)
			if err != nil {
				return Handle{}, err
			}
			return m.Handle(), nil
		},
	})
	MustRegister(Spec{
		Name:        "inverting_memory",
		Description: "stores v and replays 1-v after a recall spike",
		Build: func(net *nn.Network, enc encoding.Encoder, name string, _ Options) (Handle, error) {
			m, err := NewInvertingMemory(net, enc, name)
			if err != nil {
				return Handle{}, err
			}
			return m.Handle(), nil
		},
	})
	MustRegister(Spec{
		Name:        "signed_memory",
		Description: "stores a value in [-1, 1] on a +/- pair and replays it after a recall spike",
		Build: func(net *nn.Network, enc encoding.Encoder, name string, _ Options) (Handle, error) {
			m, err := NewSignedMemory(net, enc, name)
			if err != nil {
				return Handle{}, err
			}
			return m.Handle(), nil
		},
	})
	MustRegister(Spec{
		Name:        "synchronizer",
		Description: "buffers N inputs and releases them aligned once all have arrived",
		Build: func(net *nn.Network, enc encoding.Encoder, name string, opts Options) (Handle, error) {
			s, err := NewSynchronizer(net, enc, opts.Size, name)
			if err != nil {
				return Handle{}, err
			}
			return s.Handle(), nil
		},
	})
}

// Register adds spec under its normalized name.
func Register(spec Spec) error {
	spec.Name = circuitid.Normalize(spec.Name)
	if spec.Name == "" {
		return errors.New("circuit name is required")
	}
	if spec.Build == nil {
		return errors.New("circuit builder is required")
	}

	circuitRegistry.mu.Lock()
	defer circuitRegistry.mu.Unlock()

	if _, exists := circuitRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrCircuitExists, spec.Name)
	}
	circuitRegistry.m[spec.Name] = spec
	return nil
}

func MustRegister(spec Spec) {
	if err := Register(spec); err != nil {
		panic(err)
	}
}

// Get resolves name through circuitid.Normalize, so aliases such as
// "inverting-memory" or "sync" find the built-ins.
func Get(name string) (Spec, error) {
	circuitRegistry.mu.RLock()
	spec, ok := circuitRegistry.m[circuitid.Normalize(name)]
	circuitRegistry.mu.RUnlock()
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrCircuitNotFound, name)
	}
	return spec, nil
}

// Build looks up a circuit and adds it to net.
func Build(net *nn.Network, enc encoding.Encoder, circuit, name string, opts Options) (Handle, error) {
	spec, err := Get(circuit)
	if err != nil {
		return Handle{}, err
	}
	return spec.Build(net, enc, name, opts)
}

func List() []Spec {
	circuitRegistry.mu.RLock()
	defer circuitRegistry.mu.RUnlock()

	specs := make([]Spec, 0, len(circuitRegistry.m))
	for _, spec := range circuitRegistry.m {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func resetCircuitRegistryForTests() {
	circuitRegistry.mu.Lock()
	circuitRegistry.m = make(map[string]Spec)
	circuitRegistry.mu.Unlock()
	initializeBuiltInCircuits()
}
