package nn

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSynapse = errors.New("invalid synapse")

// SynapseType selects which neuron state variable a synaptic event drives.
type SynapseType uint8

const (
	synapseInvalid SynapseType = iota
	// SynapseV adds the weight directly to the membrane potential.
	SynapseV
	// SynapseGe adds to the constant excitatory drift.
	SynapseGe
	// SynapseGf adds to the gated, exponentially decaying drift.
	SynapseGf
	// SynapseGate shifts the integer gate level.
	SynapseGate
)

var synapseTypeNames = [...]string{
	synapseInvalid: "invalid",
	SynapseV:       "V",
	SynapseGe:      "ge",
	SynapseGf:      "gf",
	SynapseGate:    "gate",
}

func (t SynapseType) String() string {
	if int(t) < len(synapseTypeNames) {
		return synapseTypeNames[t]
	}
	return fmt.Sprintf("SynapseType(%d)", uint8(t))
}

func (t SynapseType) Valid() bool {
	return t >= SynapseV && t <= SynapseGate
}

// CheckWeight rejects weights a synapse of type t cannot carry. Gate
// weights step an integer level and must be whole numbers.
func (t SynapseType) CheckWeight(weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: weight %v", ErrInvalidSynapse, weight)
	}
	if t == SynapseGate && weight != math.Trunc(weight) {
		return fmt.Errorf("%w: gate weight %v is not an integer", ErrInvalidSynapse, weight)
	}
	return nil
}

// SynapseTypes lists every valid type in declaration order.
func SynapseTypes() []SynapseType {
	return []SynapseType{SynapseV, SynapseGe, SynapseGf, SynapseGate}
}

func ParseSynapseType(name string) (SynapseType, error) {
	for _, t := range SynapseTypes() {
		if t.String() == name {
			return t, nil
		}
	}
	return synapseInvalid, fmt.Errorf("%w: unknown type %q", ErrInvalidSynapse, name)
}

func (t SynapseType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSynapse, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *SynapseType) UnmarshalText(text []byte) error {
	parsed, err := ParseSynapseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type SynapseID int

// Synapse is an immutable weighted, delayed edge between two neurons.
type Synapse struct {
	ID     SynapseID
	Pre    NeuronID
	Post   NeuronID
	Type   SynapseType
	Weight float64
	Delay  float64
}
