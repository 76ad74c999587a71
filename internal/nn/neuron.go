package nn

import (
	"fmt"
	"math"
)

type NeuronID int

// Params are the fixed constants of a neuron.
type Params struct {
	Vt     float64 `json:"vt"`
	Tm     float64 `json:"tm"`
	Tf     float64 `json:"tf"`
	Vreset float64 `json:"vreset"`
}

func (p Params) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{{"vt", p.Vt}, {"tm", p.Tm}, {"tf", p.Tf}, {"vreset", p.Vreset}}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
	}
	if p.Tm <= 0 {
		return fmt.Errorf("tm must be > 0, got %v", p.Tm)
	}
	if p.Tf <= 0 {
		return fmt.Errorf("tf must be > 0, got %v", p.Tf)
	}
	if p.Vt <= p.Vreset {
		return fmt.Errorf("vt (%v) must exceed vreset (%v)", p.Vt, p.Vreset)
	}
	return nil
}

// Neuron holds the parameters, mutable state and spike history of one
// timing unit. V stays below Vt except at the instant a spike is recorded.
type Neuron struct {
	Params

	ID   NeuronID
	UID  string
	Name string

	V    float64
	Ge   float64
	Gf   float64
	Gate int

	SpikeTimes []float64
	Out        []Synapse
}

func NewNeuron(id NeuronID, uid, name string, p Params) Neuron {
	return Neuron{
		Params: p,
		ID:     id,
		UID:    uid,
		Name:   name,
		V:      p.Vreset,
	}
}

// UpdateAndSpike advances the state by one Euler step of length dt and
// reports whether the threshold was reached. State is not reset here.
func (n *Neuron) UpdateAndSpike(dt float64) (float64, bool) {
	n.V += dt * (n.Ge + float64(n.Gate)*n.Gf) / n.Tm
	if n.Gate != 0 {
		n.Gf -= dt * n.Gf / n.Tf
	}
	return n.V, n.V >= n.Vt
}

// ReceiveSynapticEvent applies an instantaneous synaptic effect. Any type
// outside the closed set is a wiring bug and panics. Gate weights are
// whole numbers once they pass SynapseType.CheckWeight.
func (n *Neuron) ReceiveSynapticEvent(t SynapseType, weight float64) {
	switch t {
	case SynapseV:
		n.V += weight
	case SynapseGe:
		n.Ge += weight
	case SynapseGf:
		n.Gf += weight
	case SynapseGate:
		n.Gate += int(weight)
	default:
		panic(fmt.Sprintf("neuron %s: %v: %s", n.UID, ErrInvalidSynapse, t))
	}
}

func (n *Neuron) Reset() {
	n.V = n.Vreset
	n.Ge = 0
	n.Gf = 0
	n.Gate = 0
}

func (n *Neuron) RecordSpike(t float64) {
	n.SpikeTimes = append(n.SpikeTimes, t)
}

// HasDrift reports whether the neuron keeps integrating without new input.
func (n *Neuron) HasDrift() bool {
	return n.Ge != 0 || n.Gf != 0 || n.Gate != 0
}

// VoltageAfter evaluates the closed-form trajectory from the current
// (frozen) state after elapsed time t.
func (n *Neuron) VoltageAfter(t float64) float64 {
	v := n.V + (n.Ge/n.Tm)*t
	if n.Gate != 0 {
		v += (float64(n.Gate) * n.Gf * n.Tf / n.Tm) * (1 - math.Exp(-t/n.Tf))
	}
	return v
}

// Evolve moves the state forward by t along the closed-form trajectory.
func (n *Neuron) Evolve(t float64) {
	if t <= 0 {
		return
	}
	n.V = n.VoltageAfter(t)
	if n.Gate != 0 {
		n.Gf *= math.Exp(-t / n.Tf)
	}
}
