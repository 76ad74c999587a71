// Package sim advances a network through time. FixedStep integrates every
// drifting neuron on a regular grid; Predictive solves each neuron's next
// spike time analytically and revises that prediction when new input
// arrives.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

const (
	DefaultDT        = 0.01
	DefaultHorizon   = 500.0
	DefaultMaxEvents = 5_000_000

	ctxCheckInterval = 1024
)

var (
	ErrEventBudgetExceeded = errors.New("event budget exceeded")
	ErrUnboundedAdvance    = errors.New("advance needs a bounded end time")
)

// Engine is the surface shared by both simulation strategies.
type Engine interface {
	ApplyInputValue(v float64, neuron nn.NeuronID, t0 float64) error
	ApplyInputSpike(neuron nn.NeuronID, t float64) error
	Inject(t float64, target nn.NeuronID, typ nn.SynapseType, weight float64) error
	Advance(ctx context.Context, until float64) error
	SpikeLog() SpikeLog
	Stats() RunStats
}

type Config struct {
	// DT is the integration step of FixedStep and the resolution of the
	// predictive search grid.
	DT float64
	// Horizon bounds how far ahead Predictive searches for a crossing.
	Horizon float64
	// MaxEvents caps the events Predictive pops in one run.
	MaxEvents int
	// RecordVoltage keeps a per-tick voltage trace in FixedStep.
	RecordVoltage bool
}

func DefaultConfig() Config {
	return Config{DT: DefaultDT, Horizon: DefaultHorizon, MaxEvents: DefaultMaxEvents}
}

func (c Config) withDefaults() Config {
	if c.DT == 0 {
		c.DT = DefaultDT
	}
	if c.Horizon == 0 {
		c.Horizon = DefaultHorizon
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	return c
}

func (c Config) Validate() error {
	if math.IsNaN(c.DT) || math.IsInf(c.DT, 0) || c.DT <= 0 {
		return fmt.Errorf("dt must be > 0, got %v", c.DT)
	}
	if math.IsNaN(c.Horizon) || math.IsInf(c.Horizon, 0) || c.Horizon < c.DT {
		return fmt.Errorf("horizon must be >= dt, got %v", c.Horizon)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("max events must be >= 0, got %d", c.MaxEvents)
	}
	return nil
}

// RunStats summarizes the work an engine has done so far.
type RunStats struct {
	Processed   map[nn.SynapseType]int `json:"processed"`
	Spikes      int                    `json:"spikes"`
	Steps       int                    `json:"steps"`
	Predictions int                    `json:"predictions,omitempty"`
	Cancelled   int                    `json:"cancelled,omitempty"`
	Now         float64                `json:"now"`
}

// ProcessedTotal counts synaptic events applied across all types.
func (s RunStats) ProcessedTotal() int {
	total := 0
	for _, n := range s.Processed {
		total += n
	}
	return total
}

// core holds what both engines share: a private copy of neuron state, the
// encoder and the bookkeeping behind SpikeLog and Stats.
type core struct {
	root      *nn.Module
	enc       encoding.Encoder
	cfg       Config
	neurons   []nn.Neuron
	watched   []nn.NeuronID
	processed map[nn.SynapseType]int
	spikes    int
}

func newCore(root *nn.Module, enc encoding.Encoder, cfg Config) (core, error) {
	if root == nil {
		return core{}, errors.New("root module is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return core{}, err
	}
	net := root.Network()
	if err := net.Validate(); err != nil {
		return core{}, err
	}
	return core{
		root:      root,
		enc:       enc,
		cfg:       cfg,
		neurons:   net.Snapshot(),
		watched:   root.AllNeurons(),
		processed: make(map[nn.SynapseType]int, len(nn.SynapseTypes())),
	}, nil
}

func (c *core) checkNeuron(id nn.NeuronID) error {
	if id < 0 || int(id) >= len(c.neurons) {
		return fmt.Errorf("%w: %d", nn.ErrUnknownNeuron, id)
	}
	return nil
}

func checkTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("event time must be finite, got %v", t)
	}
	return nil
}

func (c *core) checkInject(t float64, target nn.NeuronID, typ nn.SynapseType, weight float64) error {
	if err := c.checkNeuron(target); err != nil {
		return err
	}
	if err := checkTime(t); err != nil {
		return err
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: type %s", nn.ErrInvalidSynapse, typ)
	}
	return typ.CheckWeight(weight)
}

// inputTimes validates v and returns the absolute times of its two pulses.
func (c *core) inputTimes(v float64, neuron nn.NeuronID, t0 float64) ([2]float64, error) {
	if err := c.checkNeuron(neuron); err != nil {
		return [2]float64{}, err
	}
	if err := checkTime(t0); err != nil {
		return [2]float64{}, err
	}
	first, second, err := c.enc.EncodeValue(v)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{t0 + first, t0 + second}, nil
}

func (c *core) apply(id nn.NeuronID, typ nn.SynapseType, weight float64) {
	c.neurons[id].ReceiveSynapticEvent(typ, weight)
	c.processed[typ]++
}

func (c *core) logSpike(id nn.NeuronID, t float64) {
	c.neurons[id].RecordSpike(t)
	c.spikes++
}

// SpikeLog returns every watched neuron (empty or not) plus any other
// neuron of the arena that spiked, each with its times in ascending order.
func (c *core) SpikeLog() SpikeLog {
	log := make(SpikeLog, len(c.watched))
	for _, id := range c.watched {
		log[id] = sortedCopy(c.neurons[id].SpikeTimes)
	}
	for i := range c.neurons {
		id := nn.NeuronID(i)
		if _, ok := log[id]; ok || len(c.neurons[i].SpikeTimes) == 0 {
			continue
		}
		log[id] = sortedCopy(c.neurons[i].SpikeTimes)
	}
	return log
}

// State returns a copy of the engine's view of one neuron.
func (c *core) State(id nn.NeuronID) (nn.Neuron, bool) {
	if c.checkNeuron(id) != nil {
		return nn.Neuron{}, false
	}
	return c.neurons[id], true
}

func (c *core) baseStats() RunStats {
	processed := make(map[nn.SynapseType]int, len(c.processed))
	for k, v := range c.processed {
		processed[k] = v
	}
	return RunStats{Processed: processed, Spikes: c.spikes}
}

func sortedCopy(times []float64) []float64 {
	out := append([]float64{}, times...)
	sort.Float64s(out)
	return out
}
