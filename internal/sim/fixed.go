package sim

import (
	"context"
	"fmt"
	"math"
	"slices"

	"axonsim/internal/encoding"
	"axonsim/internal/events"
	"axonsim/internal/nn"
)

// VoltageSample is one point of a FixedStep voltage trace.
type VoltageSample struct {
	Step int     `json:"step"`
	Time float64 `json:"time"`
	V    float64 `json:"v"`
}

// FixedStep advances time in ticks t = k*dt. Each tick applies every due
// event, then integrates the touched and still-drifting neurons once.
type FixedStep struct {
	core

	queue    *events.TimeQueue
	step     int
	drifting []nn.NeuronID
	mark     []bool
	voltages map[nn.NeuronID][]VoltageSample
}

func NewFixedStep(root *nn.Module, enc encoding.Encoder, cfg Config) (*FixedStep, error) {
	c, err := newCore(root, enc, cfg)
	if err != nil {
		return nil, err
	}
	s := &FixedStep{
		core:  c,
		queue: events.NewTimeQueue(),
		mark:  make([]bool, len(c.neurons)),
	}
	if c.cfg.RecordVoltage {
		s.voltages = make(map[nn.NeuronID][]VoltageSample)
	}
	return s, nil
}

// Now is the time of the next tick to run.
func (s *FixedStep) Now() float64 {
	return float64(s.step) * s.cfg.DT
}

func (s *FixedStep) ApplyInputValue(v float64, neuron nn.NeuronID, t0 float64) error {
	times, err := s.inputTimes(v, neuron, t0)
	if err != nil {
		return err
	}
	for _, t := range times {
		s.fire(neuron, t)
	}
	return nil
}

// ApplyInputSpike records a spike of neuron at t and sends it down every
// outgoing synapse.
func (s *FixedStep) ApplyInputSpike(neuron nn.NeuronID, t float64) error {
	if err := s.checkNeuron(neuron); err != nil {
		return err
	}
	if err := checkTime(t); err != nil {
		return err
	}
	s.fire(neuron, t)
	return nil
}

func (s *FixedStep) Inject(t float64, target nn.NeuronID, typ nn.SynapseType, weight float64) error {
	if err := s.checkInject(t, target, typ, weight); err != nil {
		return err
	}
	s.queue.Push(events.Event{Time: t, Target: target, Type: typ, Weight: weight})
	return nil
}

// Simulate runs every tick with t <= duration.
func (s *FixedStep) Simulate(ctx context.Context, duration float64) error {
	return s.Advance(ctx, duration)
}

// Advance runs ticks until the next one would pass until. Later calls
// resume from there. until must be finite or -Inf.
func (s *FixedStep) Advance(ctx context.Context, until float64) error {
	if math.IsNaN(until) || math.IsInf(until, 1) {
		return fmt.Errorf("%w: %v", ErrUnboundedAdvance, until)
	}
	for ran := 0; ; ran++ {
		t := s.Now()
		if t > until {
			return nil
		}
		if ran%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s.tick(t)
		s.step++
	}
}

func (s *FixedStep) tick(t float64) {
	var candidates []nn.NeuronID
	add := func(id nn.NeuronID) {
		if !s.mark[id] {
			s.mark[id] = true
			candidates = append(candidates, id)
		}
	}

	for _, e := range s.queue.PopUntil(t) {
		s.apply(e.Target, e.Type, e.Weight)
		add(e.Target)
	}
	for _, id := range s.drifting {
		add(id)
	}
	slices.Sort(candidates)

	var next []nn.NeuronID
	for _, id := range candidates {
		s.mark[id] = false
		n := &s.neurons[id]
		_, spike := n.UpdateAndSpike(s.cfg.DT)
		if s.voltages != nil {
			s.voltages[id] = append(s.voltages[id], VoltageSample{Step: s.step, Time: t, V: n.V})
		}
		if spike {
			s.logSpike(id, t)
			n.Reset()
			s.propagate(id, t)
		}
		if n.HasDrift() {
			next = append(next, id)
		}
	}
	s.drifting = next
}

func (s *FixedStep) fire(id nn.NeuronID, t float64) {
	s.logSpike(id, t)
	s.propagate(id, t)
}

func (s *FixedStep) propagate(id nn.NeuronID, t float64) {
	for _, syn := range s.neurons[id].Out {
		s.queue.Push(events.Event{Time: t + syn.Delay, Target: syn.Post, Type: syn.Type, Weight: syn.Weight})
	}
}

// Voltages returns the recorded trace of one neuron, if tracing is on.
func (s *FixedStep) Voltages(id nn.NeuronID) []VoltageSample {
	return append([]VoltageSample(nil), s.voltages[id]...)
}

// Pending reports how many events are still queued.
func (s *FixedStep) Pending() int {
	return s.queue.Len()
}

func (s *FixedStep) Stats() RunStats {
	stats := s.baseStats()
	stats.Steps = s.step
	stats.Now = s.Now()
	return stats
}
