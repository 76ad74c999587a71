package sim

import (
	"context"
	"fmt"
	"math"

	"axonsim/internal/encoding"
	"axonsim/internal/events"
	"axonsim/internal/nn"
)

// searchIterations bounds the bisection over the prediction grid.
const searchIterations = 64

// Predictive is the event-driven engine. A neuron's state is frozen between
// the events that touch it; on every hit the engine solves the closed-form
// trajectory for the next threshold crossing and schedules a provisional
// reset plus the resulting spike hits. A later hit on the same neuron
// cancels those provisional events before it mutates the state.
type Predictive struct {
	core

	queue       *events.CancelableQueue
	provisional [][]events.Scheduled
	lastUpdate  []float64
	maxSteps    int

	now         float64
	popped      int
	buckets     int
	predictions int
	cancelled   int
}

func NewPredictive(root *nn.Module, enc encoding.Encoder, cfg Config) (*Predictive, error) {
	c, err := newCore(root, enc, cfg)
	if err != nil {
		return nil, err
	}
	return &Predictive{
		core:        c,
		queue:       events.NewCancelableQueue(),
		provisional: make([][]events.Scheduled, len(c.neurons)),
		lastUpdate:  make([]float64, len(c.neurons)),
		maxSteps:    int(c.cfg.Horizon / c.cfg.DT),
	}, nil
}

func (s *Predictive) ApplyInputValue(v float64, neuron nn.NeuronID, t0 float64) error {
	times, err := s.inputTimes(v, neuron, t0)
	if err != nil {
		return err
	}
	for _, t := range times {
		if err := s.ApplyInputSpike(neuron, t); err != nil {
			return err
		}
	}
	return nil
}

// ApplyInputSpike forces neuron to spike at t by delivering a V hit equal
// to its threshold.
func (s *Predictive) ApplyInputSpike(neuron nn.NeuronID, t float64) error {
	if err := s.checkNeuron(neuron); err != nil {
		return err
	}
	return s.Inject(t, neuron, nn.SynapseV, s.neurons[neuron].Vt)
}

func (s *Predictive) Inject(t float64, target nn.NeuronID, typ nn.SynapseType, weight float64) error {
	if err := s.checkInject(t, target, typ, weight); err != nil {
		return err
	}
	s.queue.NewSpikeHit(t, target, typ, weight)
	return nil
}

// Simulate runs until the queue drains.
func (s *Predictive) Simulate(ctx context.Context) error {
	return s.Advance(ctx, math.Inf(1))
}

// Advance processes every time bucket up to and including until. +Inf
// drains the queue; MaxEvents bounds that run.
func (s *Predictive) Advance(ctx context.Context, until float64) error {
	if math.IsNaN(until) {
		return fmt.Errorf("%w: %v", ErrUnboundedAdvance, until)
	}
	for ran := 0; ; ran++ {
		t, ok := s.queue.PeekTime()
		if !ok || t > until {
			return nil
		}
		if ran%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if s.cfg.MaxEvents > 0 && s.popped >= s.cfg.MaxEvents {
			return ErrEventBudgetExceeded
		}
		batch, err := s.queue.Pop()
		if err != nil {
			return err
		}
		s.now = t
		s.buckets++
		s.popped += len(batch)
		s.process(t, batch)
	}
}

// process applies one time bucket: resets first, then hits.
func (s *Predictive) process(t float64, batch []events.Scheduled) {
	for _, e := range batch {
		if e.Kind != events.NeuronReset {
			continue
		}
		id := e.Target
		s.provisional[id] = s.provisional[id][:0]
		s.neurons[id].Reset()
		s.lastUpdate[id] = t
		s.logSpike(id, t)
	}

	for _, e := range batch {
		if e.Kind != events.SpikeHit {
			continue
		}
		id := e.Target
		s.cancelProvisional(id)

		// After a horizon miss the frozen trajectory may have passed Vt by
		// now. Evolve lands above threshold and the neuron spikes at t.
		n := &s.neurons[id]
		n.Evolve(t - s.lastUpdate[id])
		s.lastUpdate[id] = t
		s.apply(id, e.Type, e.Weight)

		tau, ok := s.predict(id)
		if !ok {
			continue
		}
		at := t + tau
		s.provisional[id] = append(s.provisional[id], s.queue.NewReset(at, id))
		for _, syn := range n.Out {
			hit := s.queue.NewSpikeHit(at+syn.Delay, syn.Post, syn.Type, syn.Weight)
			s.provisional[id] = append(s.provisional[id], hit)
		}
	}
}

func (s *Predictive) cancelProvisional(id nn.NeuronID) {
	for _, e := range s.provisional[id] {
		if s.queue.Remove(e) {
			s.cancelled++
		}
	}
	s.provisional[id] = s.provisional[id][:0]
}

// predict returns the smallest grid offset k*dt, k < maxSteps, at which the
// frozen trajectory of id reaches threshold.
func (s *Predictive) predict(id nn.NeuronID) (float64, bool) {
	s.predictions++
	n := &s.neurons[id]
	dt := s.cfg.DT

	lo, hi := 0, s.maxSteps
	for i := 0; i < searchIterations && lo < hi; i++ {
		mid := lo + (hi-lo)/2
		if n.VoltageAfter(float64(mid)*dt) >= n.Vt {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo >= s.maxSteps {
		return 0, false
	}
	return float64(lo) * dt, true
}

// Now is the time of the last processed bucket.
func (s *Predictive) Now() float64 {
	return s.now
}

// Pending reports how many time buckets still hold events.
func (s *Predictive) Pending() int {
	return s.queue.Len()
}

func (s *Predictive) Stats() RunStats {
	stats := s.baseStats()
	stats.Steps = s.buckets
	stats.Predictions = s.predictions
	stats.Cancelled = s.cancelled
	stats.Now = s.now
	return stats
}
