package sim

import (
	"errors"
	"fmt"

	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

var (
	ErrSpikeCount       = errors.New("unexpected spike count")
	ErrAmbiguousReadout = errors.New("both readout polarities spiked")
)

// SpikeLog maps each neuron to its spike times in ascending order.
type SpikeLog map[nn.NeuronID][]float64

// Count is the total number of spikes in the log.
func (l SpikeLog) Count() int {
	total := 0
	for _, times := range l {
		total += len(times)
	}
	return total
}

// Interval returns the gap between the first two spikes of id.
func (l SpikeLog) Interval(id nn.NeuronID) (float64, bool) {
	times := l[id]
	if len(times) < 2 {
		return 0, false
	}
	return times[1] - times[0], true
}

// Decode reads the value carried by the first two spikes of id.
func (l SpikeLog) Decode(enc encoding.Encoder, id nn.NeuronID) (float64, error) {
	interval, ok := l.Interval(id)
	if !ok {
		return 0, fmt.Errorf("%w: neuron %d fired %d times, need 2", ErrSpikeCount, id, len(l[id]))
	}
	return enc.DecodeInterval(interval), nil
}

// DecodeSigned reads a differential output pair. Exactly one of plus and
// minus must fire exactly twice; ok is false when neither fired.
func DecodeSigned(log SpikeLog, enc encoding.Encoder, plus, minus nn.NeuronID, normalization float64) (float64, bool, error) {
	plusTimes := log[plus]
	minusTimes := log[minus]

	switch {
	case len(plusTimes) > 0 && len(minusTimes) > 0:
		return 0, false, ErrAmbiguousReadout
	case len(plusTimes) > 0:
		if len(plusTimes) != 2 {
			return 0, false, fmt.Errorf("%w: '+' neuron fired %d times", ErrSpikeCount, len(plusTimes))
		}
		return normalization * enc.DecodeInterval(plusTimes[1]-plusTimes[0]), true, nil
	case len(minusTimes) > 0:
		if len(minusTimes) != 2 {
			return 0, false, fmt.Errorf("%w: '-' neuron fired %d times", ErrSpikeCount, len(minusTimes))
		}
		return -normalization * enc.DecodeInterval(minusTimes[1]-minusTimes[0]), true, nil
	default:
		return 0, false, nil
	}
}
