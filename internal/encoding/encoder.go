// Package encoding maps normalized scalars to spike intervals and back.
package encoding

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultTmin = 10.0
	DefaultTcod = 100.0
)

var ErrValueOutOfRange = errors.New("value must be within [0, 1]")

// Encoder represents a value v in [0, 1] as two spikes separated by
// Tmin + v*Tcod.
type Encoder struct {
	Tmin float64 `json:"tmin"`
	Tcod float64 `json:"tcod"`
}

func New(tmin, tcod float64) (Encoder, error) {
	if math.IsNaN(tmin) || tmin < 0 {
		return Encoder{}, fmt.Errorf("tmin must be >= 0, got %v", tmin)
	}
	if math.IsNaN(tcod) || tcod <= 0 {
		return Encoder{}, fmt.Errorf("tcod must be > 0, got %v", tcod)
	}
	return Encoder{Tmin: tmin, Tcod: tcod}, nil
}

func Default() Encoder {
	return Encoder{Tmin: DefaultTmin, Tcod: DefaultTcod}
}

// Tmax is the interval that encodes 1.
func (e Encoder) Tmax() float64 {
	return e.Tmin + e.Tcod
}

// EncodeValue returns the spike pair (t0, t1) relative to the start of the
// pulse train.
func (e Encoder) EncodeValue(v float64) (float64, float64, error) {
	if err := CheckValue(v); err != nil {
		return 0, 0, err
	}
	return 0, e.Tmin + v*e.Tcod, nil
}

// DecodeInterval is the arithmetic inverse of EncodeValue. Results outside
// [0, 1] are returned as-is.
func (e Encoder) DecodeInterval(interval float64) float64 {
	return (interval - e.Tmin) / e.Tcod
}

func CheckValue(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
	}
	return nil
}
