// Package model holds the local fits the nearest-neighbour approximator uses:
// least-squares polynomials of first and second order, and a Gaussian
// process over the neighbourhood.
package model

import "errors"

// Order selects the polynomial degree of a local fit.
type Order int

const (
	Linear Order = iota + 1
	Quadratic
)

func (o Order) String() string {
	switch o {
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	default:
		return "unknown"
	}
}

var (
	ErrNoData              = errors.New("model: no neighbours to fit")
	ErrShape               = errors.New("model: inconsistent neighbour shapes")
	ErrNotPositiveDefinite = errors.New("model: kernel matrix is not positive definite")
	ErrInvalidOrder        = errors.New("model: invalid interpolation order")
)

// checkShape verifies that every offset has the same dimension and every
// value vector the same length, and returns both.
func checkShape(offsets, values [][]float64) (dim, nOut int, err error) {
	if len(offsets) == 0 {
		return 0, 0, ErrNoData
	}
	if len(offsets) != len(values) {
		return 0, 0, ErrShape
	}
	dim, nOut = len(offsets[0]), len(values[0])
	for i := range offsets {
		if len(offsets[i]) != dim || len(values[i]) != nOut {
			return 0, 0, ErrShape
		}
	}
	return dim, nOut, nil
}

func norm2(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}
