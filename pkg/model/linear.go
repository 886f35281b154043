package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Polynomial is a least-squares polynomial fitted to neighbours expressed as
// offsets from the query point. The fitted intercept is the prediction at the
// query.
type Polynomial struct {
	Order Order
}

func NewPolynomial(order Order) *Polynomial {
	return &Polynomial{Order: order}
}

// NumTerms is the number of coefficients of a polynomial of the given order
// in dim variables.
func NumTerms(order Order, dim int) int {
	n := 1 + dim
	if order == Quadratic {
		n += dim * (dim + 1) / 2
	}
	return n
}

// Fit returns the polynomial value at zero offset, one entry per output.
// A quadratic fit with fewer neighbours than terms is done as a linear one;
// a system that cannot be solved falls back to the inverse-distance
// weighted mean of the neighbours.
func (p *Polynomial) Fit(offsets, values [][]float64) ([]float64, error) {
	if p.Order != Linear && p.Order != Quadratic {
		return nil, ErrInvalidOrder
	}
	dim, nOut, err := checkShape(offsets, values)
	if err != nil {
		return nil, err
	}

	for order := p.Order; order >= Linear; order-- {
		terms := NumTerms(order, dim)
		if terms > len(offsets) {
			continue
		}
		if res, ok := solve(order, offsets, values, terms, nOut); ok {
			return res, nil
		}
	}
	return WeightedMean(offsets, values), nil
}

func solve(order Order, offsets, values [][]float64, terms, nOut int) ([]float64, bool) {
	k := len(offsets)
	a := mat.NewDense(k, terms, nil)
	b := mat.NewDense(k, nOut, nil)
	for i, off := range offsets {
		row := designRow(order, off, terms)
		a.SetRow(i, row)
		b.SetRow(i, values[i])
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, false
	}

	res := make([]float64, nOut)
	for j := 0; j < nOut; j++ {
		v := x.At(0, j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		res[j] = v
	}
	return res, true
}

// designRow lays out [1, dx_0..dx_{d-1}, dx_i*dx_j for i<=j].
func designRow(order Order, off []float64, terms int) []float64 {
	row := make([]float64, 0, terms)
	row = append(row, 1)
	row = append(row, off...)
	if order == Quadratic {
		for i := range off {
			for j := i; j < len(off); j++ {
				row = append(row, off[i]*off[j])
			}
		}
	}
	return row
}

// WeightedMean is the inverse-distance weighted mean of values. A neighbour
// at zero offset is returned as is.
func WeightedMean(offsets, values [][]float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	res := make([]float64, len(values[0]))
	sumW := 0.0
	for i, off := range offsets {
		d := math.Sqrt(norm2(off))
		if d == 0 {
			copy(res, values[i])
			return res
		}
		w := 1 / d
		sumW += w
		for j, v := range values[i] {
			res[j] += w * v
		}
	}
	for j := range res {
		res[j] /= sumW
	}
	return res
}
