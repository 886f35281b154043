// Package approx implements a nearest-neighbour approximator: it predicts the
// data vector of a query point from the k closest training points by a local
// polynomial fit or a Gaussian process.
//
// An Approximator caches the last query and its neighbourhood, so it is not
// safe for concurrent use.
package approx

import (
	"errors"
	"fmt"
	"math"

	"surrogate/pkg/model"
)

// Order re-exports the interpolation orders.
type Order = model.Order

const (
	Linear    = model.Linear
	Quadratic = model.Quadratic
)

var (
	ErrEmptyTrainingSet = errors.New("approx: empty training set")
	ErrNoQuery          = errors.New("approx: no neighbours found yet")
	ErrDimension        = errors.New("approx: dimension mismatch")
	ErrInvalidK         = errors.New("approx: k must be positive")
	ErrInvalidPoint     = errors.New("approx: non-finite coordinate")
)

type Option func(*Approximator)

// WithGaussianProcess sets the kernel used by ApproximationGaussianProcess.
func WithGaussianProcess(gp model.GaussianProcess) Option {
	return func(a *Approximator) {
		a.gp = gp
	}
}

type Approximator struct {
	nPoints int
	nData   int
	k       int

	points [][]float64
	data   [][]float64
	index  *index

	gp model.GaussianProcess

	// last query
	query      []float64
	neighbours []neighbour
	offsets    [][]float64
	values     [][]float64
}

// New builds an approximator over points and their data vectors, using k
// neighbours per query.
func New(points, data [][]float64, k int, opts ...Option) (*Approximator, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(points) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(points) != len(data) {
		return nil, fmt.Errorf("%w: %d points, %d data vectors", ErrDimension, len(points), len(data))
	}

	a := &Approximator{
		nPoints: len(points[0]),
		nData:   len(data[0]),
		k:       k,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.Add(points, data); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Approximator) NPoints() int { return a.nPoints }
func (a *Approximator) NData() int   { return a.nData }
func (a *Approximator) Len() int     { return len(a.points) }
func (a *Approximator) K() int       { return a.k }

// Add extends the training set and rebuilds the tree. The cached query is
// dropped.
func (a *Approximator) Add(points, data [][]float64) error {
	if len(points) != len(data) {
		return fmt.Errorf("%w: %d points, %d data vectors", ErrDimension, len(points), len(data))
	}
	for i := range points {
		if len(points[i]) != a.nPoints {
			return fmt.Errorf("%w: point %d has %d coordinates, want %d", ErrDimension, i, len(points[i]), a.nPoints)
		}
		if len(data[i]) != a.nData {
			return fmt.Errorf("%w: data %d has %d entries, want %d", ErrDimension, i, len(data[i]), a.nData)
		}
	}
	for i := range points {
		a.points = append(a.points, append([]float64(nil), points[i]...))
		a.data = append(a.data, append([]float64(nil), data[i]...))
	}
	a.index = newIndex(a.points)
	a.query = nil
	a.neighbours = nil
	return nil
}

// FindNearestNeighbors searches the neighbourhood of point. When non-nil,
// distances receives the neighbour distances in ascending order and
// neighbors the offsets neighbour-point; both are overwritten.
func (a *Approximator) FindNearestNeighbors(point []float64, distances *[]float64, neighbors *[][]float64) error {
	if len(point) != a.nPoints {
		return fmt.Errorf("%w: query has %d coordinates, want %d", ErrDimension, len(point), a.nPoints)
	}
	for i, x := range point {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: coordinate %d is %v", ErrInvalidPoint, i, x)
		}
	}

	a.query = append(a.query[:0], point...)
	a.neighbours = a.index.nearest(point, a.k)

	a.offsets = a.offsets[:0]
	a.values = a.values[:0]
	for _, nb := range a.neighbours {
		off := make([]float64, a.nPoints)
		for j := range off {
			off[j] = a.points[nb.idx][j] - point[j]
		}
		a.offsets = append(a.offsets, off)
		a.values = append(a.values, a.data[nb.idx])
	}

	if distances != nil {
		d := (*distances)[:0]
		for _, nb := range a.neighbours {
			d = append(d, nb.dist)
		}
		*distances = d
	}
	if neighbors != nil {
		v := (*neighbors)[:0]
		for _, off := range a.offsets {
			v = append(v, append([]float64(nil), off...))
		}
		*neighbors = v
	}
	return nil
}

// exact returns the training datum when the query coincides with it.
func (a *Approximator) exact() ([]float64, bool) {
	if len(a.neighbours) > 0 && a.neighbours[0].dist == 0 {
		return a.data[a.neighbours[0].idx], true
	}
	return nil, false
}

// Approximation fills val with the interpolated data vector at the last
// query.
func (a *Approximator) Approximation(val []float64, order Order) error {
	if a.query == nil {
		return ErrNoQuery
	}
	if len(val) != a.nData {
		return fmt.Errorf("%w: output has %d entries, want %d", ErrDimension, len(val), a.nData)
	}
	if d, ok := a.exact(); ok {
		copy(val, d)
		return nil
	}

	res, err := model.NewPolynomial(order).Fit(a.offsets, a.values)
	if err != nil {
		return err
	}
	copy(val, res)
	return nil
}

// ApproximationGaussianProcess fills val with the Gaussian-process mean and
// sigma with its standard deviation at the last query.
func (a *Approximator) ApproximationGaussianProcess(val, sigma []float64) error {
	if a.query == nil {
		return ErrNoQuery
	}
	if len(val) != a.nData || len(sigma) != a.nData {
		return fmt.Errorf("%w: outputs must have %d entries", ErrDimension, a.nData)
	}
	if d, ok := a.exact(); ok {
		copy(val, d)
		for i := range sigma {
			sigma[i] = 0
		}
		return nil
	}

	mean, sd, err := a.gp.Predict(a.offsets, a.values)
	if err != nil {
		return err
	}
	copy(val, mean)
	copy(sigma, sd)
	return nil
}

// Approximate is FindNearestNeighbors followed by Approximation.
func (a *Approximator) Approximate(point, val []float64, order Order) error {
	if err := a.FindNearestNeighbors(point, nil, nil); err != nil {
		return err
	}
	return a.Approximation(val, order)
}
