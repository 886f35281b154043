package errorest

import (
	"math"

	"surrogate/pkg/model"
)

// metric is one error proxy together with the side information it needs.
// Each implementation owns exactly the buffer its method reads.
type metric interface {
	// observe queries the approximator at point and caches what evaluate
	// needs.
	observe(fa Approximator, point []float64) error
	// evaluate returns the proxy error of the last observation.
	evaluate() (float64, error)
	// value writes the approximated data vector for the last observation.
	value(fa Approximator, dst []float64) error
}

func newMetric(method ErrorMethod, nData int, oracle Oracle) metric {
	switch method {
	case GaussProcess:
		return &gaussProcess{mean: make([]float64, nData), sigma: make([]float64, nData)}
	case MinDistance:
		return &minDistance{}
	case AvgDistance:
		return &avgDistance{}
	case AvgInvDistance:
		return &avgInvDistance{}
	case SumDistance:
		return &sumDistance{}
	case LinQuadDiff:
		return &linQuadDiff{oracle: oracle, quad: make([]float64, nData), lin: make([]float64, nData)}
	default:
		return nil
	}
}

// gaussProcess takes its proxy from the Gaussian-process standard deviation.
// The returned value is still the quadratic interpolation.
type gaussProcess struct {
	mean  []float64
	sigma []float64
}

func (m *gaussProcess) observe(fa Approximator, point []float64) error {
	if err := fa.FindNearestNeighbors(point, nil, nil); err != nil {
		return err
	}
	return fa.ApproximationGaussianProcess(m.mean, m.sigma)
}

func (m *gaussProcess) evaluate() (float64, error) {
	if len(m.sigma) == 0 {
		return 0, ErrMissingGaussianProcess
	}
	if m.sigma[0] < 0 {
		return 0, ErrNegativeVariance
	}
	return m.sigma[0], nil
}

func (m *gaussProcess) value(fa Approximator, dst []float64) error {
	return fa.Approximation(dst, model.Quadratic)
}

// distances is the buffer shared by the distance-based proxies.
type distances struct {
	d []float64
}

func (b *distances) observe(fa Approximator, point []float64) error {
	return fa.FindNearestNeighbors(point, &b.d, nil)
}

func (b *distances) value(fa Approximator, dst []float64) error {
	return fa.Approximation(dst, model.Quadratic)
}

type minDistance struct{ distances }

func (m *minDistance) evaluate() (float64, error) {
	if len(m.d) == 0 {
		return 0, ErrNoNeighbors
	}
	return m.d[0], nil
}

type avgDistance struct{ distances }

func (m *avgDistance) evaluate() (float64, error) {
	if len(m.d) == 0 {
		return 0, ErrNoNeighbors
	}
	sum := 0.0
	for _, d := range m.d {
		sum += d
	}
	return sum / float64(len(m.d)), nil
}

type avgInvDistance struct{ distances }

func (m *avgInvDistance) evaluate() (float64, error) {
	if len(m.d) == 0 {
		return 0, ErrNoNeighbors
	}
	inv := 0.0
	for _, d := range m.d {
		// an exact neighbour means no error
		if d == 0 {
			return 0, nil
		}
		inv += 1 / d
	}
	return float64(len(m.d)) / inv, nil
}

type sumDistance struct {
	neighbors [][]float64
	acc       []float64
}

func (m *sumDistance) observe(fa Approximator, point []float64) error {
	return fa.FindNearestNeighbors(point, nil, &m.neighbors)
}

func (m *sumDistance) evaluate() (float64, error) {
	if len(m.neighbors) == 0 {
		return 0, ErrNoNeighbors
	}
	dim := len(m.neighbors[0])
	if cap(m.acc) < dim {
		m.acc = make([]float64, dim)
	}
	m.acc = m.acc[:dim]
	for i := range m.acc {
		m.acc[i] = 0
	}
	for _, nb := range m.neighbors {
		if len(nb) != dim {
			return 0, ErrDimensionMismatch
		}
		for j, v := range nb {
			m.acc[j] += v
		}
	}
	sum := 0.0
	for _, v := range m.acc {
		sum += v * v
	}
	return math.Sqrt(sum), nil
}

func (m *sumDistance) value(fa Approximator, dst []float64) error {
	return fa.Approximation(dst, model.Quadratic)
}

// linQuadDiff computes both interpolation orders up front; the quadratic one
// is also the returned value.
type linQuadDiff struct {
	oracle Oracle
	quad   []float64
	lin    []float64
}

func (m *linQuadDiff) observe(fa Approximator, point []float64) error {
	if err := fa.FindNearestNeighbors(point, nil, nil); err != nil {
		return err
	}
	if err := fa.Approximation(m.quad, model.Quadratic); err != nil {
		return err
	}
	return fa.Approximation(m.lin, model.Linear)
}

func (m *linQuadDiff) evaluate() (float64, error) {
	return math.Abs(m.oracle.Evaluate(m.quad) - m.oracle.Evaluate(m.lin)), nil
}

func (m *linQuadDiff) value(_ Approximator, dst []float64) error {
	copy(dst, m.quad)
	return nil
}
