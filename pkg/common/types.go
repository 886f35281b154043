package common

import "context"

// Point is a location in parameter space.
type Point []float64

// Vector is the data vector an expensive model produces for a point.
type Vector []float64

// Model is the slow computation being approximated, e.g. a Boltzmann code
// producing a power spectrum from cosmological parameters.
type Model interface {
	Compute(ctx context.Context, point []float64) ([]float64, error)
}

// Sample pairs a point with the data the slow model computed for it.
type Sample struct {
	Point Point
	Data  Vector
}

// Split returns the points and data of samples as parallel slices.
func Split(samples []Sample) ([][]float64, [][]float64) {
	points := make([][]float64, len(samples))
	data := make([][]float64, len(samples))
	for i, s := range samples {
		points[i] = s.Point
		data[i] = s.Data
	}
	return points, data
}
