// Package demo provides cheap stand-ins for an expensive model and its
// likelihood, used by the command line tools and by tests.
package demo

import (
	"context"
	"fmt"
	"time"
)

// Parabola maps every coordinate x to 5x^2 - 3x + 10. Delay simulates the
// cost of a real model.
type Parabola struct {
	Delay time.Duration
}

func (p Parabola) Compute(ctx context.Context, point []float64) ([]float64, error) {
	if err := wait(ctx, p.Delay); err != nil {
		return nil, err
	}
	out := make([]float64, len(point))
	for i, x := range point {
		out[i] = 5*x*x - 3*x + 10
	}
	return out, nil
}

// Identity returns the point itself.
type Identity struct {
	Delay time.Duration
}

func (m Identity) Compute(ctx context.Context, point []float64) ([]float64, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	return append([]float64(nil), point...), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ChiSquare is sum((x-Mean)^2 / Sigma^2) over the data vector.
type ChiSquare struct {
	Mean  []float64
	Sigma []float64
}

// NewChiSquare returns a chi-square with the same mean and sigma in every
// component.
func NewChiSquare(n int, mean, sigma float64) (*ChiSquare, error) {
	if n <= 0 || !(sigma > 0) {
		return nil, fmt.Errorf("demo: invalid chi-square (n=%d, sigma=%v)", n, sigma)
	}
	c := &ChiSquare{Mean: make([]float64, n), Sigma: make([]float64, n)}
	for i := range c.Mean {
		c.Mean[i] = mean
		c.Sigma[i] = sigma
	}
	return c, nil
}

func (c *ChiSquare) Evaluate(x []float64) float64 {
	chi2 := 0.0
	for i, v := range x {
		d := (v - c.Mean[i]) / c.Sigma[i]
		chi2 += d * d
	}
	return chi2
}
