package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussianProcess regresses the neighbour values with a squared-exponential
// kernel. Outputs share the kernel; each output is centred on its neighbour
// mean and scaled by its neighbour variance.
type GaussianProcess struct {
	// LengthScale of the kernel. Zero means the mean neighbour distance.
	LengthScale float64
	// Nugget is added to the kernel diagonal.
	Nugget float64
}

const defaultNugget = 1e-10

// Predict returns the posterior mean and standard deviation at zero offset.
func (g GaussianProcess) Predict(offsets, values [][]float64) (mean, sigma []float64, err error) {
	_, nOut, err := checkShape(offsets, values)
	if err != nil {
		return nil, nil, err
	}
	k := len(offsets)

	ell := g.LengthScale
	if ell <= 0 {
		for _, off := range offsets {
			ell += math.Sqrt(norm2(off))
		}
		ell /= float64(k)
		if ell == 0 {
			ell = 1
		}
	}
	nugget := g.Nugget
	if nugget <= 0 {
		nugget = defaultNugget
	}

	kern := func(a, b []float64) float64 {
		d := 0.0
		for i := range a {
			t := a[i] - b[i]
			d += t * t
		}
		return math.Exp(-d / (2 * ell * ell))
	}

	cov := mat.NewSymDense(k, nil)
	kStar := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			v := kern(offsets[i], offsets[j])
			if i == j {
				v += nugget
			}
			cov.SetSym(i, j, v)
		}
		kStar.SetVec(i, math.Exp(-norm2(offsets[i])/(2*ell*ell)))
	}

	var ch mat.Cholesky
	if ok := ch.Factorize(cov); !ok {
		return nil, nil, ErrNotPositiveDefinite
	}

	var w mat.VecDense
	if err := ch.SolveVecTo(&w, kStar); err != nil {
		return nil, nil, err
	}
	reduced := 1 - mat.Dot(kStar, &w)
	if reduced < 0 {
		reduced = 0
	}

	mean = make([]float64, nOut)
	sigma = make([]float64, nOut)
	y := make([]float64, k)
	for o := 0; o < nOut; o++ {
		mu, variance := 0.0, 0.0
		for i := 0; i < k; i++ {
			mu += values[i][o]
		}
		mu /= float64(k)
		for i := 0; i < k; i++ {
			y[i] = values[i][o] - mu
			variance += y[i] * y[i]
		}
		variance /= float64(k)

		// w = K^-1 k*, so k*^T K^-1 y = w . y
		pred := mu
		for i := 0; i < k; i++ {
			pred += w.AtVec(i) * y[i]
		}
		mean[o] = pred
		sigma[o] = math.Sqrt(variance * reduced)
	}
	return mean, sigma, nil
}
