// Package posterior builds one-dimensional empirical distributions from
// weighted samples and reads confidence limits off them.
//
// A Posterior1D collects points until Generate is called; after that it is
// read-only.
package posterior

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Cumulative probabilities of the one-sided 1 and 2 sigma upper limits.
var (
	OneSigma = math.Erf(1 / math.Sqrt2)
	TwoSigma = math.Erf(2 / math.Sqrt2)
)

var (
	ErrEmpty         = errors.New("posterior: no samples")
	ErrGenerated     = errors.New("posterior: already generated")
	ErrNotGenerated  = errors.New("posterior: not generated")
	ErrInvalidSample = errors.New("posterior: invalid sample")
)

const btreeDegree = 32

type Posterior1D struct {
	samples   *SampleSet
	generated bool

	xs []float64
	ws []float64

	bestLike float64
	bestX    float64
}

func New() *Posterior1D {
	return &Posterior1D{
		samples:  NewSampleSet(btreeDegree),
		bestLike: math.Inf(1),
	}
}

// AddPoint adds observation x with the given weight. like is the -2 ln L of
// the observation and is used only to track the best-fit point.
func (p *Posterior1D) AddPoint(x, weight, like float64) error {
	if p.generated {
		return ErrGenerated
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || !(weight > 0) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: x=%v weight=%v", ErrInvalidSample, x, weight)
	}
	p.samples.Put(x, weight)
	if like < p.bestLike {
		p.bestLike = like
		p.bestX = x
	}
	return nil
}

// Generate finalizes the distribution.
func (p *Posterior1D) Generate() error {
	if p.generated {
		return ErrGenerated
	}
	if p.samples.Count() == 0 {
		return ErrEmpty
	}
	p.xs, p.ws = p.samples.Sorted()
	p.generated = true
	return nil
}

func (p *Posterior1D) Generated() bool { return p.generated }
func (p *Posterior1D) Len() int        { return p.samples.Count() }

// Values returns the sorted sample values. Only valid after Generate.
func (p *Posterior1D) Values() []float64 { return p.xs }

// Percentile returns the smallest sample value whose cumulative weight
// fraction reaches q. NaN before Generate.
func (p *Posterior1D) Percentile(q float64) float64 {
	if !p.generated {
		return math.NaN()
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return stat.Quantile(q, stat.Empirical, p.xs, p.ws)
}

func (p *Posterior1D) Median() float64        { return p.Percentile(0.5) }
func (p *Posterior1D) OneSigmaUpper() float64 { return p.Percentile(OneSigma) }
func (p *Posterior1D) TwoSigmaUpper() float64 { return p.Percentile(TwoSigma) }

func (p *Posterior1D) OneSigmaTwoSided() (lower, upper float64) {
	return p.Percentile((1 - OneSigma) / 2), p.Percentile((1 + OneSigma) / 2)
}

func (p *Posterior1D) TwoSigmaTwoSided() (lower, upper float64) {
	return p.Percentile((1 - TwoSigma) / 2), p.Percentile((1 + TwoSigma) / 2)
}

func (p *Posterior1D) Mean() float64 {
	if !p.generated {
		return math.NaN()
	}
	return stat.Mean(p.xs, p.ws)
}

// MaxLikePoint is the observation added with the smallest like.
func (p *Posterior1D) MaxLikePoint() float64 { return p.bestX }

// bandwidth is Silverman's rule on the weighted standard deviation.
func (p *Posterior1D) bandwidth() float64 {
	sd := 0.0
	if len(p.xs) > 1 {
		sd = stat.StdDev(p.xs, p.ws)
	}
	if !(sd > 0) {
		return 1e-3 * math.Max(1, math.Abs(p.xs[0]))
	}
	return 1.06 * sd * math.Pow(float64(len(p.xs)), -0.2)
}

// WriteFile writes nPoints lines of "x<TAB>pdf<TAB>cdf" spanning the samples.
// The pdf is a Gaussian kernel density estimate, the cdf the empirical one.
func (p *Posterior1D) WriteFile(path string, nPoints int) error {
	if !p.generated {
		return ErrNotGenerated
	}
	if nPoints < 2 {
		return fmt.Errorf("posterior: need at least 2 grid points, got %d", nPoints)
	}

	h := p.bandwidth()
	lo := p.xs[0] - 4*h
	hi := p.xs[len(p.xs)-1] + 4*h
	step := (hi - lo) / float64(nPoints-1)

	total := 0.0
	for _, w := range p.ws {
		total += w
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	cum, j := 0.0, 0
	for i := 0; i < nPoints; i++ {
		x := lo + float64(i)*step
		pdf := 0.0
		for k, xk := range p.xs {
			pdf += p.ws[k] * distuv.Normal{Mu: xk, Sigma: h}.Prob(x)
		}
		pdf /= total
		for j < len(p.xs) && p.xs[j] <= x {
			cum += p.ws[j]
			j++
		}
		if _, err := fmt.Fprintf(w, "%.10g\t%.10g\t%.10g\n", x, pdf, cum/total); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
