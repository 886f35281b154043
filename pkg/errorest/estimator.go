// Package errorest decides whether a fast nearest-neighbour approximation can
// stand in for an expensive evaluation.
//
// An Estimator is calibrated once on points with known data: for every test
// point it compares a cheap error proxy with the true error the oracle sees,
// and keeps the distribution of their ratio. At query time the proxy is
// scaled by the two-sigma upper limit of that distribution and compared with
// the requested precision. Without a valid calibration only exact matches
// (zero proxy) are accepted.
//
// An Estimator mutates internal buffers on every query and is not safe for
// concurrent use.
package errorest

import (
	"fmt"
	"math"
	"time"

	"surrogate/pkg/posterior"
)

const (
	// DefaultMinSamples is the number of nonzero-proxy samples a calibration
	// needs before its ratio distribution is trusted.
	DefaultMinSamples = 100
	// DefaultPosteriorFile is where the ratio distribution is written after a
	// successful calibration.
	DefaultPosteriorFile = "fast_approximator_error_ratio.txt"

	posteriorGridPoints = 1000
)

type Option func(*Estimator)

func WithObserver(o Observer) Option {
	return func(e *Estimator) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithPosteriorFile sets the diagnostic output path. Empty disables it.
func WithPosteriorFile(path string) Option {
	return func(e *Estimator) {
		e.posteriorFile = path
	}
}

func WithMinSamples(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.minSamples = n
		}
	}
}

func WithArchive(a Archive) Option {
	return func(e *Estimator) {
		e.archive = a
	}
}

type Estimator struct {
	fa        Approximator
	oracle    Oracle
	method    ErrorMethod
	precision float64
	metric    metric
	val       []float64

	minSamples    int
	posteriorFile string
	observer      Observer
	archive       Archive

	posterior *posterior.Posterior1D
	valid     bool
}

// New returns an uncalibrated Estimator. precision is the largest oracle
// error an accepted approximation may carry.
func New(fa Approximator, oracle Oracle, method ErrorMethod, precision float64, opts ...Option) (*Estimator, error) {
	if fa == nil || oracle == nil {
		return nil, ErrNilCollaborator
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMethod, int(method))
	}
	if !(precision > 0) || math.IsInf(precision, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrecision, precision)
	}

	e := &Estimator{
		fa:            fa,
		oracle:        oracle,
		method:        method,
		precision:     precision,
		metric:        newMetric(method, fa.NData(), oracle),
		val:           make([]float64, fa.NData()),
		minSamples:    DefaultMinSamples,
		posteriorFile: DefaultPosteriorFile,
		observer:      NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Estimator) Method() ErrorMethod { return e.method }
func (e *Estimator) Precision() float64  { return e.precision }

// MinSamples is the number of nonzero-proxy samples a valid calibration needs.
func (e *Estimator) MinSamples() int { return e.minSamples }

// Valid reports whether the last calibration gathered enough samples.
func (e *Estimator) Valid() bool { return e.valid }

// Quantiles returns the one- and two-sigma upper limits of the calibrated
// ratio distribution.
func (e *Estimator) Quantiles() (one, two float64, ok bool) {
	if !e.valid {
		return 0, 0, false
	}
	return e.posterior.OneSigmaUpper(), e.posterior.TwoSigmaUpper(), true
}

// Posterior is the calibrated ratio distribution, nil unless Valid.
func (e *Estimator) Posterior() *posterior.Posterior1D {
	if !e.valid {
		return nil
	}
	return e.posterior
}

// EvaluateError returns the proxy error of the most recent query.
func (e *Estimator) EvaluateError() (float64, error) {
	return e.metric.evaluate()
}

// Calibrate learns the ratio between true and proxy error over
// testPoints[begin:end], whose data vectors are testData[begin:end]. Any
// previous calibration is discarded. An empty range only clears validity.
//
// On error the previous calibration is left as it was.
func (e *Estimator) Calibrate(testPoints, testData [][]float64, begin, end int) error {
	if begin < 0 || len(testPoints) < end || len(testData) < end {
		return fmt.Errorf("%w: [%d, %d) over %d points and %d data vectors",
			ErrInvalidRange, begin, end, len(testPoints), len(testData))
	}
	if end == begin {
		e.valid = false
		return nil
	}
	if end < begin {
		return fmt.Errorf("%w: end %d before begin %d", ErrInvalidRange, end, begin)
	}

	start := time.Now()
	e.observer.CalibrationStarted(e.method, end-begin)

	fresh := posterior.New()
	good := 0
	for i := begin; i < end; i++ {
		if err := e.metric.observe(e.fa, testPoints[i]); err != nil {
			return fmt.Errorf("calibration sample %d: %w", i, err)
		}
		if err := e.metric.value(e.fa, e.val); err != nil {
			return fmt.Errorf("calibration sample %d: %w", i, err)
		}
		proxy, err := e.metric.evaluate()
		if err != nil {
			return fmt.Errorf("calibration sample %d: %w", i, err)
		}
		trueErr := math.Abs(e.oracle.Evaluate(testData[i]) - e.oracle.Evaluate(e.val))
		e.observer.SampleEvaluated(i, proxy, trueErr)

		if proxy == 0 {
			if trueErr != 0 {
				return fmt.Errorf("calibration sample %d: %w (true error %g)", i, ErrInconsistentProxy, trueErr)
			}
			continue
		}
		if err := fresh.AddPoint(trueErr/proxy, 1, 1); err != nil {
			return fmt.Errorf("calibration sample %d: %w", i, err)
		}
		good++
	}

	res := CalibrationResult{
		Method:       e.method,
		Begin:        begin,
		End:          end,
		ValidSamples: good,
	}

	if good < e.minSamples {
		e.posterior = nil
		e.valid = false
		res.Duration = time.Since(start)
		e.observer.CalibrationFinished(res)
		return nil
	}

	if err := fresh.Generate(); err != nil {
		return err
	}
	res.Valid = true
	res.OneSigma = fresh.OneSigmaUpper()
	res.TwoSigma = fresh.TwoSigmaUpper()

	if e.posteriorFile != "" {
		if err := fresh.WriteFile(e.posteriorFile, posteriorGridPoints); err != nil {
			return fmt.Errorf("write ratio posterior: %w", err)
		}
	}
	if e.archive != nil {
		rec := CalibrationRecord{
			CalibrationResult: res,
			Ratios:            fresh.Values(),
			CreatedAt:         time.Now(),
		}
		if err := e.archive.SaveCalibration(rec); err != nil {
			return fmt.Errorf("archive calibration: %w", err)
		}
	}

	e.posterior = fresh
	e.valid = true
	res.Duration = time.Since(start)
	e.observer.CalibrationFinished(res)
	return nil
}

// Approximate returns the approximated data vector at point when its
// estimated error is within precision. A rejection returns ok == false and
// a nil error; the caller must evaluate the point itself.
func (e *Estimator) Approximate(point []float64) (val []float64, ok bool, err error) {
	if err := e.metric.observe(e.fa, point); err != nil {
		return nil, false, err
	}
	proxy, err := e.metric.evaluate()
	if err != nil {
		return nil, false, err
	}

	estimated := proxy
	if e.valid {
		estimated = proxy * e.posterior.TwoSigmaUpper()
		ok = estimated <= e.precision
	} else {
		ok = proxy == 0
	}
	e.observer.Decision(proxy, estimated, ok)
	if !ok {
		return nil, false, nil
	}

	val = make([]float64, len(e.val))
	if err := e.metric.value(e.fa, val); err != nil {
		return nil, false, err
	}
	return val, true, nil
}
