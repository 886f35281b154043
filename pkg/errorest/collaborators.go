package errorest

import (
	"time"

	"surrogate/pkg/model"
)

// Approximator is the nearest-neighbour interpolator being judged.
type Approximator interface {
	// NData is the length of the data vectors the approximator produces.
	NData() int
	// FindNearestNeighbors searches the neighbourhood of point. Non-nil
	// outputs are overwritten; distances are ascending.
	FindNearestNeighbors(point []float64, distances *[]float64, neighbors *[][]float64) error
	// Approximation interpolates the last query at the given order.
	Approximation(val []float64, order model.Order) error
	// ApproximationGaussianProcess writes the Gaussian-process mean and
	// standard deviation at the last query.
	ApproximationGaussianProcess(val, sigma []float64) error
}

// Oracle is the function whose sensitivity to the approximation is
// calibrated. It must be deterministic.
type Oracle interface {
	Evaluate(x []float64) float64
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(x []float64) float64

func (f OracleFunc) Evaluate(x []float64) float64 { return f(x) }

// CalibrationResult summarizes one Calibrate call.
type CalibrationResult struct {
	Method       ErrorMethod
	Begin, End   int
	ValidSamples int
	Valid        bool
	OneSigma     float64
	TwoSigma     float64
	Duration     time.Duration
}

// Observer receives progress and decisions. Implementations must not block.
type Observer interface {
	CalibrationStarted(method ErrorMethod, samples int)
	SampleEvaluated(i int, proxy, trueError float64)
	CalibrationFinished(res CalibrationResult)
	Decision(proxy, estimated float64, accepted bool)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) CalibrationStarted(ErrorMethod, int)   {}
func (NopObserver) SampleEvaluated(int, float64, float64) {}
func (NopObserver) CalibrationFinished(CalibrationResult) {}
func (NopObserver) Decision(float64, float64, bool)       {}

// CalibrationRecord is what an Archive persists for a valid calibration.
type CalibrationRecord struct {
	CalibrationResult
	// Ratios are the true/proxy error ratios in ascending order.
	Ratios    []float64
	CreatedAt time.Time
}

// Archive stores calibrations durably.
type Archive interface {
	SaveCalibration(rec CalibrationRecord) error
}
