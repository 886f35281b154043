// Package surrogate answers model evaluations from a nearest-neighbour
// approximation whenever its calibrated error is small enough, and learns
// from every evaluation it has to compute for real.
package surrogate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"surrogate/pkg/approx"
	"surrogate/pkg/common"
	"surrogate/pkg/errorest"
	"surrogate/pkg/logging"
	"surrogate/pkg/storage"
)

const DefaultRetrainEvery = 200

var ErrNothingPending = errors.New("surrogate: no pending evaluations")

// CallRecorder is told about every slow model evaluation.
type CallRecorder interface {
	RecordOracleCall()
}

type Option func(*Evaluator)

// WithWAL logs every computed sample to w before it is learned.
func WithWAL(w *storage.WAL) Option {
	return func(e *Evaluator) {
		e.wal = w
	}
}

func WithRetrainEvery(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.retrainEvery = n
		}
	}
}

func WithCallRecorder(r ...CallRecorder) Option {
	return func(e *Evaluator) {
		e.recorders = append(e.recorders, r...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	Data         []float64     `json:"data"`
	Value        float64       `json:"value"`
	Approximated bool          `json:"approximated"`
	Latency      time.Duration `json:"latency_ns"`
}

// Evaluator is safe for concurrent use. The slow model runs outside the lock.
type Evaluator struct {
	mu sync.Mutex

	fa     *approx.Approximator
	est    *errorest.Estimator
	model  common.Model
	oracle errorest.Oracle

	wal          *storage.WAL
	recorders    []CallRecorder
	retrainEvery int
	pending      []common.Sample
	logger       *slog.Logger
}

// New wires an evaluator around an approximator and the estimator judging
// it. oracle must be the one est was built with.
func New(fa *approx.Approximator, est *errorest.Estimator, model common.Model, oracle errorest.Oracle, opts ...Option) (*Evaluator, error) {
	if fa == nil || est == nil || model == nil || oracle == nil {
		return nil, errorest.ErrNilCollaborator
	}
	e := &Evaluator{
		fa:           fa,
		est:          est,
		model:        model,
		oracle:       oracle,
		retrainEvery: DefaultRetrainEvery,
		logger:       logging.New("surrogate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate returns the model output at point, approximated when the
// estimator accepts it.
func (e *Evaluator) Evaluate(ctx context.Context, point []float64) (Result, error) {
	start := time.Now()

	e.mu.Lock()
	val, ok, err := e.est.Approximate(point)
	e.mu.Unlock()
	if err != nil {
		return Result{}, err
	}
	if ok {
		return Result{
			Data:         val,
			Value:        e.oracle.Evaluate(val),
			Approximated: true,
			Latency:      time.Since(start),
		}, nil
	}

	data, err := e.model.Compute(ctx, point)
	if err != nil {
		return Result{}, fmt.Errorf("compute model: %w", err)
	}
	if len(data) != e.fa.NData() {
		return Result{}, fmt.Errorf("%w: model returned %d entries, want %d", approx.ErrDimension, len(data), e.fa.NData())
	}
	for _, r := range e.recorders {
		r.RecordOracleCall()
	}

	if err := e.learn(common.Sample{Point: append(common.Point(nil), point...), Data: data}); err != nil {
		return Result{}, err
	}
	return Result{
		Data:    data,
		Value:   e.oracle.Evaluate(data),
		Latency: time.Since(start),
	}, nil
}

func (e *Evaluator) learn(s common.Sample) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wal != nil {
		if err := e.wal.Append(s); err != nil {
			return fmt.Errorf("log evaluation: %w", err)
		}
		if err := e.wal.Sync(); err != nil {
			return fmt.Errorf("sync evaluation log: %w", err)
		}
	}
	e.pending = append(e.pending, s)
	if len(e.pending) < e.retrainEvery {
		return nil
	}
	return e.retrainLocked()
}

// Flush runs the retraining cycle on the pending samples now.
func (e *Evaluator) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return ErrNothingPending
	}
	return e.retrainLocked()
}

// retrainLocked first tests the current approximator on the pending samples,
// then learns them. Fewer pending samples than a valid calibration needs are
// learned without recalibrating. A failed calibration keeps the previous one
// and the samples are learned anyway.
func (e *Evaluator) retrainLocked() error {
	points, data := common.Split(e.pending)
	if len(points) < e.est.MinSamples() {
		e.logger.Debug("too few pending samples to recalibrate",
			"samples", len(points), "min", e.est.MinSamples())
	} else if err := e.est.Calibrate(points, data, 0, len(points)); err != nil {
		e.logger.Warn("recalibration failed, keeping previous calibration",
			"samples", len(points), "error", err)
	}
	if err := e.fa.Add(points, data); err != nil {
		return fmt.Errorf("extend training set: %w", err)
	}
	e.logger.Info("training set extended", "added", len(points), "size", e.fa.Len(), "valid", e.est.Valid())
	e.pending = e.pending[:0]
	return nil
}

// Calibrate calibrates the estimator on samples held out from training.
func (e *Evaluator) Calibrate(samples []common.Sample) error {
	points, data := common.Split(samples)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.est.Calibrate(points, data, 0, len(points))
}

// Replay adds every sample logged in w to the training set and returns how
// many were restored.
func (e *Evaluator) Replay(w *storage.WAL) (int, error) {
	samples, err := w.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("replay wal: %w", err)
	}
	if len(samples) == 0 {
		return 0, nil
	}
	points, data := common.Split(samples)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fa.Add(points, data); err != nil {
		return 0, fmt.Errorf("replay wal: %w", err)
	}
	e.logger.Info("replayed evaluation log", "samples", len(samples), "size", e.fa.Len())
	return len(samples), nil
}

// Status describes the evaluator for reporting.
type Status struct {
	Method       string  `json:"method"`
	Precision    float64 `json:"precision"`
	TrainingSize int     `json:"training_size"`
	Pending      int     `json:"pending"`
	Valid        bool    `json:"valid"`
	OneSigma     float64 `json:"one_sigma,omitempty"`
	TwoSigma     float64 `json:"two_sigma,omitempty"`
}

func (e *Evaluator) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Method:       e.est.Method().String(),
		Precision:    e.est.Precision(),
		TrainingSize: e.fa.Len(),
		Pending:      len(e.pending),
	}
	st.OneSigma, st.TwoSigma, st.Valid = e.est.Quantiles()
	return st
}
