package monitor

import (
	"fmt"
	"io"
	"log/slog"

	"surrogate/pkg/errorest"
)

// LogObserver reports calibrations at info level and decisions at debug
// level.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) CalibrationStarted(method errorest.ErrorMethod, samples int) {
	o.logger.Info("error calibration started", "method", method.String(), "samples", samples)
}

func (o *LogObserver) SampleEvaluated(int, float64, float64) {}

func (o *LogObserver) CalibrationFinished(r errorest.CalibrationResult) {
	if !r.Valid {
		o.logger.Warn("not enough samples for error calibration, accepting exact matches only",
			"method", r.Method.String(),
			"valid_samples", r.ValidSamples,
			"duration", r.Duration,
		)
		return
	}
	o.logger.Info("error calibration finished",
		"method", r.Method.String(),
		"valid_samples", r.ValidSamples,
		"one_sigma", r.OneSigma,
		"two_sigma", r.TwoSigma,
		"duration", r.Duration,
	)
}

func (o *LogObserver) Decision(proxy, estimated float64, accepted bool) {
	o.logger.Debug("approximation decision", "proxy", proxy, "error", estimated, "accepted", accepted)
}

// Progress prints a percentage line to w every time the calibration loop
// crosses another tenth of its range.
type Progress struct {
	w     io.Writer
	total int
	done  int
	shown int
}

func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) CalibrationStarted(_ errorest.ErrorMethod, samples int) {
	p.total, p.done, p.shown = samples, 0, 0
}

func (p *Progress) SampleEvaluated(int, float64, float64) {
	if p.total <= 0 {
		return
	}
	p.done++
	tenth := p.done * 10 / p.total
	if tenth > p.shown {
		p.shown = tenth
		fmt.Fprintf(p.w, "calibration %3d%% (%d/%d)\n", tenth*10, p.done, p.total)
	}
}

func (p *Progress) CalibrationFinished(errorest.CalibrationResult) {}
func (p *Progress) Decision(float64, float64, bool)               {}

type multi []errorest.Observer

// Multi fans events out to every observer in order.
func Multi(obs ...errorest.Observer) errorest.Observer {
	return multi(obs)
}

func (m multi) CalibrationStarted(method errorest.ErrorMethod, samples int) {
	for _, o := range m {
		o.CalibrationStarted(method, samples)
	}
}

func (m multi) SampleEvaluated(i int, proxy, trueError float64) {
	for _, o := range m {
		o.SampleEvaluated(i, proxy, trueError)
	}
}

func (m multi) CalibrationFinished(r errorest.CalibrationResult) {
	for _, o := range m {
		o.CalibrationFinished(r)
	}
}

func (m multi) Decision(proxy, estimated float64, accepted bool) {
	for _, o := range m {
		o.Decision(proxy, estimated, accepted)
	}
}
