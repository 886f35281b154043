package monitor

import (
	"sync/atomic"

	"surrogate/pkg/errorest"
)

// DecisionStats counts how queries were answered.
type DecisionStats struct {
	Accepted     uint64
	Rejected     uint64
	OracleCalls  uint64
	Calibrations uint64
	ValidRuns    uint64
}

func NewDecisionStats() *DecisionStats {
	return &DecisionStats{}
}

func (ds *DecisionStats) RecordDecision(accepted bool) {
	if accepted {
		atomic.AddUint64(&ds.Accepted, 1)
	} else {
		atomic.AddUint64(&ds.Rejected, 1)
	}
}

func (ds *DecisionStats) RecordOracleCall() {
	atomic.AddUint64(&ds.OracleCalls, 1)
}

func (ds *DecisionStats) RecordCalibration(valid bool) {
	atomic.AddUint64(&ds.Calibrations, 1)
	if valid {
		atomic.AddUint64(&ds.ValidRuns, 1)
	}
}

// AcceptanceRatio is accepted / (accepted + rejected).
func (ds *DecisionStats) AcceptanceRatio() float64 {
	acc := atomic.LoadUint64(&ds.Accepted)
	rej := atomic.LoadUint64(&ds.Rejected)

	if acc+rej == 0 {
		return 0.0
	}
	return float64(acc) / float64(acc+rej)
}

// Snapshot is a consistent-enough copy for reporting.
type Snapshot struct {
	Accepted        uint64  `json:"accepted"`
	Rejected        uint64  `json:"rejected"`
	OracleCalls     uint64  `json:"oracle_calls"`
	Calibrations    uint64  `json:"calibrations"`
	ValidRuns       uint64  `json:"valid_calibrations"`
	AcceptanceRatio float64 `json:"acceptance_ratio"`
}

func (ds *DecisionStats) Snapshot() Snapshot {
	return Snapshot{
		Accepted:        atomic.LoadUint64(&ds.Accepted),
		Rejected:        atomic.LoadUint64(&ds.Rejected),
		OracleCalls:     atomic.LoadUint64(&ds.OracleCalls),
		Calibrations:    atomic.LoadUint64(&ds.Calibrations),
		ValidRuns:       atomic.LoadUint64(&ds.ValidRuns),
		AcceptanceRatio: ds.AcceptanceRatio(),
	}
}

func (ds *DecisionStats) CalibrationStarted(errorest.ErrorMethod, int) {}
func (ds *DecisionStats) SampleEvaluated(int, float64, float64)        {}

func (ds *DecisionStats) CalibrationFinished(r errorest.CalibrationResult) {
	ds.RecordCalibration(r.Valid)
}

func (ds *DecisionStats) Decision(_, _ float64, accepted bool) {
	ds.RecordDecision(accepted)
}
