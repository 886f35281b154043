package surrogate

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surrogate/pkg/approx"
	"surrogate/pkg/common"
	"surrogate/pkg/demo"
	"surrogate/pkg/errorest"
	"surrogate/pkg/monitor"
	"surrogate/pkg/storage"
)

type fixture struct {
	eval   *Evaluator
	fa     *approx.Approximator
	stats  *monitor.DecisionStats
	train  []common.Sample
	oracle *demo.ChiSquare
}

func newFixture(t *testing.T, precision float64, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	train, err := demo.Generate(ctx, demo.Parabola{}, 2000, 1, -1, 1, 1, 4)
	require.NoError(t, err)
	points, data := common.Split(train)

	fa, err := approx.New(points, data, 8)
	require.NoError(t, err)
	oracle, err := demo.NewChiSquare(1, 10, 1)
	require.NoError(t, err)

	stats := monitor.NewDecisionStats()
	est, err := errorest.New(fa, oracle, errorest.MinDistance, precision,
		errorest.WithPosteriorFile(""), errorest.WithObserver(stats))
	require.NoError(t, err)

	opts = append([]Option{WithCallRecorder(stats)}, opts...)
	ev, err := New(fa, est, demo.Parabola{}, oracle, opts...)
	require.NoError(t, err)
	return &fixture{eval: ev, fa: fa, stats: stats, train: train, oracle: oracle}
}

func TestUncalibratedAcceptsOnlyExactMatches(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()

	known := f.train[17]
	res, err := f.eval.Evaluate(ctx, known.Point)
	require.NoError(t, err)
	assert.True(t, res.Approximated)
	assert.Equal(t, []float64(known.Data), res.Data)
	assert.Equal(t, f.oracle.Evaluate(known.Data), res.Value)

	res, err = f.eval.Evaluate(ctx, []float64{0.123456789})
	require.NoError(t, err)
	assert.False(t, res.Approximated)
	x := 0.123456789
	assert.InDelta(t, 5*x*x-3*x+10, res.Data[0], 1e-12)

	snap := f.stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Accepted)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(1), snap.OracleCalls)
	assert.Equal(t, 1, f.eval.Status().Pending)
}

func TestCalibratedAcceptsWithinPrecision(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()

	test, err := demo.Generate(ctx, demo.Parabola{}, 300, 1, -1, 1, 2, 4)
	require.NoError(t, err)
	require.NoError(t, f.eval.Calibrate(test))

	st := f.eval.Status()
	require.True(t, st.Valid)
	assert.GreaterOrEqual(t, st.TwoSigma, st.OneSigma)

	queries, err := demo.Generate(ctx, demo.Parabola{}, 50, 1, -0.9, 0.9, 3, 4)
	require.NoError(t, err)
	accepted := 0
	for _, q := range queries {
		res, err := f.eval.Evaluate(ctx, q.Point)
		require.NoError(t, err)
		if res.Approximated {
			accepted++
		}
		assert.LessOrEqual(t, math.Abs(res.Value-f.oracle.Evaluate(q.Data)), 0.1)
	}
	assert.Equal(t, len(queries), accepted)
}

func TestRetrainCycle(t *testing.T) {
	f := newFixture(t, 0.1, WithRetrainEvery(3))
	ctx := context.Background()
	before := f.fa.Len()

	for _, x := range []float64{0.11111, 0.22222} {
		_, err := f.eval.Evaluate(ctx, []float64{x})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.eval.Status().Pending)
	assert.Equal(t, before, f.fa.Len())

	_, err := f.eval.Evaluate(ctx, []float64{0.33333})
	require.NoError(t, err)
	st := f.eval.Status()
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, before+3, st.TrainingSize)
	// three samples are learned without a calibration attempt
	assert.False(t, st.Valid)
	assert.Equal(t, uint64(0), f.stats.Snapshot().Calibrations)

	res, err := f.eval.Evaluate(ctx, []float64{0.22222})
	require.NoError(t, err)
	assert.True(t, res.Approximated)

	assert.ErrorIs(t, f.eval.Flush(), ErrNothingPending)
}

func TestFlush(t *testing.T) {
	f := newFixture(t, 0.1)
	_, err := f.eval.Evaluate(context.Background(), []float64{0.5})
	require.NoError(t, err)
	require.NoError(t, f.eval.Flush())
	assert.Equal(t, 0, f.eval.Status().Pending)
	assert.Equal(t, 2001, f.fa.Len())
}

func TestFlushKeepsCalibration(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()

	res, err := f.eval.Evaluate(ctx, []float64{0.5})
	require.NoError(t, err)
	require.False(t, res.Approximated)

	test, err := demo.Generate(ctx, demo.Parabola{}, 300, 1, -1, 1, 2, 4)
	require.NoError(t, err)
	require.NoError(t, f.eval.Calibrate(test))
	before := f.eval.Status()
	require.True(t, before.Valid)

	require.NoError(t, f.eval.Flush())
	after := f.eval.Status()
	assert.True(t, after.Valid)
	assert.Equal(t, before.OneSigma, after.OneSigma)
	assert.Equal(t, before.TwoSigma, after.TwoSigma)
	assert.Equal(t, 0, after.Pending)
	assert.Equal(t, 2001, after.TrainingSize)
}

func TestRetrainRecalibratesWithEnoughSamples(t *testing.T) {
	f := newFixture(t, 0.1, WithRetrainEvery(errorest.DefaultMinSamples))
	ctx := context.Background()

	for i := 0; i < errorest.DefaultMinSamples; i++ {
		x := -0.99 + 1.98*float64(i)/float64(errorest.DefaultMinSamples) + 1e-7
		_, err := f.eval.Evaluate(ctx, []float64{x})
		require.NoError(t, err)
	}
	st := f.eval.Status()
	assert.Equal(t, 0, st.Pending)
	assert.True(t, st.Valid)
	assert.Equal(t, uint64(1), f.stats.Snapshot().Calibrations)
}

func TestDimensionMismatch(t *testing.T) {
	f := newFixture(t, 0.1)
	_, err := f.eval.Evaluate(context.Background(), []float64{1, 2})
	assert.ErrorIs(t, err, approx.ErrDimension)
}

func TestNonFinitePointRejected(t *testing.T) {
	f := newFixture(t, 0.1)
	for _, x := range []float64{math.NaN(), math.Inf(1)} {
		_, err := f.eval.Evaluate(context.Background(), []float64{x})
		assert.ErrorIs(t, err, approx.ErrInvalidPoint)
	}
	assert.Equal(t, 0, f.eval.Status().Pending)
	assert.Equal(t, uint64(0), f.stats.Snapshot().OracleCalls)
}

func TestCancelledModel(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.eval.Evaluate(ctx, []float64{0.4242})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.eval.Status().Pending)
}

func TestReplayRestoresEvaluations(t *testing.T) {
	w, err := storage.OpenWAL(filepath.Join(t.TempDir(), "evaluations.wal"))
	require.NoError(t, err)
	defer w.Close()

	f := newFixture(t, 0.1, WithWAL(w))
	ctx := context.Background()
	fresh := []float64{0.101, 0.202, 0.303, 0.404, 0.505}
	for _, x := range fresh {
		_, err := f.eval.Evaluate(ctx, []float64{x})
		require.NoError(t, err)
	}

	g := newFixture(t, 0.1)
	n, err := g.eval.Replay(w)
	require.NoError(t, err)
	assert.Equal(t, len(fresh), n)
	assert.Equal(t, 2000+len(fresh), g.fa.Len())

	for _, x := range fresh {
		res, err := g.eval.Evaluate(ctx, []float64{x})
		require.NoError(t, err)
		assert.True(t, res.Approximated)
	}
}

func TestConcurrentEvaluate(t *testing.T) {
	f := newFixture(t, 0.1, WithRetrainEvery(10))
	ctx := context.Background()
	queries, err := demo.Generate(ctx, demo.Identity{}, 200, 1, -1, 1, 9, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(queries))
	for _, q := range queries {
		wg.Add(1)
		go func(p []float64) {
			defer wg.Done()
			if _, err := f.eval.Evaluate(ctx, p); err != nil {
				errs <- err
			}
		}(q.Point)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	snap := f.stats.Snapshot()
	assert.Equal(t, uint64(len(queries)), snap.Accepted+snap.Rejected)
	assert.Equal(t, snap.Rejected, snap.OracleCalls)
	st := f.eval.Status()
	assert.Equal(t, 2000+int(snap.OracleCalls), st.TrainingSize+st.Pending)
}
