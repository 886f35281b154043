package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surrogate/pkg/errorest"
)

func openBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "surrogate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func record(method errorest.ErrorMethod, created time.Time, ratios ...float64) errorest.CalibrationRecord {
	return errorest.CalibrationRecord{
		CalibrationResult: errorest.CalibrationResult{
			Method:       method,
			Begin:        0,
			End:          len(ratios),
			ValidSamples: len(ratios),
			Valid:        true,
			OneSigma:     ratios[len(ratios)/2],
			TwoSigma:     ratios[len(ratios)-1],
			Duration:     42 * time.Millisecond,
		},
		Ratios:    ratios,
		CreatedAt: created,
	}
}

func TestSaveAndLoadCalibration(t *testing.T) {
	b := openBackend(t)
	base := time.Unix(1700000000, 0)

	require.NoError(t, b.SaveCalibration(record(errorest.MinDistance, base, 0.1, 0.2, 0.3)))
	first := b.LastRunID()
	require.NoError(t, b.SaveCalibration(record(errorest.MinDistance, base.Add(time.Second), 1, 2, 3, 4)))
	second := b.LastRunID()
	require.NoError(t, b.SaveCalibration(record(errorest.SumDistance, base.Add(2*time.Second), 5, 6)))
	assert.NotEqual(t, first, second)

	latest, err := b.LatestCalibration(errorest.MinDistance)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, "min_distance", latest.Method)
	assert.Equal(t, 4, latest.ValidSamples)
	assert.Equal(t, 4.0, latest.TwoSigma)
	assert.Equal(t, 42*time.Millisecond, latest.Duration)
	assert.True(t, latest.CreatedAt.Equal(base.Add(time.Second)))

	ratios, err := b.Ratios(first)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, ratios)

	runs, err := b.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, "sum_distance", runs[2].Method)
}

func TestMissingRuns(t *testing.T) {
	b := openBackend(t)

	_, err := b.LatestCalibration(errorest.GaussProcess)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = b.Ratios("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := b.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestBackendReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surrogate.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.SaveCalibration(record(errorest.AvgDistance, time.Now(), 1, 2)))
	id := b.LastRunID()
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()
	ratios, err := b.Ratios(id)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, ratios)
}
