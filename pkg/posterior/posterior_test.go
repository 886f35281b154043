package posterior

import (
	"bufio"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSetKeepsDuplicatesInOrder(t *testing.T) {
	s := NewSampleSet(4)
	for _, x := range []float64{3, 1, 2, 1, 3} {
		s.Put(x, 1)
	}
	xs, ws := s.Sorted()
	assert.Equal(t, []float64{1, 1, 2, 3, 3}, xs)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, ws)
	assert.Equal(t, 5.0, s.TotalWeight())

	lo, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, 1.0, lo)
	hi, ok := s.Max()
	require.True(t, ok)
	assert.Equal(t, 3.0, hi)
}

func TestConcentratedPosterior(t *testing.T) {
	p := New()
	for i := 0; i < 200; i++ {
		require.NoError(t, p.AddPoint(1.0, 1, 1))
	}
	require.NoError(t, p.Generate())

	assert.Equal(t, 1.0, p.Median())
	assert.Equal(t, 1.0, p.OneSigmaUpper())
	assert.Equal(t, 1.0, p.TwoSigmaUpper())
	assert.InDelta(t, 1.0, p.Mean(), 1e-12)
}

func TestUniformQuantiles(t *testing.T) {
	p := New()
	for i := 1; i <= 1000; i++ {
		require.NoError(t, p.AddPoint(float64(i)/1000, 1, 1))
	}
	require.NoError(t, p.Generate())

	assert.InDelta(t, 0.5, p.Median(), 2e-3)
	assert.InDelta(t, OneSigma, p.OneSigmaUpper(), 2e-3)
	assert.InDelta(t, TwoSigma, p.TwoSigmaUpper(), 2e-3)
	assert.GreaterOrEqual(t, p.TwoSigmaUpper(), p.OneSigmaUpper())

	lo, hi := p.OneSigmaTwoSided()
	assert.Less(t, lo, p.Median())
	assert.Greater(t, hi, p.Median())

	lo2, hi2 := p.TwoSigmaTwoSided()
	assert.InDelta(t, (1-TwoSigma)/2, lo2, 2e-3)
	assert.InDelta(t, (1+TwoSigma)/2, hi2, 2e-3)
	assert.Less(t, lo2, lo)
	assert.Greater(t, hi2, hi)
}

func TestTwoSigmaNotBelowOneSigma(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := New()
	for i := 0; i < 500; i++ {
		require.NoError(t, p.AddPoint(rng.ExpFloat64(), 1, 1))
	}
	require.NoError(t, p.Generate())
	assert.GreaterOrEqual(t, p.TwoSigmaUpper(), p.OneSigmaUpper())
}

func TestLifecycleErrors(t *testing.T) {
	p := New()
	assert.ErrorIs(t, p.Generate(), ErrEmpty)
	assert.ErrorIs(t, p.AddPoint(1, 0, 1), ErrInvalidSample)
	assert.ErrorIs(t, p.WriteFile(filepath.Join(t.TempDir(), "x.txt"), 10), ErrNotGenerated)

	require.NoError(t, p.AddPoint(1, 1, 1))
	require.NoError(t, p.Generate())
	assert.ErrorIs(t, p.AddPoint(2, 1, 1), ErrGenerated)
	assert.ErrorIs(t, p.Generate(), ErrGenerated)
}

func TestMaxLikePoint(t *testing.T) {
	p := New()
	require.NoError(t, p.AddPoint(3, 1, 10))
	require.NoError(t, p.AddPoint(5, 1, 2))
	require.NoError(t, p.AddPoint(7, 1, 4))
	assert.Equal(t, 5.0, p.MaxLikePoint())
}

func readGrid(t *testing.T, path string) [][3]float64 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows [][3]float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		require.Len(t, fields, 3)
		var row [3]float64
		for i, s := range fields {
			row[i], err = strconv.ParseFloat(s, 64)
			require.NoError(t, err)
		}
		rows = append(rows, row)
	}
	require.NoError(t, sc.Err())
	return rows
}

func TestWriteFileIsReproducible(t *testing.T) {
	build := func() *Posterior1D {
		p := New()
		for _, x := range []float64{0.5, 0.8, 1.0, 1.0, 1.3, 2.0} {
			require.NoError(t, p.AddPoint(x, 1, 1))
		}
		require.NoError(t, p.Generate())
		return p
	}

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, build().WriteFile(a, 50))
	require.NoError(t, build().WriteFile(b, 50))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, string(da), string(db))

	rows := readGrid(t, a)
	require.Len(t, rows, 50)
	assert.Equal(t, 0.0, rows[0][2])
	assert.InDelta(t, 1.0, rows[49][2], 1e-12)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i][2], rows[i-1][2])
		assert.GreaterOrEqual(t, rows[i][1], 0.0)
	}
}
