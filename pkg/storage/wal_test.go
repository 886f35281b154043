package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surrogate/pkg/common"
)

func TestWALAppendIterateAndTruncate(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "surrogate.wal")
	w, err := OpenWAL(walPath)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()

	first := common.Sample{Point: common.Point{1, 2}, Data: common.Vector{3}}
	second := common.Sample{Point: common.Point{-0.5, 1e-300}, Data: common.Vector{4, 5, 6}}
	if err := w.Append(first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := w.Append(second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	sizeBefore, err := w.Size()
	if err != nil {
		t.Fatalf("size before truncate: %v", err)
	}
	if sizeBefore != int64(2*HeaderSize+8*(3+5)) {
		t.Fatalf("unexpected wal size before truncate: %d", sizeBefore)
	}

	it, err := w.NewIterator()
	if err != nil {
		t.Fatalf("new iterator: %v", err)
	}
	rec1, err := it.Next()
	if err != nil {
		it.Close()
		t.Fatalf("first next: %v", err)
	}
	rec2, err := it.Next()
	if err != nil {
		it.Close()
		t.Fatalf("second next: %v", err)
	}
	if _, err := it.Next(); err != io.EOF {
		it.Close()
		t.Fatalf("expected EOF after two records, got %v", err)
	}
	it.Close()

	assert.Equal(t, first, rec1)
	assert.Equal(t, second, rec2)

	if err := w.Truncate(); err != nil {
		t.Fatalf("truncate wal: %v", err)
	}
	sizeAfter, err := w.Size()
	if err != nil {
		t.Fatalf("size after truncate: %v", err)
	}
	if sizeAfter != 0 {
		t.Fatalf("expected wal size 0 after truncate, got %d", sizeAfter)
	}

	samples, err := w.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestWALReadAllSkipsTornTail(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "surrogate.wal")
	w, err := OpenWAL(walPath)
	require.NoError(t, err)
	require.NoError(t, w.Append(common.Sample{Point: common.Point{1}, Data: common.Vector{2}}))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(walPath, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = OpenWAL(walPath)
	require.NoError(t, err)
	defer w.Close()
	samples, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, []float64{2}, []float64(samples[0].Data))
}

func TestWALDetectsBitFlip(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "surrogate.wal")
	w, err := OpenWAL(walPath)
	require.NoError(t, err)
	require.NoError(t, w.Append(common.Sample{Point: common.Point{1}, Data: common.Vector{2}}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(walPath)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(walPath, raw, 0644))

	w, err = OpenWAL(walPath)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.ReadAll()
	assert.ErrorIs(t, err, ErrCRCMismatch)
}
