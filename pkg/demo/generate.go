package demo

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"surrogate/pkg/common"
)

// Generate draws n points uniformly from [lo, hi)^dim and evaluates model on
// them with up to workers goroutines. Points depend only on seed, so the
// result is reproducible regardless of scheduling.
func Generate(ctx context.Context, model common.Model, n, dim int, lo, hi float64, seed int64, workers int) ([]common.Sample, error) {
	if n < 0 || dim <= 0 || !(hi > lo) {
		return nil, fmt.Errorf("demo: invalid sampling box (n=%d, dim=%d, [%v, %v))", n, dim, lo, hi)
	}
	if workers <= 0 {
		workers = 1
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([]common.Sample, n)
	for i := range samples {
		p := make(common.Point, dim)
		for j := range p {
			p[j] = lo + (hi-lo)*rng.Float64()
		}
		samples[i].Point = p
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range samples {
		g.Go(func() error {
			data, err := model.Compute(gCtx, samples[i].Point)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			samples[i].Data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}
