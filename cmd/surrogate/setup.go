package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"surrogate/pkg/approx"
	"surrogate/pkg/common"
	"surrogate/pkg/demo"
	"surrogate/pkg/errorest"
	"surrogate/pkg/model"
	"surrogate/pkg/monitor"
	"surrogate/pkg/storage"
	"surrogate/pkg/surrogate"
)

var datasetFlags struct {
	model   string
	train   int
	test    int
	dim     int
	lo, hi  float64
	seed    int64
	workers int
	delay   time.Duration
}

func addDatasetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&datasetFlags.model, "model", "parabola", "Demo model: parabola or identity")
	f.IntVar(&datasetFlags.train, "train", 5000, "Training points")
	f.IntVar(&datasetFlags.test, "test", 1000, "Held-out calibration points")
	f.IntVar(&datasetFlags.dim, "dim", 2, "Parameter space dimension")
	f.Float64Var(&datasetFlags.lo, "lo", -1, "Lower bound of every coordinate")
	f.Float64Var(&datasetFlags.hi, "hi", 1, "Upper bound of every coordinate")
	f.Int64Var(&datasetFlags.seed, "seed", 1, "Random seed for the demo datasets")
	f.IntVar(&datasetFlags.workers, "workers", 8, "Concurrent model evaluations while generating datasets")
	f.DurationVar(&datasetFlags.delay, "delay", 0, "Artificial cost of one model evaluation")
}

func demoModel(delay time.Duration) (common.Model, error) {
	switch datasetFlags.model {
	case "parabola":
		return demo.Parabola{Delay: delay}, nil
	case "identity":
		return demo.Identity{Delay: delay}, nil
	default:
		return nil, fmt.Errorf("unknown model %q (want parabola or identity)", datasetFlags.model)
	}
}

// stack is everything a subcommand needs, built from cfg and the dataset
// flags.
type stack struct {
	model   common.Model
	oracle  *demo.ChiSquare
	fa      *approx.Approximator
	est     *errorest.Estimator
	eval    *surrogate.Evaluator
	test    []common.Sample
	stats   *monitor.DecisionStats
	metrics *monitor.Metrics
	db      *storage.SQLiteBackend
	wal     *storage.WAL
}

func (s *stack) Close() {
	if s.wal != nil {
		s.wal.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

type stackOptions struct {
	archive  bool
	wal      bool
	progress bool
}

func buildStack(ctx context.Context, cmd *cobra.Command, opts stackOptions) (*stack, error) {
	method, err := cfg.ParseMethod()
	if err != nil {
		return nil, err
	}
	m, err := demoModel(datasetFlags.delay)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &stack{
		model:   m,
		stats:   monitor.NewDecisionStats(),
		metrics: monitor.NewMetrics(),
	}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	// datasets are generated without the artificial delay
	fast, _ := demoModel(0)
	train, err := demo.Generate(ctx, fast, datasetFlags.train, datasetFlags.dim,
		datasetFlags.lo, datasetFlags.hi, datasetFlags.seed, datasetFlags.workers)
	if err != nil {
		return nil, fmt.Errorf("generate training set: %w", err)
	}
	s.test, err = demo.Generate(ctx, fast, datasetFlags.test, datasetFlags.dim,
		datasetFlags.lo, datasetFlags.hi, datasetFlags.seed+1, datasetFlags.workers)
	if err != nil {
		return nil, fmt.Errorf("generate test set: %w", err)
	}

	points, data := common.Split(train)
	s.fa, err = approx.New(points, data, cfg.Approximator.Neighbors,
		approx.WithGaussianProcess(model.GaussianProcess{
			LengthScale: cfg.Approximator.GPLengthScale,
			Nugget:      cfg.Approximator.GPNugget,
		}))
	if err != nil {
		return nil, err
	}
	s.oracle, err = demo.NewChiSquare(len(data[0]), 10, 1)
	if err != nil {
		return nil, err
	}

	observers := []errorest.Observer{s.stats, s.metrics, monitor.NewLogObserver(nil)}
	if opts.progress {
		observers = append(observers, monitor.NewProgress(cmd.ErrOrStderr()))
	}
	estOpts := []errorest.Option{
		errorest.WithObserver(monitor.Multi(observers...)),
		errorest.WithMinSamples(cfg.Estimator.MinSamples),
		errorest.WithPosteriorFile(cfg.Estimator.PosteriorFile),
	}
	if opts.archive {
		s.db, err = storage.NewSQLiteBackend(filepath.Join(cfg.Storage.Path, cfg.Storage.DBFile))
		if err != nil {
			return nil, err
		}
		estOpts = append(estOpts, errorest.WithArchive(s.db))
	}
	s.est, err = errorest.New(s.fa, s.oracle, method, cfg.Estimator.Precision, estOpts...)
	if err != nil {
		return nil, err
	}

	evalOpts := []surrogate.Option{
		surrogate.WithRetrainEvery(cfg.Surrogate.RetrainEvery),
		surrogate.WithCallRecorder(s.stats, s.metrics),
	}
	if opts.wal {
		s.wal, err = storage.OpenWAL(filepath.Join(cfg.Storage.Path, cfg.Storage.WALFile))
		if err != nil {
			return nil, err
		}
		evalOpts = append(evalOpts, surrogate.WithWAL(s.wal))
	}
	s.eval, err = surrogate.New(s.fa, s.est, s.model, s.oracle, evalOpts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return s, nil
}
