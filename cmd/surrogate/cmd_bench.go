package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"surrogate/pkg/demo"
)

var benchFlags struct {
	queries int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare surrogate evaluations against the model",
	RunE:  runBench,
}

func init() {
	addDatasetFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchFlags.queries, "queries", 1000, "Number of query points")
}

type benchReport struct {
	queries      int
	approximated int
	violations   int
	maxError     float64
	approxTime   time.Duration
	computedTime time.Duration
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := buildStack(ctx, cmd, stackOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.eval.Calibrate(s.test); err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	fast, _ := demoModel(0)
	queries, err := demo.Generate(ctx, fast, benchFlags.queries, datasetFlags.dim,
		datasetFlags.lo, datasetFlags.hi, datasetFlags.seed+2, datasetFlags.workers)
	if err != nil {
		return fmt.Errorf("generate queries: %w", err)
	}

	out := cmd.OutOrStdout()
	st := s.eval.Status()
	fmt.Fprintf(out, "Surrogate Benchmark (N=%d)\n", len(queries))
	fmt.Fprintf(out, "  method=%s  precision=%g  valid=%v  2-sigma=%.4g\n", st.Method, st.Precision, st.Valid, st.TwoSigma)
	fmt.Fprintln(out, "---------------------------------------------------")

	rep := benchReport{queries: len(queries)}
	for _, q := range queries {
		res, err := s.eval.Evaluate(ctx, q.Point)
		if err != nil {
			return err
		}
		if !res.Approximated {
			rep.computedTime += res.Latency
			continue
		}
		rep.approximated++
		rep.approxTime += res.Latency
		e := math.Abs(res.Value - s.oracle.Evaluate(q.Data))
		rep.maxError = math.Max(rep.maxError, e)
		if e > st.Precision {
			rep.violations++
		}
	}

	computed := rep.queries - rep.approximated
	fmt.Fprintf(out, "Approximated: %d/%d (%.1f%%)\n", rep.approximated, rep.queries,
		100*float64(rep.approximated)/float64(max(rep.queries, 1)))
	if rep.approximated > 0 {
		fmt.Fprintf(out, "  avg latency: %v\n", rep.approxTime/time.Duration(rep.approximated))
		fmt.Fprintf(out, "  max error:   %.4g (%d above precision)\n", rep.maxError, rep.violations)
	}
	fmt.Fprintf(out, "Computed:     %d\n", computed)
	if computed > 0 {
		fmt.Fprintf(out, "  avg latency: %v\n", rep.computedTime/time.Duration(computed))
	}
	fmt.Fprintln(out, "---------------------------------------------------")
	snap := s.stats.Snapshot()
	fmt.Fprintf(out, "Oracle calls: %d  Calibrations: %d (valid %d)\n", snap.OracleCalls, snap.Calibrations, snap.ValidRuns)
	return nil
}
