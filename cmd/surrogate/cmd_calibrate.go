package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"surrogate/pkg/common"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the error estimator on a held-out demo dataset",
	RunE:  runCalibrate,
}

func init() {
	addDatasetFlags(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	s, err := buildStack(cmd.Context(), cmd, stackOptions{archive: true, progress: true})
	if err != nil {
		return err
	}
	defer s.Close()

	points, data := common.Split(s.test)
	if err := s.est.Calibrate(points, data, 0, len(points)); err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	out := cmd.OutOrStdout()
	st := s.eval.Status()
	fmt.Fprintf(out, "Method:     %s\n", st.Method)
	fmt.Fprintf(out, "Training:   %d points\n", st.TrainingSize)
	fmt.Fprintf(out, "Test:       %d points\n", len(points))
	if !st.Valid {
		fmt.Fprintf(out, "Valid:      no (fewer than %d nonzero-error samples)\n", cfg.Estimator.MinSamples)
		return nil
	}
	fmt.Fprintf(out, "Valid:      yes\n")
	fmt.Fprintf(out, "1-sigma:    %.6g\n", st.OneSigma)
	fmt.Fprintf(out, "2-sigma:    %.6g\n", st.TwoSigma)
	if p := s.est.Posterior(); p != nil {
		fmt.Fprintf(out, "Median:     %.6g\n", p.Median())
		lo, hi := p.OneSigmaTwoSided()
		fmt.Fprintf(out, "68%% range:  [%.6g, %.6g]\n", lo, hi)
		lo, hi = p.TwoSigmaTwoSided()
		fmt.Fprintf(out, "95%% range:  [%.6g, %.6g]\n", lo, hi)
	}
	if cfg.Estimator.PosteriorFile != "" {
		fmt.Fprintf(out, "Posterior:  %s\n", cfg.Estimator.PosteriorFile)
	}
	fmt.Fprintf(out, "Run:        %s\n", s.db.LastRunID())
	return nil
}
