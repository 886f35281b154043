package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"surrogate/pkg/errorest"
	"surrogate/pkg/storage"
)

var runsFlags struct {
	method string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived calibrations",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.method, "method", "", "Only show the latest run of this method, with its ratios")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	db, err := storage.NewSQLiteBackend(filepath.Join(cfg.Storage.Path, cfg.Storage.DBFile))
	if err != nil {
		return err
	}
	defer db.Close()
	out := cmd.OutOrStdout()

	if runsFlags.method != "" {
		method, err := errorest.ParseMethod(runsFlags.method)
		if err != nil {
			return err
		}
		run, err := db.LatestCalibration(method)
		if err != nil {
			return err
		}
		ratios, err := db.Ratios(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run:      %s\n", run.ID)
		fmt.Fprintf(out, "Created:  %s\n", run.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Samples:  %d\n", run.ValidSamples)
		fmt.Fprintf(out, "2-sigma:  %.6g\n", run.TwoSigma)
		if len(ratios) > 0 {
			fmt.Fprintf(out, "Ratios:   min %.6g, max %.6g\n", ratios[0], ratios[len(ratios)-1])
		}
		return nil
	}

	runs, err := db.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No calibrations archived.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMETHOD\tSAMPLES\t1-SIGMA\t2-SIGMA\tDURATION\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.4g\t%.4g\t%s\t%s\n", r.ID, r.Method, r.ValidSamples,
			r.OneSigma, r.TwoSigma, r.Duration.Round(time.Millisecond), r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
