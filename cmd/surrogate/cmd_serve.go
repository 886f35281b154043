package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"surrogate/pkg/api"
	"surrogate/pkg/logging"
	"surrogate/pkg/network"
	"surrogate/pkg/storage"
	"surrogate/pkg/surrogate"
)

var serveFlags struct {
	addr    string
	tcpAddr string
	fresh   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve evaluations over HTTP",
	RunE:  runServe,
}

func init() {
	addDatasetFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveFlags.tcpAddr, "tcp-addr", "", "Binary protocol listen address (overrides server.tcp_addr)")
	serveCmd.Flags().BoolVar(&serveFlags.fresh, "fresh", false, "Discard the evaluation log instead of replaying it")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cmd, stackOptions{archive: true, wal: true})
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := restoreEvaluations(s.eval, s.wal, serveFlags.fresh); err != nil {
		return err
	}
	if err := s.eval.Calibrate(s.test); err != nil {
		return fmt.Errorf("initial calibration: %w", err)
	}

	addr, tcpAddr := cfg.Server.Addr, cfg.Server.TCPAddr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}
	if serveFlags.tcpAddr != "" {
		tcpAddr = serveFlags.tcpAddr
	}
	s.metrics.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	logging.New("serve").Info("surrogate ready", "status", s.eval.Status())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.NewServer(s.eval, s.stats, s.metrics, s.db).Run(gCtx, addr)
	})
	if tcpAddr != "" {
		g.Go(func() error {
			return network.NewTCPServer(s.eval).Start(gCtx, tcpAddr)
		})
	}
	return g.Wait()
}

// restoreEvaluations replays the evaluation log into ev, or empties the log
// when fresh is set.
func restoreEvaluations(ev *surrogate.Evaluator, w *storage.WAL, fresh bool) (int, error) {
	if fresh {
		if err := w.Truncate(); err != nil {
			return 0, fmt.Errorf("discard evaluation log: %w", err)
		}
		return 0, nil
	}
	return ev.Replay(w)
}
