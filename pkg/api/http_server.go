package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"surrogate/pkg/approx"
	"surrogate/pkg/logging"
	"surrogate/pkg/monitor"
	"surrogate/pkg/storage"
	"surrogate/pkg/surrogate"
)

// RunLister lists archived calibrations.
type RunLister interface {
	Runs() ([]storage.Run, error)
}

type Server struct {
	eval    *surrogate.Evaluator
	stats   *monitor.DecisionStats
	metrics *monitor.Metrics
	runs    RunLister
	logger  *slog.Logger
}

// NewServer serves eval. metrics and runs may be nil, in which case /metrics
// and /api/runs are not registered.
func NewServer(eval *surrogate.Evaluator, stats *monitor.DecisionStats, metrics *monitor.Metrics, runs RunLister) *Server {
	return &Server{
		eval:    eval,
		stats:   stats,
		metrics: metrics,
		runs:    runs,
		logger:  logging.New("api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/evaluate", s.handleEvaluate)
	mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	mux.HandleFunc("/api/stats", s.handleStats)
	if s.runs != nil {
		mux.HandleFunc("/api/runs", s.handleRuns)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("server stopped")
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Point []float64 `json:"point"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	res, err := s.eval.Evaluate(r.Context(), req.Point)
	if err != nil {
		code := evaluateStatus(err)
		if code == http.StatusInternalServerError {
			s.logger.Error("evaluate failed", "error", err)
		}
		writeError(w, code, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.eval.Flush()
	if errors.Is(err, surrogate.ErrNothingPending) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eval.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	resp := struct {
		Evaluator surrogate.Status `json:"evaluator"`
		Decisions monitor.Snapshot `json:"decisions"`
	}{Evaluator: s.eval.Status()}
	if s.stats != nil {
		resp.Decisions = s.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	runs, err := s.runs.Runs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// evaluateStatus maps an evaluation error to its HTTP status. Malformed
// points are the caller's fault.
func evaluateStatus(err error) int {
	if errors.Is(err, approx.ErrDimension) || errors.Is(err, approx.ErrInvalidPoint) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
