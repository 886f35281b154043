package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"surrogate/pkg/errorest"
	"surrogate/pkg/logging"
)

var ErrRunNotFound = errors.New("storage: calibration run not found")

// Run is one archived calibration.
type Run struct {
	ID           string        `json:"id"`
	Method       string        `json:"method"`
	Begin        int           `json:"begin"`
	End          int           `json:"end"`
	ValidSamples int           `json:"valid_samples"`
	OneSigma     float64       `json:"one_sigma"`
	TwoSigma     float64       `json:"two_sigma"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SQLiteBackend archives calibrations. It implements errorest.Archive.
type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex

	lastID string
}

var _ errorest.Archive = (*SQLiteBackend)(nil)

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		method        TEXT NOT NULL,
		begin_idx     INTEGER NOT NULL,
		end_idx       INTEGER NOT NULL,
		valid_samples INTEGER NOT NULL,
		one_sigma     REAL NOT NULL,
		two_sigma     REAL NOT NULL,
		duration_ns   INTEGER NOT NULL,
		created_at    INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ratios (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx    INTEGER NOT NULL,
		value  REAL NOT NULL,
		PRIMARY KEY (run_id, idx)
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		logging.New("storage").Warn("failed to set PRAGMA", "error", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// SaveCalibration stores the run and its ratios in one transaction.
func (s *SQLiteBackend) SaveCalibration(rec errorest.CalibrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO runs
		(id, method, begin_idx, end_idx, valid_samples, one_sigma, two_sigma, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Method.String(), rec.Begin, rec.End, rec.ValidSamples,
		rec.OneSigma, rec.TwoSigma, int64(rec.Duration), rec.CreatedAt.UnixNano())
	if err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO ratios (run_id, idx, value) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, r := range rec.Ratios {
		if _, err := stmt.Exec(id, i, r); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.lastID = id
	return nil
}

// LastRunID is the id of the most recent run saved through this backend.
func (s *SQLiteBackend) LastRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

const runColumns = "id, method, begin_idx, end_idx, valid_samples, one_sigma, two_sigma, duration_ns, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var dur, created int64
	if err := row.Scan(&r.ID, &r.Method, &r.Begin, &r.End, &r.ValidSamples,
		&r.OneSigma, &r.TwoSigma, &dur, &created); err != nil {
		return Run{}, err
	}
	r.Duration = time.Duration(dur)
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

// LatestCalibration returns the newest run for method.
func (s *SQLiteBackend) LatestCalibration(method errorest.ErrorMethod) (Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE method = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		method.String())
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: method %s", ErrRunNotFound, method)
	}
	return r, err
}

// Runs lists every archived run, oldest first.
func (s *SQLiteBackend) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT " + runColumns + " FROM runs ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ratios returns the ratios of a run in ascending order.
func (s *SQLiteBackend) Ratios(runID string) ([]float64, error) {
	rows, err := s.db.Query("SELECT value FROM ratios WHERE run_id = ? ORDER BY idx ASC", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratios []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		ratios = append(ratios, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ratios) == 0 {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
	}
	return ratios, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
