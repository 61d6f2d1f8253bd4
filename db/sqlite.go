package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"water-synth/models"
	"water-synth/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// SQLiteClient is the render ledger shared by the pipeline, its render
// workers and the monitor. Several worker processes write to the same file,
// so every connection carries a busy timeout.
type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=10000"
		} else {
			dataSourceName += "?_busy_timeout=10000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        requested INTEGER NOT NULL,
        gpus TEXT NOT NULL,
        started_at DATETIME NOT NULL
    );
    `

	createRendersTable := `
    CREATE TABLE IF NOT EXISTS renders (
        run_id TEXT NOT NULL,
        sample_id INTEGER NOT NULL,
        gpu INTEGER NOT NULL,
        elapsed_ms REAL NOT NULL,
        undistorted TEXT NOT NULL,
        distorted TEXT NOT NULL,
        rendered_at DATETIME NOT NULL,
        PRIMARY KEY (run_id, sample_id)
    );
    CREATE INDEX IF NOT EXISTS idx_renders_gpu ON renders(run_id, gpu);
    `

	createSplitsTable := `
    CREATE TABLE IF NOT EXISTS splits (
        run_id TEXT NOT NULL,
        sample TEXT NOT NULL,
        frame TEXT NOT NULL,
        split TEXT NOT NULL,
        PRIMARY KEY (run_id, sample, frame)
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	if _, err := db.Exec(createRendersTable); err != nil {
		return fmt.Errorf("error creating renders table: %w", err)
	}
	if _, err := db.Exec(createSplitsTable); err != nil {
		return fmt.Errorf("error creating splits table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StartRun registers a pipeline run before its workers are launched.
func (db *SQLiteClient) StartRun(ctx context.Context, runID string, requested int, gpus []int) error {
	gpusJSON, err := json.Marshal(gpus)
	if err != nil {
		return fmt.Errorf("error marshaling gpus: %w", err)
	}
	_, err = db.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO runs (run_id, requested, gpus, started_at) VALUES (?, ?, ?, ?)",
		runID, requested, string(gpusJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error registering run: %w", err)
	}
	return nil
}

// RecordRender stores one rendered sample. Re-rendering a sample within
// the same run replaces its row.
func (db *SQLiteClient) RecordRender(ctx context.Context, rec models.RenderRecord) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO renders (
			run_id, sample_id, gpu, elapsed_ms, undistorted, distorted, rendered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.SampleID,
		rec.GPU,
		rec.ElapsedMs,
		rec.Undistorted,
		rec.Distorted,
		rec.RenderedAt,
	)
	if err != nil {
		return fmt.Errorf("error storing render of sample %d: %w", rec.SampleID, err)
	}
	return nil
}

// GPUStats aggregates the renders of a run per GPU, ordered by GPU.
func (db *SQLiteClient) GPUStats(ctx context.Context, runID string) ([]models.GPUStat, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT gpu, COUNT(*), AVG(elapsed_ms), MAX(sample_id)
		FROM renders
		WHERE run_id = ?
		GROUP BY gpu
		ORDER BY gpu
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying gpu stats: %w", err)
	}
	defer rows.Close()

	var stats []models.GPUStat
	for rows.Next() {
		var s models.GPUStat
		if err := rows.Scan(&s.GPU, &s.Samples, &s.AvgElapsedMs, &s.MaxSampleID); err != nil {
			return nil, fmt.Errorf("error scanning gpu stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RunStatus returns the progress of one run. The boolean is false when the
// run is unknown.
func (db *SQLiteClient) RunStatus(ctx context.Context, runID string) (models.RunStatus, bool, error) {
	st := models.RunStatus{RunID: runID}
	var gpusJSON string
	err := db.db.QueryRowContext(ctx,
		"SELECT requested, started_at, gpus FROM runs WHERE run_id = ?", runID,
	).Scan(&st.Requested, &st.StartedAt, &gpusJSON)
	if err == sql.ErrNoRows {
		return models.RunStatus{}, false, nil
	}
	if err != nil {
		return models.RunStatus{}, false, fmt.Errorf("failed to retrieve run: %w", err)
	}

	st.GPUs, err = db.GPUStats(ctx, runID)
	if err != nil {
		return models.RunStatus{}, false, err
	}
	for _, g := range st.GPUs {
		st.Rendered += g.Samples
	}
	return st, true, nil
}

// RecentRuns returns the status of the most recently started runs.
func (db *SQLiteClient) RecentRuns(ctx context.Context, limit int) ([]models.RunStatus, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT run_id FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close() // release the connection before the per-run queries

	runs := make([]models.RunStatus, 0, len(ids))
	for _, id := range ids {
		st, ok, err := db.RunStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			runs = append(runs, st)
		}
	}
	return runs, nil
}

// RecordSplit stores the split assignment of every frame in one transaction.
func (db *SQLiteClient) RecordSplit(ctx context.Context, runID string, split models.DatasetSplit) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO splits (run_id, sample, frame, split) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	sets := []struct {
		name   string
		frames []models.RenderedFrame
	}{{"train", split.Train}, {"val", split.Val}, {"test", split.Test}}
	for _, set := range sets {
		for _, f := range set.frames {
			if _, err := stmt.ExecContext(ctx, runID, f.Sample, f.Frame, set.name); err != nil {
				tx.Rollback()
				return fmt.Errorf("error executing statement: %w", err)
			}
		}
	}
	return tx.Commit()
}

// SplitCounts returns the number of frames per split name for a run.
func (db *SQLiteClient) SplitCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT split, COUNT(*) FROM splits WHERE run_id = ? GROUP BY split", runID)
	if err != nil {
		return nil, fmt.Errorf("error querying splits: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("error scanning split: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
