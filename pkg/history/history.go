package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/tdnlab/tdnlaunch/pkg/config"
)

var DebugLog func(string, ...interface{})

type DB struct {
	conn    *sql.DB
	enabled bool
}

// RunRecord is one row of launch history.
type RunRecord struct {
	ID               int
	DataDir          string
	ResumeCheckpoint string
	Workers          int
	GPUs             string
	Args             string
	ExitCode         int
	StartedAt        time.Time
	FinishedAt       time.Time
}

const DBName = "tdnlaunch_history"

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			return db, fmt.Errorf("failed to create database: %w", err)
		}
		if DebugLog != nil {
			DebugLog("database %s created", DBName)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn

	if err := db.initSchema(); err != nil {
		return db, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if !db.enabled || db.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS training_runs (
		id SERIAL PRIMARY KEY,
		data_dir VARCHAR(1024) NOT NULL,
		resume_checkpoint VARCHAR(1024) NOT NULL DEFAULT '',
		workers INT NOT NULL,
		gpus VARCHAR(255) NOT NULL,
		args TEXT NOT NULL,
		exit_code INT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_data_dir ON training_runs(data_dir);
	CREATE INDEX IF NOT EXISTS idx_exit_code ON training_runs(exit_code);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db.enabled && db.conn != nil
}

// RecordRun stores one finished launch. A no-op when history is disabled, so
// callers never have to branch on configuration.
func (db *DB) RecordRun(r *RunRecord) error {
	if !db.IsEnabled() {
		return nil
	}

	if DebugLog != nil {
		DebugLog("recording run for %s (exit code %d)", r.DataDir, r.ExitCode)
	}

	_, err := db.conn.Exec(`
		INSERT INTO training_runs (data_dir, resume_checkpoint, workers, gpus, args, exit_code, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.DataDir, r.ResumeCheckpoint, r.Workers, r.GPUs, r.Args, r.ExitCode, r.StartedAt, r.FinishedAt)

	return err
}

// QueryRuns returns launch history, newest first. dataDir filters to one
// dataset when non-empty; failedOnly keeps runs with a non-zero exit code.
func (db *DB) QueryRuns(dataDir string, failedOnly bool) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("run history is not enabled")
	}

	query := `
		SELECT id, data_dir, resume_checkpoint, workers, gpus, args, exit_code, started_at, finished_at
		FROM training_runs
	`
	var conds []string
	var args []interface{}

	if dataDir != "" {
		args = append(args, dataDir)
		conds = append(conds, fmt.Sprintf("data_dir = $%d", len(args)))
	}

	if failedOnly {
		conds = append(conds, "exit_code != 0")
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY started_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.DataDir, &r.ResumeCheckpoint, &r.Workers, &r.GPUs,
			&r.Args, &r.ExitCode, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
