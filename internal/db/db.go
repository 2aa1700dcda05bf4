// Package db provides PostgreSQL persistence for runs, artifacts, and
// company dossiers.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateRun creates a new analysis run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, jobURL string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO runs (job_url, status)
		 VALUES ($1, 'running')
		 RETURNING id`,
		jobURL,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run as finished with its terminal status and an
// optional stop reason.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, stopReason string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stop_reason = NULLIF($2, ''), completed_at = NOW() WHERE id = $3`,
		status, stopReason, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// UpdateRunResult records the extracted company and title on a run.
func (db *DB) UpdateRunResult(ctx context.Context, runID uuid.UUID, company, roleTitle string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET company = NULLIF($1, ''), role_title = NULLIF($2, '') WHERE id = $3`,
		company, roleTitle, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run result: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, job_url, COALESCE(company, ''), COALESCE(role_title, ''), status,
		        COALESCE(stop_reason, ''), created_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.JobURL, &run.Company, &run.RoleTitle, &run.Status,
		&run.StopReason, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves recent runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_url, COALESCE(company, ''), COALESCE(role_title, ''), status,
		        COALESCE(stop_reason, ''), created_at, completed_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.JobURL, &run.Company, &run.RoleTitle, &run.Status,
			&run.StopReason, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
