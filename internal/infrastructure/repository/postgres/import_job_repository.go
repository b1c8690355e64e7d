package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

// ImportJobRepository persists the audit trail of import sessions: one row
// per wizard run, updated as the session moves through the pipeline.
type ImportJobRepository struct {
	db *sql.DB
}

func NewImportJobRepository(db *sql.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ImportJobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS import_jobs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	flow TEXT NOT NULL,
	status TEXT NOT NULL,
	document_count INTEGER NOT NULL DEFAULT 0,
	service_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	summary JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_session ON import_jobs(session_id);
CREATE INDEX IF NOT EXISTS idx_import_jobs_created_at ON import_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) CreateJob(ctx context.Context, job *domain.ImportJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO import_jobs (
	id, session_id, workspace_id, flow, status, document_count, service_count, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		job.ID, job.SessionID, job.WorkspaceID, string(job.Flow), job.Status,
		job.DocumentCount, job.ServiceCount, job.ErrorMessage, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) UpdateStatus(ctx context.Context, jobID, status, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE import_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, jobID, status, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update import job status: %w", err)
	}
	return requireRow(result, jobID)
}

func (r *ImportJobRepository) RecordCounts(ctx context.Context, jobID string, documentCount, serviceCount int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE import_jobs
SET document_count = document_count + $2, service_count = service_count + $3, updated_at = $4
WHERE id = $1
`, jobID, documentCount, serviceCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record import job counts: %w", err)
	}
	return requireRow(result, jobID)
}

func (r *ImportJobRepository) SaveSummary(ctx context.Context, jobID string, summary domain.CommitSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal commit summary: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE import_jobs
SET summary = $2, updated_at = $3
WHERE id = $1
`, jobID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save import job summary: %w", err)
	}
	return requireRow(result, jobID)
}

// GetBySession returns the most recent job for a session.
func (r *ImportJobRepository) GetBySession(ctx context.Context, sessionID string) (*domain.ImportJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, session_id, workspace_id, flow, status, document_count, service_count, COALESCE(error_message, ''), created_at, updated_at
FROM import_jobs
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT 1
`, sessionID)

	var job domain.ImportJob
	var flow string
	err := row.Scan(
		&job.ID, &job.SessionID, &job.WorkspaceID, &flow, &job.Status,
		&job.DocumentCount, &job.ServiceCount, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEntityNotFound, "get import job", fmt.Errorf("session %s", sessionID))
		}
		return nil, fmt.Errorf("scan import job: %w", err)
	}
	job.Flow = domain.Flow(flow)
	return &job, nil
}

func requireRow(result sql.Result, jobID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrEntityNotFound, "update import job", fmt.Errorf("job %s", jobID))
	}
	return nil
}
