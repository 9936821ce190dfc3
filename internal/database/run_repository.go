package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/drmixer/elevated-importer/internal/domain"
)

// runSelectList is the column list for SELECT/RETURNING on import_runs
// (single source for schema changes).
const runSelectList = `id, provider_id, status, input, totals, errors, logs,
			started_at, finished_at, created_at`

// RunRepository manages import run records in PostgreSQL.
//
// The run table is the sole coordination point between worker processes:
// claiming happens through a conditional update, and after a successful claim
// the claiming worker mutates the row freely.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// runRow is the raw scan target; jsonb and array columns are decoded into
// domain values by toDomain.
type runRow struct {
	ID         string          `db:"id"`
	ProviderID string          `db:"provider_id"`
	Status     string          `db:"status"`
	Input      json.RawMessage `db:"input"`
	Totals     []byte          `db:"totals"`
	Errors     pq.StringArray  `db:"errors"`
	Logs       []byte          `db:"logs"`
	StartedAt  *time.Time      `db:"started_at"`
	FinishedAt *time.Time      `db:"finished_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r runRow) toDomain() (*domain.ImportRun, error) {
	run := &domain.ImportRun{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		Status:     domain.RunStatus(r.Status),
		Input:      r.Input,
		Errors:     []string(r.Errors),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.Totals) > 0 {
		if err := json.Unmarshal(r.Totals, &run.Totals); err != nil {
			return nil, fmt.Errorf("decode run totals: %w", err)
		}
	}
	if len(r.Logs) > 0 {
		if err := json.Unmarshal(r.Logs, &run.Logs); err != nil {
			return nil, fmt.Errorf("decode run logs: %w", err)
		}
	}
	return run, nil
}

// CreateRun inserts a new pending run for the given provider.
func (r *RunRepository) CreateRun(ctx context.Context, input domain.RunInput) (*domain.ImportRun, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode run input: %w", err)
	}

	query := `
		INSERT INTO import_runs (id, provider_id, status, input, totals, errors, logs, created_at)
		VALUES ($1, $2, 'pending', $3, '{"modules":0,"lessons":0,"assets":0}', '{}', '[]', NOW())
		RETURNING ` + runSelectList

	var row runRow
	if getErr := r.db.GetContext(ctx, &row, query, uuid.NewString(), input.ProviderID, payload); getErr != nil {
		return nil, fmt.Errorf("create run: %w", getErr)
	}
	return row.toDomain()
}

// GetRun fetches one run by id.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.ImportRun, error) {
	var row runRow
	query := `SELECT ` + runSelectList + ` FROM import_runs WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return row.toDomain()
}

// ListRuns returns runs newest-first, optionally filtered by status.
func (r *RunRepository) ListRuns(ctx context.Context, status string, limit int) ([]*domain.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runSelectList + ` FROM import_runs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]*domain.ImportRun, 0, len(rows))
	for _, row := range rows {
		run, convErr := row.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// OldestPending returns the oldest pending run, or nil when the queue is
// empty.
func (r *RunRepository) OldestPending(ctx context.Context) (*domain.ImportRun, error) {
	var row runRow
	query := `SELECT ` + runSelectList + `
		FROM import_runs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select oldest pending: %w", err)
	}
	return row.toDomain()
}

// Claim attempts the pending -> running transition for one run. The update is
// conditional on the row still being pending, so under concurrent workers at
// most one claim succeeds; the losers see zero affected rows and get nil.
func (r *RunRepository) Claim(ctx context.Context, id string) (*domain.ImportRun, error) {
	query := `
		UPDATE import_runs
		SET status = 'running', started_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + runSelectList

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Another worker won the race; nothing claimed this tick.
			return nil, nil
		}
		return nil, fmt.Errorf("claim run: %w", err)
	}
	return row.toDomain()
}

// AppendLog appends one entry to a run's log array via read-append-write.
// Acceptable because only the claiming worker appends to a run post-claim.
func (r *RunRepository) AppendLog(ctx context.Context, id string, entry domain.LogEntry) error {
	var raw []byte
	if err := r.db.GetContext(ctx, &raw, `SELECT logs FROM import_runs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("read run logs: %w", err)
	}

	var logs []domain.LogEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &logs); err != nil {
			return fmt.Errorf("decode run logs: %w", err)
		}
	}
	logs = append(logs, entry)

	encoded, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encode run logs: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE import_runs SET logs = $2 WHERE id = $1`, id, encoded); err != nil {
		return fmt.Errorf("write run logs: %w", err)
	}
	return nil
}

// Finalize records a run's terminal status, totals, errors and finish time.
func (r *RunRepository) Finalize(ctx context.Context, id string, status domain.RunStatus, totals domain.RunTotals, runErrors []string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize run: status %q is not terminal", status)
	}

	encoded, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("encode run totals: %w", err)
	}

	query := `
		UPDATE import_runs
		SET status = $2, totals = $3, errors = $4, finished_at = NOW()
		WHERE id = $1`
	result, execErr := r.db.ExecContext(ctx, query, id, string(status), encoded, pq.Array(runErrors))
	if execErr != nil {
		return fmt.Errorf("finalize run: %w", execErr)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
