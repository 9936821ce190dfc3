package database_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/drmixer/elevated-importer/internal/database"
	"github.com/drmixer/elevated-importer/internal/domain"
)

var runColumns = []string{
	"id", "provider_id", "status", "input", "totals", "errors", "logs",
	"started_at", "finished_at", "created_at",
}

func newRunRepo(t *testing.T) (*database.RunRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return database.NewRunRepository(db), mock
}

func pendingRunRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows(runColumns).AddRow(
		id, "openstax", "running",
		[]byte(`{"provider_id":"openstax"}`),
		[]byte(`{"modules":0,"lessons":0,"assets":0}`),
		"{}", []byte(`[]`),
		time.Now(), nil, time.Now(),
	)
}

func TestRunRepository_Claim(t *testing.T) {
	repo, mock := newRunRepo(t)
	ctx := context.Background()
	runID := "run-123"

	t.Run("successful claim returns running run", func(t *testing.T) {
		mock.ExpectQuery("UPDATE import_runs").
			WithArgs(runID).
			WillReturnRows(pendingRunRow(runID))

		run, err := repo.Claim(ctx, runID)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if run == nil {
			t.Fatal("Claim() returned nil run on success")
		}
		if run.Status != domain.RunStatusRunning {
			t.Errorf("claimed run status = %s, want running", run.Status)
		}
	})

	t.Run("lost race returns nil without error", func(t *testing.T) {
		mock.ExpectQuery("UPDATE import_runs").
			WithArgs(runID).
			WillReturnError(sql.ErrNoRows)

		run, err := repo.Claim(ctx, runID)
		if err != nil {
			t.Fatalf("Claim() error = %v, want nil on lost race", err)
		}
		if run != nil {
			t.Error("Claim() should return nil when another worker won")
		}
	})

	t.Run("database error propagates", func(t *testing.T) {
		mock.ExpectQuery("UPDATE import_runs").
			WithArgs(runID).
			WillReturnError(sql.ErrConnDone)

		if _, err := repo.Claim(ctx, runID); err == nil {
			t.Error("Claim() error = nil, want error")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_OldestPending(t *testing.T) {
	repo, mock := newRunRepo(t)
	ctx := context.Background()

	t.Run("returns oldest run", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM import_runs").
			WillReturnRows(pendingRunRow("run-1"))

		run, err := repo.OldestPending(ctx)
		if err != nil {
			t.Fatalf("OldestPending() error = %v", err)
		}
		if run == nil || run.ID != "run-1" {
			t.Errorf("OldestPending() = %+v, want run-1", run)
		}
	})

	t.Run("empty queue returns nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM import_runs").
			WillReturnError(sql.ErrNoRows)

		run, err := repo.OldestPending(ctx)
		if err != nil {
			t.Fatalf("OldestPending() error = %v", err)
		}
		if run != nil {
			t.Error("OldestPending() should return nil for an empty queue")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_CreateRun(t *testing.T) {
	repo, mock := newRunRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO import_runs").
		WithArgs(sqlmock.AnyArg(), "openstax", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(runColumns).AddRow(
			"run-9", "openstax", "pending",
			[]byte(`{"provider_id":"openstax","input_path":"/data/openstax.json"}`),
			[]byte(`{"modules":0,"lessons":0,"assets":0}`),
			"{}", []byte(`[]`),
			nil, nil, time.Now(),
		))

	run, err := repo.CreateRun(ctx, domain.RunInput{ProviderID: "openstax", InputPath: "/data/openstax.json"})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.Status != domain.RunStatusPending {
		t.Errorf("new run status = %s, want pending", run.Status)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRunRepository_AppendLog(t *testing.T) {
	repo, mock := newRunRepo(t)
	ctx := context.Background()
	runID := "run-5"

	existing := []domain.LogEntry{
		{Level: domain.LogLevelInfo, Message: "claimed", Timestamp: time.Now().UTC()},
	}
	raw, _ := json.Marshal(existing)

	mock.ExpectQuery("SELECT logs FROM import_runs").
		WithArgs(runID).
		WillReturnRows(sqlmock.NewRows([]string{"logs"}).AddRow(raw))
	mock.ExpectExec("UPDATE import_runs SET logs").
		WithArgs(runID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := domain.LogEntry{Level: domain.LogLevelWarn, Message: "url check failed", Timestamp: time.Now().UTC()}
	if err := repo.AppendLog(ctx, runID, entry); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRunRepository_Finalize(t *testing.T) {
	repo, mock := newRunRepo(t)
	ctx := context.Background()
	runID := "run-7"

	t.Run("success status persists", func(t *testing.T) {
		mock.ExpectExec("UPDATE import_runs").
			WithArgs(runID, "success", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		totals := domain.RunTotals{Modules: 1, Lessons: 2, Assets: 5}
		if err := repo.Finalize(ctx, runID, domain.RunStatusSuccess, totals, nil); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
	})

	t.Run("missing run returns ErrNotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE import_runs").
			WithArgs(runID, "error", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Finalize(ctx, runID, domain.RunStatusError, domain.RunTotals{}, []string{"boom"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Finalize() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("non-terminal status rejected", func(t *testing.T) {
		err := repo.Finalize(ctx, runID, domain.RunStatusRunning, domain.RunTotals{}, nil)
		if err == nil {
			t.Error("Finalize() accepted non-terminal status")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
