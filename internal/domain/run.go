// Package domain contains the core domain models for the importer service.
package domain

import (
	"encoding/json"
	"time"
)

// RunStatus represents the state of an import run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// IsTerminal returns true once a run can no longer change status.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// LogLevel is the severity of a run log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one append-only log line attached to an import run.
// Order is preserved as appended.
type LogEntry struct {
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunTotals summarizes what an import run touched.
type RunTotals struct {
	Modules int `json:"modules"`
	Lessons int `json:"lessons"`
	Assets  int `json:"assets"`
}

// ImportRun is one lifecycle record for ingesting a dataset from one provider.
//
// Status transitions are monotonic: pending -> running -> {success, error}.
// Exactly one worker may perform the pending -> running transition for a given
// id; the run repository enforces this with a conditional update.
type ImportRun struct {
	ID         string          `db:"id"          json:"id"`
	ProviderID string          `db:"provider_id" json:"provider_id"`
	Status     RunStatus       `db:"status"      json:"status"`
	Input      json.RawMessage `db:"input"       json:"input"`
	Totals     RunTotals       `db:"-"           json:"totals"`
	Errors     []string        `db:"-"           json:"errors"`
	Logs       []LogEntry      `db:"-"           json:"logs"`
	StartedAt  *time.Time      `db:"started_at"  json:"started_at,omitempty"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}

// RunInput is the persisted input payload of a run.
type RunInput struct {
	ProviderID string `json:"provider_id"`
	InputPath  string `json:"input_path,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
