package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lfreitas-dev/hrbridge/internal/dispatch"
)

// StageResult summarizes one dispatch stage.
type StageResult struct {
	Stage    Stage                  `json:"stage"`
	Records  int                    `json:"records"`
	Sent     int                    `json:"sent"`
	Accepted int                    `json:"accepted,omitempty"`
	Skipped  int                    `json:"skipped,omitempty"`
	Failed   int                    `json:"failed,omitempty"`
	Failures []dispatch.ItemFailure `json:"failures,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration_ns"`
}

// Report is the persisted summary of one run.
type Report struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	SourceRecords int           `json:"source_records"`
	CacheHit      bool          `json:"cache_hit"`
	Stages        []StageResult `json:"stages"`
	Error         string        `json:"error,omitempty"`
}

// NewReport starts a report with a fresh run id.
func NewReport(startedAt time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
	}
}

func (r *Report) finish(at time.Time, err error) {
	r.FinishedAt = at
	if err != nil {
		r.Error = err.Error()
	}
}

// WriteFile persists the report as pretty JSON under dir, named by run id.
func (r *Report) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("sync-%s.json", r.RunID))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
