// Package summary models the machine-readable record of one run.
package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// CacheStatus is the per-task cache outcome.
type CacheStatus string

const (
	CacheLocal    CacheStatus = "local"
	CacheRemote   CacheStatus = "remote"
	CacheMiss     CacheStatus = "miss"
	CacheDisabled CacheStatus = "disabled"
)

// TaskSummary is one task node's outcome within a run.
type TaskSummary struct {
	// AttemptID uniquely identifies this execution attempt.
	AttemptID string `json:"attemptId"`

	// ID is the package#task node identifier.
	ID string `json:"id"`

	Package string `json:"package"`
	Task    string `json:"task"`
	Hash    string `json:"hash"`
	Command string `json:"command"`

	// Status: success, failed, skipped, canceled.
	Status string `json:"status"`

	CacheStatus CacheStatus `json:"cacheStatus"`

	// Duration is the wall time of this attempt (restore time on hits).
	DurationMS int64 `json:"durationMs"`

	// TimeSavedMS is the original execution duration replayed from the
	// cache entry on hits.
	TimeSavedMS int64 `json:"timeSavedMs,omitempty"`

	ExitCode int    `json:"exitCode"`
	LogFile  string `json:"logFile,omitempty"`
	Error    string `json:"error,omitempty"`

	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

// RunSummary is the full record of one run, written regardless of exit
// status and always reflecting true per-node outcomes.
type RunSummary struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"-"`

	WallMS int64 `json:"wallMs"`

	DryRun bool `json:"dryRun,omitempty"`

	Tasks []TaskSummary `json:"tasks"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cached    int `json:"cached"`
	Skipped   int `json:"skipped"`

	// TotalTimeSavedMS sums cache-hit time savings.
	TotalTimeSavedMS int64 `json:"totalTimeSavedMs"`

	Metrics map[string]int64 `json:"metrics,omitempty"`
}

// NewRunSummary starts a summary with a fresh sortable run ID.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}
}

// NewAttemptID returns a unique ID for one task attempt.
func NewAttemptID() string {
	return uuid.NewString()
}

// Add appends a task record and updates the aggregate counters.
func (s *RunSummary) Add(t TaskSummary) {
	s.Tasks = append(s.Tasks, t)
	switch t.Status {
	case "success":
		s.Succeeded++
	case "failed":
		s.Failed++
	case "skipped", "canceled":
		s.Skipped++
	}
	if t.CacheStatus == CacheLocal || t.CacheStatus == CacheRemote {
		s.Cached++
	}
	s.TotalTimeSavedMS += t.TimeSavedMS
}

// Finish seals the summary with the total wall time.
func (s *RunSummary) Finish(wall time.Duration) {
	s.Duration = wall
	s.WallMS = wall.Milliseconds()
}

// Ok reports whether every required task succeeded.
func (s *RunSummary) Ok() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// Write persists the summary under runsDir as <runID>.json.
func (s *RunSummary) Write(runsDir string) (string, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(runsDir, s.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
