// Package snapshot persists run reports keyed by project so later runs
// can diff against the most recent baseline. Writes are serialized per
// project; history entries from concurrent runs on the same project
// never interleave.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/ruizrica/driftgate/internal/gate"
)

// Errors for snapshot operations.
var (
	// ErrNoBaseline indicates the project has no prior snapshot.
	ErrNoBaseline = errors.New("no baseline snapshot")

	// ErrInvalidProjectKey indicates an unsafe or empty project key.
	ErrInvalidProjectKey = errors.New("invalid project key")

	// ErrCorruptSnapshot indicates a snapshot file failed to decode.
	ErrCorruptSnapshot = errors.New("snapshot corrupted")
)

// Overall mirrors the reduced verdict of a persisted run.
type Overall struct {
	Passed  bool        `json:"passed"`
	Status  gate.Status `json:"status"`
	Score   int         `json:"score"`
	Summary string      `json:"summary"`
}

// Snapshot is a persisted run report. Read-only after write.
type Snapshot struct {
	ID          string                  `json:"id"`
	ProjectKey  string                  `json:"project_key"`
	PolicyID    string                  `json:"policy_id"`
	Overall     Overall                 `json:"overall"`
	GateResults map[gate.ID]gate.Result `json:"gate_results"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Baseline converts the snapshot to the slice gates are allowed to see.
func (s *Snapshot) Baseline() *gate.Baseline {
	scores := make(map[gate.ID]int, len(s.GateResults))
	for id, r := range s.GateResults {
		scores[id] = r.Score
	}
	return &gate.Baseline{
		SnapshotID:    s.ID,
		PolicyID:      s.PolicyID,
		OverallPassed: s.Overall.Passed,
		OverallScore:  s.Overall.Score,
		GateScores:    scores,
		CreatedAt:     s.CreatedAt,
	}
}

// Store persists and recalls run snapshots per project.
type Store interface {
	// Save persists a snapshot for the project and returns it with its
	// assigned id and timestamp.
	Save(ctx context.Context, snap *Snapshot) (*Snapshot, error)

	// Latest returns the most recent snapshot for the project, or
	// ErrNoBaseline when none exists.
	Latest(ctx context.Context, projectKey string) (*Snapshot, error)

	// List returns up to limit snapshots for the project, newest first.
	List(ctx context.Context, projectKey string, limit int) ([]*Snapshot, error)
}
