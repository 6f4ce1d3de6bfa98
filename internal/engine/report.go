package engine

import (
	"context"
	"time"

	"github.com/IshaanNene/clearancesync/internal/fetcher"
	"github.com/IshaanNene/clearancesync/internal/pipeline"
	"github.com/IshaanNene/clearancesync/internal/types"
)

// AttemptReport describes one attempt of a run.
type AttemptReport struct {
	Attempt  int           `json:"attempt"         bson:"attempt"`
	Duration time.Duration `json:"duration"        bson:"duration"`
	Error    string        `json:"error,omitempty" bson:"error,omitempty"`
}

// ExtractionSummary holds the counters of the last extraction pass.
type ExtractionSummary struct {
	Elements   int `json:"elements"   bson:"elements"`
	Listings   int `json:"listings"   bson:"listings"`
	Incomplete int `json:"incomplete" bson:"incomplete"`
	Duplicates int `json:"duplicates" bson:"duplicates"`
	Failed     int `json:"failed"     bson:"failed"`
}

// RunReport is the structured outcome of one RunSync call. Sinks consume it
// instead of the pipeline logging progress as it goes.
type RunReport struct {
	RunID      string    `json:"run_id"      bson:"run_id"`
	Target     string    `json:"target"      bson:"target"`
	StartedAt  time.Time `json:"started_at"  bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`

	Attempts   []AttemptReport         `json:"attempts"   bson:"attempts"`
	Scroll     fetcher.ScrollStats     `json:"scroll"     bson:"scroll"`
	Extraction ExtractionSummary       `json:"extraction" bson:"extraction"`
	Normalize  pipeline.NormalizeStats `json:"normalize"  bson:"normalize"`
	Result     types.SyncResult        `json:"result"     bson:"result"`

	SnapshotPath string `json:"snapshot_path,omitempty" bson:"snapshot_path,omitempty"`
	Error        string `json:"error,omitempty"         bson:"error,omitempty"`
}

// Succeeded reports whether the run ended without error.
func (r *RunReport) Succeeded() bool { return r.Error == "" }

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Recorder consumes finished run reports.
type Recorder interface {
	Record(ctx context.Context, report *RunReport) error
}
