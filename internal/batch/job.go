// Package batch schedules per-reach synchronization jobs across a fixed-size
// worker pool and aggregates their outcomes into a run report.
package batch

import "time"

// Stage is a job's position in its fixed processing order.
type Stage int

const (
	StagePending Stage = iota
	StageFetching
	StageComputing
	StageUpdatingLine
	StageUpdatingCentroid
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageFetching:
		return "fetching"
	case StageComputing:
		return "computing"
	case StageUpdatingLine:
		return "updating-line"
	case StageUpdatingCentroid:
		return "updating-centroid"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome classifies a finished job for the report's count table.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeDuplicateKey Outcome = "duplicate_key"
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeUpdateFailed Outcome = "update_failed"
)

// JobResult is the terminal record of one per-reach job. FailedStage is only
// meaningful when Outcome is not OutcomeSucceeded.
type JobResult struct {
	ReachID     string
	Outcome     Outcome
	FailedStage Stage
	Err         error
	Duration    time.Duration
}
