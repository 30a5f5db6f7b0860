package batch

import (
	"fmt"
	"time"
)

// Totals is the report's summary count table. Every scheduled job lands in
// exactly one bucket.
type Totals struct {
	Succeeded    int
	NotFound     int
	DuplicateKey int
	FetchFailed  int
	UpdateFailed int
}

// Report aggregates a batch run. It is always produced, even when every job
// failed or the run was cancelled part way through.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool

	Totals  Totals
	Results []JobResult
}

// record folds one job result into the report.
func (r *Report) record(res JobResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeSucceeded:
		r.Totals.Succeeded++
	case OutcomeNotFound:
		r.Totals.NotFound++
	case OutcomeDuplicateKey:
		r.Totals.DuplicateKey++
	case OutcomeFetchFailed:
		r.Totals.FetchFailed++
	case OutcomeUpdateFailed:
		r.Totals.UpdateFailed++
	}
}

// Scheduled returns the number of jobs that actually ran.
func (r *Report) Scheduled() int {
	return len(r.Results)
}

// Failures returns the detailed failure log, every job that did not succeed.
func (r *Report) Failures() []JobResult {
	var failed []JobResult
	for _, res := range r.Results {
		if res.Outcome != OutcomeSucceeded {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary renders the count table as a single line for logs and notifications.
func (r *Report) Summary() string {
	return fmt.Sprintf("run %s: %d scheduled, %d succeeded, %d not found, %d duplicate key, %d fetch failed, %d update failed (%s)",
		r.RunID, r.Scheduled(), r.Totals.Succeeded, r.Totals.NotFound, r.Totals.DuplicateKey,
		r.Totals.FetchFailed, r.Totals.UpdateFailed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
