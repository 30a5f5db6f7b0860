package batch

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/featurelayer"
	"github.com/cascadiawater/reachsync/internal/geo"
	"github.com/cascadiawater/reachsync/internal/logging"
	"github.com/cascadiawater/reachsync/internal/observability/metrics"
	"github.com/cascadiawater/reachsync/internal/reach"
	"github.com/cascadiawater/reachsync/internal/source"
)

// maxConcurrency bounds the worker pool against configuration mistakes.
const maxConcurrency = 256

// Package-level logger specific to the batch service
var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "batch.log")

	serviceLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "batch", slog.LevelDebug)
	if err != nil {
		log.Printf("Failed to initialize batch file logger at %s: %v. Service logging disabled.", logFilePath, err)
		serviceLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		closeLogger = func() error { return nil }
	}
}

// Close releases the service log file.
func Close() error {
	return closeLogger()
}

// Layer is the slice of the feature layer client the orchestrator needs.
type Layer interface {
	Name() string
	Schema(ctx context.Context) (*featurelayer.Schema, error)
	FindByReachID(ctx context.Context, reachID string) (featurelayer.FeatureRef, error)
	UpdateAttributes(ctx context.Context, ref featurelayer.FeatureRef, payload map[string]any, point *geo.Point) (*featurelayer.Outcome, error)
	QueryUniqueKeys(ctx context.Context, column, where string) ([]string, error)
}

// Orchestrator runs per-reach synchronization jobs against the line and
// centroid layers.
type Orchestrator struct {
	source    source.Source
	line      Layer
	centroid  Layer
	metrics   *metrics.SyncMetrics
	stageOnly bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithStageOnly narrows update payloads to the gauge stage columns.
func WithStageOnly(stageOnly bool) Option {
	return func(o *Orchestrator) { o.stageOnly = stageOnly }
}

// New creates an orchestrator over a reach source and the two target layers.
func New(src source.Source, line, centroid Layer, opts ...Option) *Orchestrator {
	o := &Orchestrator{source: src, line: line, centroid: centroid}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GaugedKeys enumerates every business key in the line layer with a gauge
// association, the default work set for a batch run.
func (o *Orchestrator) GaugedKeys(ctx context.Context) ([]string, error) {
	return o.line.QueryUniqueKeys(ctx, "reach_id", "gauge_id IS NOT NULL")
}

// AllKeys enumerates every business key in the line layer.
func (o *Orchestrator) AllKeys(ctx context.Context) ([]string, error) {
	return o.line.QueryUniqueKeys(ctx, "reach_id", "")
}

// Run synchronizes the given keys across a fixed-size worker pool. Duplicate
// keys are processed once. Per-job failures are isolated and classified into
// the report; only setup problems return an error. Cancelling the context
// stops scheduling new jobs while in-flight ones drain into the report.
func (o *Orchestrator) Run(ctx context.Context, reachIDs []string, concurrency int) (*Report, error) {
	if concurrency < 1 || concurrency > maxConcurrency {
		return nil, errors.Newf("concurrency %d outside valid range 1..%d", concurrency, maxConcurrency).
			Component("batch").
			Category(errors.CategoryValidation).
			Build()
	}

	keys := dedupe(reachIDs)
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	serviceLogger.Info("Batch run starting",
		"run_id", report.RunID, "keys", len(keys), "concurrency", concurrency, "stage_only", o.stageOnly)

	jobs := make(chan string)
	results := make(chan JobResult)

	var workers sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for id := range jobs {
				results <- o.syncOne(ctx, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range keys {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	for res := range results {
		if res.Err != nil {
			serviceLogger.Warn("Job failed",
				"run_id", report.RunID, "reach_id", res.ReachID,
				"outcome", res.Outcome, "stage", res.FailedStage.String(), "error", res.Err)
		}
		report.record(res)
		if o.metrics != nil {
			o.metrics.RecordJobOutcome(string(res.Outcome), res.Duration.Seconds())
		}
	}

	report.FinishedAt = time.Now()
	report.Cancelled = ctx.Err() != nil
	if o.metrics != nil {
		o.metrics.RecordBatch(len(keys), report.FinishedAt.Sub(report.StartedAt).Seconds())
	}

	serviceLogger.Info("Batch run finished", "run_id", report.RunID, "summary", report.Summary(), "cancelled", report.Cancelled)
	return report, nil
}

// syncOne walks one reach through the fixed stage order.
func (o *Orchestrator) syncOne(ctx context.Context, reachID string) JobResult {
	start := time.Now()
	res := JobResult{ReachID: reachID}
	defer func() { res.Duration = time.Since(start) }()

	fetchStart := time.Now()
	rec, err := o.source.Fetch(ctx, reachID)
	if o.metrics != nil {
		o.metrics.RecordSourceFetch(fetchStatus(err), time.Since(fetchStart).Seconds())
	}
	if err != nil {
		res.Outcome = OutcomeFetchFailed
		res.FailedStage = StageFetching
		res.Err = err
		return res
	}

	r, err := reach.FromRecord(rec)
	if err != nil {
		res.Outcome = OutcomeFetchFailed
		res.FailedStage = StageComputing
		res.Err = err
		return res
	}

	if done := o.updateLayer(ctx, o.line, r, StageUpdatingLine, &res); done {
		return res
	}
	if done := o.updateLayer(ctx, o.centroid, r, StageUpdatingCentroid, &res); done {
		return res
	}

	res.Outcome = OutcomeSucceeded
	serviceLogger.Debug("Reach synchronized", "reach_id", reachID, "duration", res.Duration)
	return res
}

// updateLayer reconciles one reach against one layer. It reports true when
// the job is finished, which for a failure means later stages never run.
func (o *Orchestrator) updateLayer(ctx context.Context, layer Layer, r *reach.Reach, stage Stage, res *JobResult) bool {
	layerStart := time.Now()
	status := "success"
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordLayerUpdate(layer.Name(), status, time.Since(layerStart).Seconds())
		}
	}()

	fail := func(outcome Outcome, err error, metricStatus string) bool {
		status = metricStatus
		res.Outcome = outcome
		res.FailedStage = stage
		res.Err = err
		return true
	}

	ref, err := layer.FindByReachID(ctx, r.ReachID)
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return fail(OutcomeNotFound, err, "not_found")
		case errors.IsCategory(err, errors.CategoryDuplicateKey):
			return fail(OutcomeDuplicateKey, err, "duplicate_key")
		default:
			return fail(OutcomeUpdateFailed, err, "failure")
		}
	}

	payload, err := o.payloadFor(ctx, layer, r)
	if err != nil {
		return fail(OutcomeUpdateFailed, err, "failure")
	}

	// The representative point rides along on full syncs; the layer includes
	// it only when it stores points. A stage-only refresh leaves stored
	// geometry alone.
	var point *geo.Point
	if !o.stageOnly {
		point = r.Centroid()
	}

	outcome, err := layer.UpdateAttributes(ctx, ref, payload, point)
	if err != nil {
		return fail(OutcomeUpdateFailed, err, "failure")
	}
	switch outcome.Status {
	case featurelayer.Success:
		return false
	case featurelayer.PartialFailure:
		return fail(OutcomeUpdateFailed, outcome.Err, "partial_failure")
	default:
		return fail(OutcomeUpdateFailed, outcome.Err, "failure")
	}
}

// payloadFor builds the update payload for one layer, narrowed to gauge
// columns in stage-only mode.
func (o *Orchestrator) payloadFor(ctx context.Context, layer Layer, r *reach.Reach) (map[string]any, error) {
	if o.stageOnly {
		return r.StagePayload(), nil
	}
	schema, err := layer.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return r.AttributePayload(schema.Writable), nil
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.IsSourceNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// dedupe drops repeated keys, keeping first-seen order.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
