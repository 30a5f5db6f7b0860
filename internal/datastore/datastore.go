// Package datastore persists batch run history to a local SQLite database,
// giving every run a durable count table and detailed failure log.
package datastore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cascadiawater/reachsync/internal/batch"
	"github.com/cascadiawater/reachsync/internal/conf"
)

// Run is one stored batch run.
type Run struct {
	ID         string `gorm:"primaryKey"`
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	StageOnly  bool

	Scheduled    int
	Succeeded    int
	NotFound     int
	DuplicateKey int
	FetchFailed  int
	UpdateFailed int

	Results []Result `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// Result is one stored per-reach job outcome.
type Result struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"index;not null"`
	ReachID     string `gorm:"index:idx_results_reach_id"`
	Outcome     string `gorm:"index:idx_results_outcome"`
	FailedStage string
	Error       string
	DurationMs  int64
}

// Store wraps the run-history database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the SQLite database at path and migrates its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &Result{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// createGormLogger configures and returns a new GORM logger instance. SQL
// statement logging follows the global debug setting.
func createGormLogger() logger.Interface {
	level := logger.Warn
	if settings := conf.GetSettings(); settings != nil && settings.Debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      level,
		},
	)
}

// SaveReport stores a finished batch report with its per-key outcomes.
func (s *Store) SaveReport(report *batch.Report, stageOnly bool) error {
	run := Run{
		ID:           report.RunID,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		Cancelled:    report.Cancelled,
		StageOnly:    stageOnly,
		Scheduled:    report.Scheduled(),
		Succeeded:    report.Totals.Succeeded,
		NotFound:     report.Totals.NotFound,
		DuplicateKey: report.Totals.DuplicateKey,
		FetchFailed:  report.Totals.FetchFailed,
		UpdateFailed: report.Totals.UpdateFailed,
	}

	for _, res := range report.Results {
		stored := Result{
			ReachID:    res.ReachID,
			Outcome:    string(res.Outcome),
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Outcome != batch.OutcomeSucceeded {
			stored.FailedStage = res.FailedStage.String()
			if res.Err != nil {
				stored.Error = res.Err.Error()
			}
		}
		run.Results = append(run.Results, stored)
	}

	if err := s.db.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first, without their results.
func (s *Store) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Run returns one stored run with its full per-reach results.
func (s *Store) Run(runID string) (*Run, error) {
	var run Run
	err := s.db.Preload("Results").First(&run, "id = ?", runID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// FailureHistory returns every stored failure for one reach, newest run first.
func (s *Store) FailureHistory(reachID string) ([]Result, error) {
	var results []Result
	err := s.db.
		Joins("JOIN runs ON runs.id = results.run_id").
		Where("results.reach_id = ? AND results.outcome != ?", reachID, string(batch.OutcomeSucceeded)).
		Order("runs.started_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load failure history for reach %s: %w", reachID, err)
	}
	return results, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
