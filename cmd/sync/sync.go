package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cascadiawater/reachsync/internal/batch"
	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/datastore"
	"github.com/cascadiawater/reachsync/internal/featurelayer"
	"github.com/cascadiawater/reachsync/internal/notify"
	"github.com/cascadiawater/reachsync/internal/observability/metrics"
	"github.com/cascadiawater/reachsync/internal/source"
)

// allReaches selects every stored reach instead of only gauged ones
var allReaches bool

// Command creates the sync command for batch reach synchronization.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [reach_id ...]",
		Short: "Synchronize reach attributes into the hosted feature layers",
		Long: "Fetch each reach from the whitewater database, derive its attributes " +
			"and update the matching line and centroid features. Without arguments " +
			"the gauged reaches stored in the line layer are synchronized.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), settings, args)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the sync command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVarP(&settings.Sync.Concurrency, "concurrency", "j", viper.GetInt("sync.concurrency"), "Worker pool size for the batch run")
	cmd.Flags().BoolVar(&settings.Sync.StageOnly, "stage-only", viper.GetBool("sync.stageonly"), "Narrow update payloads to the gauge stage fields")
	cmd.Flags().BoolVar(&allReaches, "all", false, "Synchronize every stored reach, not only gauged ones")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

func runSync(ctx context.Context, settings *conf.Settings, reachIDs []string) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	src := source.NewTracedSource(&settings.Source)

	line, err := featurelayer.New(ctx, "line", settings.Target.Line.URL, &settings.Target)
	if err != nil {
		return fmt.Errorf("failed to open line layer: %w", err)
	}
	centroid, err := featurelayer.New(ctx, "centroid", settings.Target.Centroid.URL, &settings.Target)
	if err != nil {
		return fmt.Errorf("failed to open centroid layer: %w", err)
	}

	registry := prometheus.NewRegistry()
	syncMetrics, err := metrics.NewSyncMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	orchestrator := batch.New(src, line, centroid,
		batch.WithMetrics(syncMetrics),
		batch.WithStageOnly(settings.Sync.StageOnly))

	keys := reachIDs
	if len(keys) == 0 {
		if allReaches {
			keys, err = orchestrator.AllKeys(ctx)
		} else {
			keys, err = orchestrator.GaugedKeys(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to enumerate stored reaches: %w", err)
		}
	}

	report, err := orchestrator.Run(ctx, keys, settings.Sync.Concurrency)
	if err != nil {
		return err
	}

	printReport(report)
	persistReport(settings, report)
	notifyReport(settings, report)

	return nil
}

func printReport(report *batch.Report) {
	fmt.Println(report.Summary())

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}

	fmt.Println("\nFailures:")
	for _, f := range failures {
		if f.Err != nil {
			fmt.Printf("  %s: %s at %s: %v\n", f.ReachID, f.Outcome, f.FailedStage, f.Err)
		} else {
			fmt.Printf("  %s: %s at %s\n", f.ReachID, f.Outcome, f.FailedStage)
		}
	}
}

// persistReport stores the run in the history database when enabled. Storage
// failures do not fail the run, the sync itself already happened.
func persistReport(settings *conf.Settings, report *batch.Report) {
	if !settings.Output.SQLite.Enabled {
		return
	}

	store, err := datastore.Open(settings.Output.SQLite.Path)
	if err != nil {
		fmt.Printf("⚠️ failed to open run history database: %v\n", err)
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("⚠️ failed to close run history database: %v\n", err)
		}
	}()

	if err := store.SaveReport(report, settings.Sync.StageOnly); err != nil {
		fmt.Printf("⚠️ failed to store run report: %v\n", err)
	}
}

func notifyReport(settings *conf.Settings, report *batch.Report) {
	notifier, err := notify.New(settings.Main.Name, settings.Sync.NotifyURLs)
	if err != nil {
		fmt.Printf("⚠️ failed to set up notifications: %v\n", err)
		return
	}
	if !notifier.Enabled() {
		return
	}

	if err := notifier.SendReport(report); err != nil {
		fmt.Printf("⚠️ failed to send notification: %v\n", err)
	}
}
