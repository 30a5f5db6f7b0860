package report

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/datastore"
)

var (
	runID   string
	reachID string
	limit   int
)

// Command creates the report command for inspecting stored batch runs.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored batch run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().StringVar(&runID, "run", "", "Show per-reach results for one run")
	cmd.Flags().StringVar(&reachID, "reach", "", "Show failure history for one reach")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

func runReport(settings *conf.Settings) error {
	if !settings.Output.SQLite.Enabled {
		return fmt.Errorf("run history database is disabled, enable output.sqlite in the configuration")
	}

	store, err := datastore.Open(settings.Output.SQLite.Path)
	if err != nil {
		return fmt.Errorf("failed to open run history database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("⚠️ failed to close run history database: %v\n", err)
		}
	}()

	switch {
	case runID != "":
		return showRun(store)
	case reachID != "":
		return showFailureHistory(store)
	default:
		return listRuns(store)
	}
}

func listRuns(store *datastore.Store) error {
	runs, err := store.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), describeRun(&run))
	}
	return nil
}

func showRun(store *datastore.Store) error {
	run, err := store.Run(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  %s\n", describeRun(run))

	for _, res := range run.Results {
		if res.Outcome == "succeeded" {
			fmt.Printf("  %s: %s (%dms)\n", res.ReachID, res.Outcome, res.DurationMs)
			continue
		}
		fmt.Printf("  %s: %s at %s: %s\n", res.ReachID, res.Outcome, res.FailedStage, res.Error)
	}
	return nil
}

func showFailureHistory(store *datastore.Store) error {
	results, err := store.FailureHistory(reachID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("No stored failures for reach %s.\n", reachID)
		return nil
	}

	for _, res := range results {
		fmt.Printf("%s  %s at %s: %s\n", res.RunID, res.Outcome, res.FailedStage, res.Error)
	}
	return nil
}

func describeRun(run *datastore.Run) string {
	s := fmt.Sprintf("scheduled %d, succeeded %d, not found %d, duplicate key %d, fetch failed %d, update failed %d",
		run.Scheduled, run.Succeeded, run.NotFound, run.DuplicateKey, run.FetchFailed, run.UpdateFailed)
	if run.StageOnly {
		s += ", stage only"
	}
	if run.Cancelled {
		s += ", cancelled"
	}
	return s
}
