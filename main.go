package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cascadiawater/reachsync/cmd"
	"github.com/cascadiawater/reachsync/internal/batch"
	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/featurelayer"
	"github.com/cascadiawater/reachsync/internal/logging"
	"github.com/cascadiawater/reachsync/internal/source"
)

func main() {
	os.Exit(run())
}

// run carries the real main body so deferred cleanup survives the exit path.
func run() int {
	logging.Init()
	defer closeServiceLogs()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

// closeServiceLogs releases the per-service log files on shutdown.
func closeServiceLogs() {
	for _, closer := range []func() error{source.Close, featurelayer.Close, batch.Close} {
		if err := closer(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close service log: %v\n", err)
		}
	}
}
