// Package source fetches authoritative reach records from the upstream
// whitewater database and the hydrology tracing service.
package source

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/cascadiawater/reachsync/internal/logging"
)

// Source returns a populated record for one business key.
type Source interface {
	Fetch(ctx context.Context, reachID string) (Record, error)
}

// Package-level logger specific to the source service
var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "source.log")

	serviceLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "source", slog.LevelDebug)
	if err != nil {
		log.Printf("Failed to initialize source file logger at %s: %v. Service logging disabled.", logFilePath, err)
		serviceLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		closeLogger = func() error { return nil }
	}
}

// Close releases the service log file.
func Close() error {
	return closeLogger()
}
