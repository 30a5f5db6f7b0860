package source

import (
	"context"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/errors"
)

// TracedSource combines the detail client with the hydrology tracer so
// records carry line geometry when both access points are known. Tracing
// failures are not fatal; the record simply goes out without geometry, the
// same as a reach whose trace failed upstream.
type TracedSource struct {
	client *Client
	tracer *Tracer
}

// NewTracedSource builds the production Source from the source settings.
func NewTracedSource(settings *conf.SourceSettings) *TracedSource {
	return &TracedSource{
		client: NewClient(settings),
		tracer: NewTracer(settings),
	}
}

// Fetch implements Source.
func (s *TracedSource) Fetch(ctx context.Context, reachID string) (Record, error) {
	rec, err := s.client.Fetch(ctx, reachID)
	if err != nil {
		return nil, err
	}

	putin := rec.Point(KeyPutin)
	takeout := rec.Point(KeyTakeout)
	if putin == nil || takeout == nil {
		serviceLogger.Debug("Skipping trace, access points incomplete", "reach_id", reachID)
		return rec, nil
	}

	geom, err := s.tracer.Trace(ctx, *putin, *takeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.IsNoGeometry(err) {
			serviceLogger.Info("Reach could not be traced", "reach_id", reachID, "error", err)
			return rec, nil
		}
		return nil, err
	}

	rec[KeyGeometry] = geom
	return rec, nil
}
