package featurelayer

import (
	"context"
	"net/url"
	"sort"

	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/geo"
)

// Status classifies one attribute update against a stored feature.
type Status int

const (
	// Success means every attribute write was accepted.
	Success Status = iota
	// PartialFailure means the target accepted the update but some payload
	// columns were not writable and had to be withheld.
	PartialFailure
	// Failure means the target rejected the write entirely.
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case PartialFailure:
		return "partial-failure"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the per-feature result of UpdateAttributes. Err retains the raw
// target error on Failure; RejectedColumns lists withheld columns on
// PartialFailure.
type Outcome struct {
	Status          Status
	RejectedColumns []string
	Err             error
}

// UpdateAttributes writes the payload's attribute columns onto the referenced
// feature. Columns outside the writable schema are withheld and reported
// rather than sent. When the layer stores points and a representative point
// is supplied, the edit record carries it as the geometry member; stored line
// geometry is never touched. Updates are idempotent, the same payload applied
// twice leaves the same stored state.
func (l *Layer) UpdateAttributes(ctx context.Context, ref FeatureRef, payload map[string]any, point *geo.Point) (*Outcome, error) {
	schema, err := l.Schema(ctx)
	if err != nil {
		return nil, err
	}

	attrs := map[string]any{objectIDField: ref.ObjectID}
	var rejected []string
	for col, val := range payload {
		if !schema.Writable[col] {
			rejected = append(rejected, col)
			continue
		}
		attrs[col] = encodeAttribute(val)
	}
	sort.Strings(rejected)

	if len(attrs) == 1 {
		// nothing writable survived; sending an empty edit would report a
		// hollow success
		outcome := &Outcome{
			Status:          Failure,
			RejectedColumns: rejected,
			Err: errors.Newf("no writable columns in payload for %s layer", l.name).
				Component("featurelayer").
				Category(errors.CategoryWriteRejected).
				Context("layer", l.name).
				Build(),
		}
		return outcome, nil
	}

	record := map[string]any{"attributes": attrs}
	if point != nil && schema.GeometryType == pointGeometryType {
		record["geometry"] = map[string]any{
			"x":                point.Lon,
			"y":                point.Lat,
			"spatialReference": map[string]any{"wkid": wgs84WKID},
		}
	}

	updates := mustJSON([]map[string]any{record})
	root, err := l.post(ctx, "/applyEdits", url.Values{"updates": {updates}})
	if err != nil {
		return &Outcome{Status: Failure, RejectedColumns: rejected, Err: err}, nil
	}

	results, err := root.GetObjectArray("updateResults")
	if err != nil || len(results) == 0 {
		outcome := &Outcome{
			Status:          Failure,
			RejectedColumns: rejected,
			Err: errors.Newf("%s layer returned no update results", l.name).
				Component("featurelayer").
				Category(errors.CategoryWriteRejected).
				Context("object_id", ref.ObjectID).
				Build(),
		}
		return outcome, nil
	}

	if success, _ := results[0].GetBoolean("success"); !success {
		code, _ := results[0].GetInt64("error", "code")
		description, _ := results[0].GetString("error", "description")
		outcome := &Outcome{
			Status:          Failure,
			RejectedColumns: rejected,
			Err: errors.Newf("%s layer rejected update of object %d: %d %s", l.name, ref.ObjectID, code, description).
				Component("featurelayer").
				Category(errors.CategoryWriteRejected).
				Context("object_id", ref.ObjectID).
				Context("target_code", code).
				Build(),
		}
		return outcome, nil
	}

	if len(rejected) > 0 {
		serviceLogger.Warn("Update accepted with withheld columns",
			"layer", l.name, "object_id", ref.ObjectID, "rejected", rejected)
		return &Outcome{
			Status:          PartialFailure,
			RejectedColumns: rejected,
			Err: errors.Newf("%s layer accepted update but %d columns were not writable", l.name, len(rejected)).
				Component("featurelayer").
				Category(errors.CategoryPartialWrite).
				Context("object_id", ref.ObjectID).
				Context("rejected_columns", len(rejected)).
				Build(),
		}, nil
	}

	serviceLogger.Debug("Attribute update applied", "layer", l.name, "object_id", ref.ObjectID, "columns", len(attrs)-1)
	return &Outcome{Status: Success}, nil
}
