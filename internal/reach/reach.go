// Package reach holds the whitewater reach entity and the single coercion
// boundary from loosely typed source records into typed fields.
package reach

import (
	"regexp"
	"time"

	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/geo"
	"github.com/cascadiawater/reachsync/internal/source"
)

// Attribute column names in the target feature layers.
const (
	ColReachID            = "reach_id"
	ColReachName          = "reach_name"
	ColRiverName          = "river_name"
	ColRiverNameAlternate = "river_name_alternate"
	ColDifficulty         = "difficulty"
	ColDifficultyMinimum  = "difficulty_minimum"
	ColDifficultyMaximum  = "difficulty_maximum"
	ColDifficultyOutlier  = "difficulty_outlier"
	ColDifficultyFilter   = "difficulty_filter"
	ColAbstract           = "abstract"
	ColDescription        = "description"
	ColLength             = "length"
	ColGaugeID            = "gauge_id"
	ColGaugeUnits         = "gauge_units"
	ColGaugeObservation   = "gauge_observation"
	ColGaugeStage         = "gauge_stage"
	ColSourceUpdated      = "source_updated"
)

// Reach is one whitewater reach as synchronized into the target layers.
// Instances are built fresh for each synchronization cycle and not mutated
// after being handed to the orchestrator.
type Reach struct {
	ReachID            string // business key, never regenerated
	Name               string
	RiverName          string
	RiverNameAlternate string
	Difficulty         string
	DifficultyMinimum  string
	DifficultyMaximum  string
	DifficultyOutlier  string
	Abstract           string
	Description        string

	Putin    *geo.Point
	Takeout  *geo.Point
	Geometry geo.Geometry

	// Length is the reach length in kilometers, recomputed from Geometry.
	// nil means undefined, which is distinct from a zero length.
	Length *float64

	GaugeID          string
	GaugeUnits       string
	GaugeObservation *float64
	GaugeStage       string

	SourceUpdated time.Time
}

// FromRecord coerces a loosely typed source record into a Reach. Absent keys
// become zero values, not errors. Length is derived from the record geometry
// immediately so downstream consumers never see a stale value.
func FromRecord(rec source.Record) (*Reach, error) {
	id := rec.String(source.KeyReachID)
	if id == "" {
		return nil, errors.Newf("source record has no reach id").
			Component("reach").
			Category(errors.CategoryValidation).
			Build()
	}

	r := &Reach{
		ReachID:            id,
		Name:               rec.String(source.KeyName),
		RiverName:          rec.String(source.KeyRiverName),
		RiverNameAlternate: rec.String(source.KeyRiverNameAlternate),
		Abstract:           rec.String(source.KeyAbstract),
		Description:        rec.String(source.KeyDescription),
		Putin:              rec.Point(source.KeyPutin),
		Takeout:            rec.Point(source.KeyTakeout),
		Geometry:           rec.Geometry(),
		GaugeID:            rec.String(source.KeyGaugeID),
		GaugeUnits:         rec.String(source.KeyGaugeUnits),
		GaugeStage:         rec.String(source.KeyGaugeStage),
	}

	if v, ok := rec.Float(source.KeyGaugeObservation); ok {
		r.GaugeObservation = &v
	}
	if t, ok := rec.Time(source.KeySourceUpdated); ok {
		r.SourceUpdated = t
	}

	if d := rec.String(source.KeyDifficulty); d != "" {
		r.Difficulty = d
		r.DifficultyMinimum, r.DifficultyMaximum, r.DifficultyOutlier = ParseDifficulty(d)
	}

	if !r.Geometry.IsEmpty() {
		km, err := geo.Length(r.Geometry)
		if err != nil {
			return nil, err
		}
		r.Length = &km
	}

	return r, nil
}

// difficultyRe splits a combined rating like "IV-V(V+)" into its minimum,
// maximum and outlier components. A trailing modifier binds tighter than the
// range dash, so "II-" is a maximum of II-, not a dangling range.
var difficultyRe = regexp.MustCompile(
	`^(?:((?:VI|IV|V|III|II|I|5\.\d)[+-]?)-)?((?:VI|IV|V|III|II|I|5\.\d)[+-]?)(?:\(((?:VI|IV|V|III|II|I|5\.\d)[+-]?)\))?`)

// ParseDifficulty splits a combined whitewater rating string into minimum,
// maximum and outlier ratings. Components that are not present come back empty.
func ParseDifficulty(combined string) (minimum, maximum, outlier string) {
	m := difficultyRe.FindStringSubmatch(combined)
	if m == nil {
		return "", "", ""
	}
	return m[1], m[2], m[3]
}

// difficultyFilterLookup projects a class rating onto a sortable numeric
// scale. Values match the convention already published in the target layers.
var difficultyFilterLookup = map[string]float64{
	"I":    1.1,
	"I+":   1.2,
	"II-":  2.0,
	"II":   2.1,
	"II+":  2.2,
	"III-": 3.0,
	"III":  3.1,
	"III+": 3.2,
	"IV-":  4.0,
	"IV":   4.1,
	"IV+":  4.2,
	"V-":   5.0,
	"V":    5.1,
	"V+":   5.3,
}

// DifficultyFilter returns the numeric projection of the maximum difficulty.
// The second return is false when the maximum has no entry in the scale.
func (r *Reach) DifficultyFilter() (float64, bool) {
	v, ok := difficultyFilterLookup[r.DifficultyMaximum]
	return v, ok
}

// Centroid returns the representative point for the reach. The convention is
// the midpoint of putin and takeout, falling back to whichever access exists,
// and nil when neither does.
func (r *Reach) Centroid() *geo.Point {
	switch {
	case r.Putin != nil && r.Takeout != nil:
		pt := geo.Midpoint(*r.Putin, *r.Takeout)
		return &pt
	case r.Putin != nil:
		pt := *r.Putin
		return &pt
	case r.Takeout != nil:
		pt := *r.Takeout
		return &pt
	default:
		return nil
	}
}

// attributes returns every attribute column the entity can publish. Geometry
// is never part of the attribute set. An undefined length is omitted rather
// than written as zero.
func (r *Reach) attributes() map[string]any {
	attrs := map[string]any{
		ColReachID:            r.ReachID,
		ColReachName:          r.Name,
		ColRiverName:          r.RiverName,
		ColRiverNameAlternate: r.RiverNameAlternate,
		ColDifficulty:         r.Difficulty,
		ColDifficultyMinimum:  r.DifficultyMinimum,
		ColDifficultyMaximum:  r.DifficultyMaximum,
		ColDifficultyOutlier:  r.DifficultyOutlier,
		ColAbstract:           r.Abstract,
		ColDescription:        r.Description,
		ColGaugeID:            r.GaugeID,
		ColGaugeUnits:         r.GaugeUnits,
		ColGaugeStage:         r.GaugeStage,
	}

	if filter, ok := r.DifficultyFilter(); ok {
		attrs[ColDifficultyFilter] = filter
	}
	if r.Length != nil {
		attrs[ColLength] = *r.Length
	}
	if r.GaugeObservation != nil {
		attrs[ColGaugeObservation] = *r.GaugeObservation
	}
	if !r.SourceUpdated.IsZero() {
		attrs[ColSourceUpdated] = r.SourceUpdated
	}

	return attrs
}

// AttributePayload returns the attribute map restricted to writable columns.
func (r *Reach) AttributePayload(writable map[string]bool) map[string]any {
	payload := make(map[string]any)
	for col, val := range r.attributes() {
		if writable[col] {
			payload[col] = val
		}
	}
	return payload
}

// StagePayload narrows the payload to the gauge stage columns, for the
// low-cost stage refresh that runs far more often than a full sync.
func (r *Reach) StagePayload() map[string]any {
	payload := map[string]any{
		ColGaugeID:    r.GaugeID,
		ColGaugeUnits: r.GaugeUnits,
		ColGaugeStage: r.GaugeStage,
	}
	if r.GaugeObservation != nil {
		payload[ColGaugeObservation] = *r.GaugeObservation
	}
	if !r.SourceUpdated.IsZero() {
		payload[ColSourceUpdated] = r.SourceUpdated
	}
	return payload
}
