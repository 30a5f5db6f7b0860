package source

import (
	"time"

	"github.com/cascadiawater/reachsync/internal/geo"
)

// Record field keys produced by a Source. A missing key means the source had
// no usable value for that field.
const (
	KeyReachID            = "reach_id"
	KeyName               = "name"
	KeyRiverName          = "river_name"
	KeyRiverNameAlternate = "river_name_alternate"
	KeyDifficulty         = "difficulty"
	KeyAbstract           = "abstract"
	KeyDescription        = "description"
	KeyPutin              = "putin"
	KeyTakeout            = "takeout"
	KeyGeometry           = "geometry"
	KeyGaugeID            = "gauge_id"
	KeyGaugeUnits         = "gauge_units"
	KeyGaugeObservation   = "gauge_observation"
	KeyGaugeStage         = "gauge_stage"
	KeySourceUpdated      = "source_updated"
)

// Record is a loosely typed reach record as returned by a Source. Values are
// strings, float64s, time.Time, geo.Point or geo.Geometry depending on the
// field. Coercion into the reach entity happens in one place, reach.FromRecord.
type Record map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (r Record) String(key string) string {
	v, _ := r[key].(string)
	return v
}

// Float returns the float value for key and whether it was present.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key].(float64)
	return v, ok
}

// Time returns the time value for key and whether it was present.
func (r Record) Time(key string) (time.Time, bool) {
	v, ok := r[key].(time.Time)
	return v, ok
}

// Point returns the point value for key, or nil when absent.
func (r Record) Point(key string) *geo.Point {
	v, ok := r[key].(geo.Point)
	if !ok {
		return nil
	}
	return &v
}

func newPoint(lon, lat float64) geo.Point {
	return geo.Point{Lon: lon, Lat: lat}
}

// Geometry returns the line geometry carried by the record, if any.
func (r Record) Geometry() geo.Geometry {
	v, _ := r[KeyGeometry].(geo.Geometry)
	return v
}
