package reach

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/geo"
	"github.com/cascadiawater/reachsync/internal/source"
)

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		combined string
		min      string
		max      string
		outlier  string
	}{
		{"IV-V(V+)", "IV", "V", "V+"},
		{"III-IV+", "III", "IV+", ""},
		{"II-", "", "II-", ""},
		{"III", "", "III", ""},
		{"V", "", "V", ""},
		{"I-II(III)", "I", "II", "III"},
		{"5.2", "", "5.2", ""},
		{"IV+", "", "IV+", ""},
		{"", "", "", ""},
		{"unknown", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.combined, func(t *testing.T) {
			minimum, maximum, outlier := ParseDifficulty(tt.combined)
			assert.Equal(t, tt.min, minimum, "minimum")
			assert.Equal(t, tt.max, maximum, "maximum")
			assert.Equal(t, tt.outlier, outlier, "outlier")
		})
	}
}

func TestDifficultyFilter(t *testing.T) {
	r := &Reach{DifficultyMaximum: "IV+"}
	v, ok := r.DifficultyFilter()
	require.True(t, ok)
	assert.InDelta(t, 4.2, v, 1e-9)

	r = &Reach{DifficultyMaximum: "5.2"}
	_, ok = r.DifficultyFilter()
	assert.False(t, ok, "ratings outside the class scale have no filter value")
}

func testRecord() source.Record {
	return source.Record{
		source.KeyReachID:            "2425",
		source.KeyName:               "Numbers",
		source.KeyRiverName:          "Arkansas",
		source.KeyRiverNameAlternate: "",
		source.KeyDifficulty:         "IV-V(V+)",
		source.KeyAbstract:           "Classic continuous class IV.",
		source.KeyPutin:              geo.Point{Lon: -106.25, Lat: 38.95},
		source.KeyTakeout:            geo.Point{Lon: -106.21, Lat: 38.87},
		source.KeyGeometry: geo.Geometry{
			{{Lon: -106.25, Lat: 38.95}, {Lon: -106.23, Lat: 38.91}, {Lon: -106.21, Lat: 38.87}},
		},
		source.KeyGaugeID:          "03451",
		source.KeyGaugeUnits:       "cfs",
		source.KeyGaugeObservation: 750.0,
		source.KeyGaugeStage:       "runnable",
		source.KeySourceUpdated:    time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestFromRecord(t *testing.T) {
	r, err := FromRecord(testRecord())
	require.NoError(t, err)

	assert.Equal(t, "2425", r.ReachID)
	assert.Equal(t, "Numbers", r.Name)
	assert.Equal(t, "Arkansas", r.RiverName)
	assert.Equal(t, "IV", r.DifficultyMinimum)
	assert.Equal(t, "V", r.DifficultyMaximum)
	assert.Equal(t, "V+", r.DifficultyOutlier)
	require.NotNil(t, r.Putin)
	require.NotNil(t, r.Takeout)
	require.NotNil(t, r.GaugeObservation)
	assert.InDelta(t, 750.0, *r.GaugeObservation, 1e-9)

	require.NotNil(t, r.Length, "length must be derived from geometry")
	assert.Greater(t, *r.Length, 8.0)
	assert.Less(t, *r.Length, 12.0)
}

func TestFromRecordMissingReachID(t *testing.T) {
	rec := testRecord()
	delete(rec, source.KeyReachID)

	_, err := FromRecord(rec)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestFromRecordAbsentKeysAreNotErrors(t *testing.T) {
	r, err := FromRecord(source.Record{source.KeyReachID: "1074"})
	require.NoError(t, err)

	assert.Empty(t, r.Name)
	assert.Nil(t, r.Putin)
	assert.Nil(t, r.GaugeObservation)
	assert.Nil(t, r.Length, "no geometry means length stays undefined, not zero")
}

func TestCentroid(t *testing.T) {
	putin := geo.Point{Lon: -106.25, Lat: 38.95}
	takeout := geo.Point{Lon: -106.21, Lat: 38.87}

	t.Run("midpoint of both accesses", func(t *testing.T) {
		r := &Reach{Putin: &putin, Takeout: &takeout}
		c := r.Centroid()
		require.NotNil(t, c)
		assert.InDelta(t, -106.23, c.Lon, 1e-9)
		assert.InDelta(t, 38.91, c.Lat, 1e-9)
	})

	t.Run("putin only", func(t *testing.T) {
		r := &Reach{Putin: &putin}
		c := r.Centroid()
		require.NotNil(t, c)
		assert.Equal(t, putin, *c)
	})

	t.Run("takeout only", func(t *testing.T) {
		r := &Reach{Takeout: &takeout}
		c := r.Centroid()
		require.NotNil(t, c)
		assert.Equal(t, takeout, *c)
	})

	t.Run("no accesses", func(t *testing.T) {
		r := &Reach{}
		assert.Nil(t, r.Centroid())
	})
}

func TestAttributePayloadRespectsWritableColumns(t *testing.T) {
	r, err := FromRecord(testRecord())
	require.NoError(t, err)

	writable := map[string]bool{
		ColReachID:    true,
		ColReachName:  true,
		ColLength:     true,
		ColGaugeStage: true,
	}

	payload := r.AttributePayload(writable)
	assert.Len(t, payload, 4)
	assert.Equal(t, "2425", payload[ColReachID])
	assert.Equal(t, "Numbers", payload[ColReachName])
	assert.Contains(t, payload, ColLength)
	assert.NotContains(t, payload, ColRiverName)
	assert.NotContains(t, payload, "geometry")
}

func TestAttributePayloadOmitsUndefinedLength(t *testing.T) {
	r, err := FromRecord(source.Record{source.KeyReachID: "1074"})
	require.NoError(t, err)

	payload := r.AttributePayload(map[string]bool{ColReachID: true, ColLength: true})
	assert.NotContains(t, payload, ColLength)
}

func TestStagePayload(t *testing.T) {
	r, err := FromRecord(testRecord())
	require.NoError(t, err)

	payload := r.StagePayload()
	assert.Equal(t, "runnable", payload[ColGaugeStage])
	assert.Equal(t, "03451", payload[ColGaugeID])
	assert.Contains(t, payload, ColGaugeObservation)
	assert.NotContains(t, payload, ColRiverName)
	assert.NotContains(t, payload, ColLength)
}
