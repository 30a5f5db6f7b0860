package featurelayer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/geo"
)

// decodeUpdates parses the applyEdits form body into the edit records.
func decodeUpdates(t *testing.T, req *http.Request) []map[string]any {
	t.Helper()
	require.NoError(t, req.ParseForm())
	var updates []map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.PostForm.Get("updates")), &updates))
	return updates
}

func TestUpdateAttributesSuccess(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	var sent []map[string]any
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		func(req *http.Request) (*http.Response, error) {
			sent = decodeUpdates(t, req)
			return httpmock.NewStringResponse(http.StatusOK,
				`{"updateResults": [{"objectId": 42, "success": true}]}`), nil
		})

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42}, map[string]any{
		"reach_name":  "Numbers",
		"length":      9.6,
		"gauge_stage": "runnable",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Status)
	assert.Empty(t, outcome.RejectedColumns)

	require.Len(t, sent, 1)
	attrs, ok := sent[0]["attributes"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 42, attrs["OBJECTID"])
	assert.Equal(t, "Numbers", attrs["reach_name"])
	assert.NotContains(t, sent[0], "geometry", "edit records are attribute only")
}

func TestUpdateAttributesEncodesTimestamps(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testLayerURL,
		httpmock.NewStringResponder(http.StatusOK, `{
			"geometryType": "esriGeometryPoint",
			"fields": [{"name": "source_updated", "editable": true}]
		}`))

	var sent []map[string]any
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		func(req *http.Request) (*http.Response, error) {
			sent = decodeUpdates(t, req)
			return httpmock.NewStringResponse(http.StatusOK,
				`{"updateResults": [{"success": true}]}`), nil
		})

	l := newTestLayer(t)
	updated := time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 7},
		map[string]any{"source_updated": updated}, nil)
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Status)

	attrs := sent[0]["attributes"].(map[string]any)
	assert.EqualValues(t, updated.UnixMilli(), attrs["source_updated"])
}

func TestUpdateAttributesPartialFailure(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		httpmock.NewStringResponder(http.StatusOK,
			`{"updateResults": [{"success": true}]}`))

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42}, map[string]any{
		"reach_name":   "Numbers",
		"validated_by": "nobody",
		"huc":          "14010003",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, PartialFailure, outcome.Status)
	assert.Equal(t, []string{"huc", "validated_by"}, outcome.RejectedColumns)
	require.Error(t, outcome.Err)
	assert.True(t, errors.IsCategory(outcome.Err, errors.CategoryPartialWrite))
}

func TestUpdateAttributesRejected(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		httpmock.NewStringResponder(http.StatusOK, `{
			"updateResults": [{
				"objectId": 42,
				"success": false,
				"error": {"code": 1000, "description": "value out of range"}
			}]
		}`))

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42},
		map[string]any{"length": -1.0}, nil)
	require.NoError(t, err, "a rejected write is an outcome, not a transport error")

	assert.Equal(t, Failure, outcome.Status)
	require.Error(t, outcome.Err)
	assert.True(t, errors.IsCategory(outcome.Err, errors.CategoryWriteRejected))
	assert.Contains(t, outcome.Err.Error(), "value out of range")
}

func TestUpdateAttributesNothingWritable(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42},
		map[string]any{"validated_by": "nobody"}, nil)
	require.NoError(t, err)

	assert.Equal(t, Failure, outcome.Status)
	assert.True(t, errors.IsCategory(outcome.Err, errors.CategoryWriteRejected))
	// metadata only; no edit was attempted
	assert.Zero(t, httpmock.GetCallCountInfo()["POST "+testLayerURL+"/applyEdits"])
}

func TestUpdateAttributesIdempotent(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	stored := map[string]any{}
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		func(req *http.Request) (*http.Response, error) {
			updates := decodeUpdates(t, req)
			for k, v := range updates[0]["attributes"].(map[string]any) {
				stored[k] = v
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"updateResults": [{"success": true}]}`), nil
		})

	l := newTestLayer(t)
	payload := map[string]any{"reach_name": "Numbers", "length": 9.6}

	first, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42}, payload, nil)
	require.NoError(t, err)
	afterFirst := map[string]any{}
	for k, v := range stored {
		afterFirst[k] = v
	}

	second, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42}, payload, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, afterFirst, stored, "reapplying the same payload leaves the same stored state")
}

func TestUpdateAttributesPointLayerCarriesGeometry(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testLayerURL,
		httpmock.NewStringResponder(http.StatusOK, `{
			"geometryType": "esriGeometryPoint",
			"fields": [{"name": "reach_name", "editable": true}]
		}`))

	var sent []map[string]any
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		func(req *http.Request) (*http.Response, error) {
			sent = decodeUpdates(t, req)
			return httpmock.NewStringResponse(http.StatusOK,
				`{"updateResults": [{"success": true}]}`), nil
		})

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42},
		map[string]any{"reach_name": "Numbers"},
		&geo.Point{Lon: -106.25, Lat: 38.95})
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Status)

	require.Len(t, sent, 1)
	geom, ok := sent[0]["geometry"].(map[string]any)
	require.True(t, ok, "point layer edits carry the representative point")
	assert.InDelta(t, -106.25, geom["x"], 1e-9)
	assert.InDelta(t, 38.95, geom["y"], 1e-9)
	sr, ok := geom["spatialReference"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4326, sr["wkid"])
}

func TestUpdateAttributesLineLayerIgnoresPoint(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	var sent []map[string]any
	httpmock.RegisterResponder("POST", testLayerURL+"/applyEdits",
		func(req *http.Request) (*http.Response, error) {
			sent = decodeUpdates(t, req)
			return httpmock.NewStringResponse(http.StatusOK,
				`{"updateResults": [{"success": true}]}`), nil
		})

	l := newTestLayer(t)
	outcome, err := l.UpdateAttributes(context.Background(), FeatureRef{ObjectID: 42},
		map[string]any{"reach_name": "Numbers"},
		&geo.Point{Lon: -106.25, Lat: 38.95})
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Status)

	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0], "geometry", "stored line geometry is never touched")
}
