package featurelayer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/errors"
)

const testLayerURL = "https://gis.example.com/rest/services/reaches/FeatureServer/0"

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func testTargetSettings() *conf.TargetSettings {
	return &conf.TargetSettings{
		Token:     "secret-token",
		Timeout:   5 * time.Second,
		SchemaTTL: 15 * time.Minute,
	}
}

func layerMetadataJSON() string {
	return `{
		"geometryType": "esriGeometryPolyline",
		"fields": [
			{"name": "OBJECTID", "editable": false},
			{"name": "GlobalID", "editable": false},
			{"name": "Shape__Length", "editable": false},
			{"name": "reach_id", "editable": true},
			{"name": "reach_name", "editable": true},
			{"name": "length", "editable": true},
			{"name": "gauge_stage", "editable": true},
			{"name": "validated_by", "editable": false}
		]
	}`
}

func registerMetadata(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder("POST", testLayerURL,
		httpmock.NewStringResponder(http.StatusOK, layerMetadataJSON()))
}

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	l, err := New(context.Background(), "line", testLayerURL, testTargetSettings())
	require.NoError(t, err)
	return l
}

func TestNewPopulatesSchema(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	l := newTestLayer(t)
	schema, err := l.Schema(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "esriGeometryPolyline", schema.GeometryType)
	assert.True(t, schema.Writable["reach_id"])
	assert.True(t, schema.Writable["length"])
	assert.False(t, schema.Writable["OBJECTID"], "identity columns are never writable")
	assert.False(t, schema.Writable["Shape__Length"], "geometry bookkeeping columns are never writable")
	assert.False(t, schema.Writable["validated_by"], "non-editable columns stay read only")

	// construction fetched metadata once; Schema served from cache after
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNewFailsWhenMetadataUnavailable(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testLayerURL,
		httpmock.NewStringResponder(http.StatusOK, `{"error": {"code": 499, "message": "token required"}}`))

	_, err := New(context.Background(), "line", testLayerURL, testTargetSettings())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
}

func TestFindByReachID(t *testing.T) {
	tests := []struct {
		name         string
		objectIDs    string
		wantObjectID int64
		wantCategory errors.ErrorCategory
	}{
		{"exactly one match", `[42]`, 42, ""},
		{"no match", `[]`, 0, errors.CategoryNotFound},
		{"duplicate key", `[42, 43]`, 0, errors.CategoryDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			registerMetadata(t)
			httpmock.RegisterResponder("POST", testLayerURL+"/query",
				httpmock.NewStringResponder(http.StatusOK,
					`{"objectIdFieldName": "OBJECTID", "objectIds": `+tt.objectIDs+`}`))

			l := newTestLayer(t)
			ref, err := l.FindByReachID(context.Background(), "2425")

			if tt.wantCategory != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, tt.wantCategory))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantObjectID, ref.ObjectID)
		})
	}
}

func TestFindByReachIDEscapesKey(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)

	var capturedWhere string
	httpmock.RegisterResponder("POST", testLayerURL+"/query",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			capturedWhere = req.PostForm.Get("where")
			return httpmock.NewStringResponse(http.StatusOK, `{"objectIds": [7]}`), nil
		})

	l := newTestLayer(t)
	_, err := l.FindByReachID(context.Background(), "24'25")
	require.NoError(t, err)
	assert.Equal(t, "reach_id = '24''25'", capturedWhere)
}

func TestQueryUniqueKeys(t *testing.T) {
	setupHTTPMock(t)
	registerMetadata(t)
	httpmock.RegisterResponder("POST", testLayerURL+"/query",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "gauge_id IS NOT NULL", req.PostForm.Get("where"))
			assert.Equal(t, "true", req.PostForm.Get("returnDistinctValues"))
			assert.Equal(t, "secret-token", req.PostForm.Get("token"))
			return httpmock.NewStringResponse(http.StatusOK, `{
				"features": [
					{"attributes": {"reach_id": "2425"}},
					{"attributes": {"reach_id": 1074}},
					{"attributes": {"reach_id": "388"}}
				]
			}`), nil
		})

	l := newTestLayer(t)
	keys, err := l.QueryUniqueKeys(context.Background(), "reach_id", "gauge_id IS NOT NULL")
	require.NoError(t, err)
	assert.Equal(t, []string{"1074", "2425", "388"}, keys)
}
