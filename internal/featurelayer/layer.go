// Package featurelayer reconciles reach entities against hosted feature
// service layers with edits keyed by the reach business key. Edits carry
// attributes, plus a representative point for layers that store points.
package featurelayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	gocache "github.com/patrickmn/go-cache"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/logging"
)

// objectIDField is the target system's row identity column, distinct from the
// reach business key.
const objectIDField = "OBJECTID"

const schemaCacheKey = "schema"

// pointGeometryType marks a layer whose stored geometry is a single point.
// Only such layers accept a representative point with their edits.
const pointGeometryType = "esriGeometryPoint"

// wgs84WKID is the spatial reference of all coordinates in this pipeline.
const wgs84WKID = 4326

// Package-level logger specific to the featurelayer service
var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "featurelayer.log")

	serviceLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "featurelayer", slog.LevelDebug)
	if err != nil {
		log.Printf("Failed to initialize featurelayer file logger at %s: %v. Service logging disabled.", logFilePath, err)
		serviceLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		closeLogger = func() error { return nil }
	}
}

// Close releases the service log file.
func Close() error {
	return closeLogger()
}

// FeatureRef identifies one stored feature located by business key.
type FeatureRef struct {
	ObjectID int64
}

// Schema describes the target layer as exposed by its metadata endpoint.
// Geometry columns and system identity columns are never writable through
// this pipeline.
type Schema struct {
	GeometryType string
	Writable     map[string]bool
}

// Layer is a client for one hosted feature service layer.
type Layer struct {
	name       string
	url        string
	token      string
	httpClient *http.Client

	schemaMu    sync.Mutex
	schemaCache *gocache.Cache
}

// New creates a layer client and populates its schema cache. A target whose
// metadata cannot be read is a setup failure, not a per-reach one.
func New(ctx context.Context, name, layerURL string, settings *conf.TargetSettings) (*Layer, error) {
	l := &Layer{
		name:        name,
		url:         strings.TrimRight(layerURL, "/"),
		token:       settings.Token,
		httpClient:  &http.Client{Timeout: settings.Timeout},
		schemaCache: gocache.New(settings.SchemaTTL, 2*settings.SchemaTTL),
	}

	if _, err := l.Schema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Name returns the configured layer name, "line" or "centroid" in production.
func (l *Layer) Name() string {
	return l.name
}

// Schema returns the layer schema, refreshing the cached copy when its TTL
// has lapsed. Safe for concurrent use.
func (l *Layer) Schema(ctx context.Context) (*Schema, error) {
	l.schemaMu.Lock()
	defer l.schemaMu.Unlock()

	if cached, ok := l.schemaCache.Get(schemaCacheKey); ok {
		return cached.(*Schema), nil
	}

	root, err := l.post(ctx, "", url.Values{})
	if err != nil {
		return nil, err
	}

	schema := &Schema{Writable: make(map[string]bool)}
	if gt, gerr := root.GetString("geometryType"); gerr == nil {
		schema.GeometryType = gt
	}

	fields, err := root.GetObjectArray("fields")
	if err != nil {
		return nil, errors.Newf("layer %s metadata carries no field list", l.name).
			Component("featurelayer").
			Category(errors.CategoryConfiguration).
			Context("layer_url", l.url).
			Build()
	}

	for _, f := range fields {
		name, nerr := f.GetString("name")
		if nerr != nil {
			continue
		}
		editable, _ := f.GetBoolean("editable")
		if !editable || isSystemField(name) {
			continue
		}
		schema.Writable[name] = true
	}

	l.schemaCache.Set(schemaCacheKey, schema, gocache.DefaultExpiration)
	serviceLogger.Debug("Layer schema cached", "layer", l.name, "writable_columns", len(schema.Writable))
	return schema, nil
}

// isSystemField reports identity and geometry bookkeeping columns that must
// never appear in an attribute payload.
func isSystemField(name string) bool {
	upper := strings.ToUpper(name)
	return upper == objectIDField || upper == "GLOBALID" || strings.HasPrefix(upper, "SHAPE")
}

// FindByReachID locates the single stored feature carrying the business key.
// Zero matches and multiple matches are distinct reportable conditions; the
// caller never receives an arbitrary pick.
func (l *Layer) FindByReachID(ctx context.Context, reachID string) (FeatureRef, error) {
	params := url.Values{
		"where":         {fmt.Sprintf("reach_id = '%s'", escapeKey(reachID))},
		"returnIdsOnly": {"true"},
	}

	root, err := l.post(ctx, "/query", params)
	if err != nil {
		return FeatureRef{}, err
	}

	ids, err := root.GetValueArray("objectIds")
	if err != nil {
		ids = nil
	}

	switch len(ids) {
	case 0:
		return FeatureRef{}, errors.Newf("reach %s is not provisioned in the %s layer", reachID, l.name).
			Component("featurelayer").
			Category(errors.CategoryNotFound).
			Context("reach_id", reachID).
			Context("layer", l.name).
			Build()
	case 1:
		oid, ferr := ids[0].Int64()
		if ferr != nil {
			if f, fferr := ids[0].Float64(); fferr == nil {
				oid = int64(f)
			} else {
				return FeatureRef{}, ferr
			}
		}
		return FeatureRef{ObjectID: oid}, nil
	default:
		return FeatureRef{}, errors.Newf("reach %s matches %d features in the %s layer", reachID, len(ids), l.name).
			Component("featurelayer").
			Category(errors.CategoryDuplicateKey).
			Context("reach_id", reachID).
			Context("layer", l.name).
			Context("match_count", len(ids)).
			Build()
	}
}

// escapeKey doubles single quotes so a key cannot break out of the where
// clause literal.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, "'", "''")
}

// QueryUniqueKeys enumerates distinct values of column across the layer,
// optionally restricted by a where clause.
func (l *Layer) QueryUniqueKeys(ctx context.Context, column, where string) ([]string, error) {
	if where == "" {
		where = "1=1"
	}
	params := url.Values{
		"where":                {where},
		"outFields":            {column},
		"returnDistinctValues": {"true"},
		"returnGeometry":       {"false"},
	}

	root, err := l.post(ctx, "/query", params)
	if err != nil {
		return nil, err
	}

	features, err := root.GetObjectArray("features")
	if err != nil {
		return nil, errors.Newf("unique key query against %s layer returned no feature list", l.name).
			Component("featurelayer").
			Category(errors.CategoryHTTP).
			Context("column", column).
			Build()
	}

	keys := make([]string, 0, len(features))
	for _, f := range features {
		attrs, aerr := f.GetObject("attributes")
		if aerr != nil {
			continue
		}
		if v := attributeText(attrs, column); v != "" {
			keys = append(keys, v)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func attributeText(attrs *jason.Object, column string) string {
	if s, err := attrs.GetString(column); err == nil {
		return s
	}
	if n, err := attrs.GetInt64(column); err == nil {
		return fmt.Sprintf("%d", n)
	}
	if f, err := attrs.GetFloat64(column); err == nil {
		return fmt.Sprintf("%v", f)
	}
	return ""
}

// post issues a form POST against a layer endpoint and peels the target's
// in-band error envelope.
func (l *Layer) post(ctx context.Context, endpoint string, params url.Values) (*jason.Object, error) {
	params.Set("f", "json")
	if l.token != "" {
		params.Set("token", l.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("featurelayer").
			Category(errors.CategoryNetwork).
			Context("layer", l.name).
			Context("endpoint", endpoint).
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			serviceLogger.Warn("Failed to close response body", "layer", l.name, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("layer %s returned status %d", l.name, resp.StatusCode).
			Component("featurelayer").
			Category(errors.CategoryHTTP).
			Context("endpoint", endpoint).
			Build()
	}

	root, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("featurelayer").
			Category(errors.CategoryHTTP).
			Context("layer", l.name).
			Context("operation", "parse_response").
			Build()
	}

	// the target reports failures in-band with a 200 status
	if errObj, eerr := root.GetObject("error"); eerr == nil && errObj != nil {
		code, _ := errObj.GetInt64("code")
		message, _ := errObj.GetString("message")
		return nil, errors.Newf("layer %s error %d: %s", l.name, code, message).
			Component("featurelayer").
			Category(errors.CategoryHTTP).
			Context("endpoint", endpoint).
			Context("target_code", code).
			Build()
	}

	return root, nil
}

// encodeAttribute converts payload values to the target's wire conventions.
// Timestamps travel as epoch milliseconds.
func encodeAttribute(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// payload maps only hold JSON-safe scalar types
		panic(err)
	}
	return string(b)
}
