package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/errors"
	"github.com/cascadiawater/reachsync/internal/geo"
)

// Tracer resolves a reach's line geometry from the national hydrology
// services: each access point is snapped to the nearest hydroline, then the
// flowlines between the two snap points are traversed point-to-point.
type Tracer struct {
	baseURL    string
	httpClient *http.Client
}

// NewTracer creates a hydrology tracing client from the source settings.
func NewTracer(settings *conf.SourceSettings) *Tracer {
	return &Tracer{
		baseURL:    strings.TrimRight(settings.TraceURL, "/"),
		httpClient: &http.Client{Timeout: settings.Timeout},
	}
}

// snapPoint is an access point snapped onto the hydroline network.
type snapPoint struct {
	comID   string
	measure float64
}

// Trace returns the hydroline geometry between putin and takeout. Points
// outside the hydrology network's coverage yield a no-geometry error.
func (t *Tracer) Trace(ctx context.Context, putin, takeout geo.Point) (geo.Geometry, error) {
	start, err := t.snap(ctx, putin)
	if err != nil {
		return nil, err
	}
	stop, err := t.snap(ctx, takeout)
	if err != nil {
		return nil, err
	}
	return t.traverse(ctx, start, stop)
}

// snap indexes one point against the hydroline network.
func (t *Tracer) snap(ctx context.Context, pt geo.Point) (snapPoint, error) {
	params := url.Values{
		"pGeometry":             {fmt.Sprintf("POINT(%f %f)", pt.Lon, pt.Lat)},
		"pGeometryMod":          {"WKT,SRSNAME=urn:ogc:def:crs:OGC::CRS84"},
		"pPointIndexingMethod":  {"DISTANCE"},
		"pPointIndexingMaxDist": {"5"},
		"pOutputPathFlag":       {"TRUE"},
		"optOutCS":              {"SRSNAME=urn:ogc:def:crs:OGC::CRS84"},
		"f":                     {"json"},
	}

	root, err := t.get(ctx, "/PointIndexing.Service", params)
	if err != nil {
		return snapPoint{}, err
	}

	output, err := root.GetObject("output")
	if err != nil || output == nil {
		return snapPoint{}, errors.Newf("point (%f, %f) is outside hydrology network coverage", pt.Lon, pt.Lat).
			Component("source").
			Category(errors.CategoryNoGeometry).
			Build()
	}

	flowlines, err := output.GetObjectArray("ary_flowlines")
	if err != nil || len(flowlines) == 0 {
		return snapPoint{}, errors.Newf("no hydroline within snapping distance of (%f, %f)", pt.Lon, pt.Lat).
			Component("source").
			Category(errors.CategoryNoGeometry).
			Build()
	}

	comID := jsonText(flowlines[0], "comid")
	measure, _ := jsonFloat(flowlines[0], "fmeasure")
	return snapPoint{comID: comID, measure: measure}, nil
}

// traverse walks the flowlines between two snapped points.
func (t *Tracer) traverse(ctx context.Context, start, stop snapPoint) (geo.Geometry, error) {
	params := url.Values{
		"pNavigationType": {"PP"},
		"pStartComID":     {start.comID},
		"pStartMeasure":   {fmt.Sprintf("%f", start.measure)},
		"pStopComID":      {stop.comID},
		"pStopMeasure":    {fmt.Sprintf("%f", stop.measure)},
		"pFlowlinelist":   {"TRUE"},
		"f":               {"json"},
	}

	root, err := t.get(ctx, "/UpstreamDownStream.Service", params)
	if err != nil {
		return nil, err
	}

	flowlines, err := root.GetObjectArray("output", "flowlines_traversed")
	if err != nil || len(flowlines) == 0 {
		return nil, errors.Newf("traversal between %s and %s found no hydrolines", start.comID, stop.comID).
			Component("source").
			Category(errors.CategoryNoGeometry).
			Build()
	}

	var geom geo.Geometry
	for _, fl := range flowlines {
		coords, cerr := fl.GetValueArray("shape", "coordinates")
		if cerr != nil {
			continue
		}
		path := make(geo.Path, 0, len(coords))
		for _, c := range coords {
			pair, perr := c.Array()
			if perr != nil || len(pair) < 2 {
				continue
			}
			lon, lonErr := pair[0].Float64()
			lat, latErr := pair[1].Float64()
			if lonErr != nil || latErr != nil {
				continue
			}
			path = append(path, geo.Point{Lon: lon, Lat: lat})
		}
		if len(path) > 0 {
			geom = append(geom, path)
		}
	}

	if geom.IsEmpty() {
		return nil, errors.Newf("traversal between %s and %s carried no coordinates", start.comID, stop.comID).
			Component("source").
			Category(errors.CategoryNoGeometry).
			Build()
	}
	return geom, nil
}

func (t *Tracer) get(ctx context.Context, path string, params url.Values) (*jason.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryNetwork).
			Context("operation", "hydrology_trace").
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			serviceLogger.Warn("Failed to close trace response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("hydrology service returned status %d", resp.StatusCode).
			Component("source").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}

	root, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Context("operation", "parse_trace_json").
			Build()
	}
	return root, nil
}
