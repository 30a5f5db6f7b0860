package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"golang.org/x/time/rate"

	"github.com/cascadiawater/reachsync/internal/conf"
	"github.com/cascadiawater/reachsync/internal/errors"
)

// initialBackoff is the delay before the first retry; it doubles per attempt.
const initialBackoff = 500 * time.Millisecond

// Client fetches per-reach detail JSON from the whitewater database.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a detail JSON client from the source settings.
func NewClient(settings *conf.SourceSettings) *Client {
	return &Client{
		baseURL:    strings.TrimRight(settings.BaseURL, "/"),
		httpClient: &http.Client{Timeout: settings.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(settings.RequestsPerSec), 1),
		maxRetries: settings.MaxRetries,
	}
}

// Fetch downloads and parses the record for one reach. An empty body or a 500
// response means the reach no longer exists upstream; transient failures are
// retried with exponential backoff up to the configured limit.
func (c *Client) Fetch(ctx context.Context, reachID string) (Record, error) {
	url := fmt.Sprintf("%s/%s/.json", c.baseURL, reachID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialBackoff * time.Duration(1<<(attempt-1))
			serviceLogger.Debug("Retrying reach fetch", "reach_id", reachID, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, notFound, err := c.download(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if notFound {
			serviceLogger.Info("Reach not present upstream", "reach_id", reachID)
			return nil, errors.Newf("reach %s no longer exists at the source", reachID).
				Component("source").
				Category(errors.CategorySourceNotFound).
				Context("reach_id", reachID).
				Build()
		}

		rec, err := parseDetailJSON(reachID, body)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	serviceLogger.Error("Reach fetch failed after retries", "reach_id", reachID, "error", lastErr)
	return nil, errors.New(lastErr).
		Component("source").
		Category(errors.CategorySourceFetch).
		Context("reach_id", reachID).
		Context("max_retries", c.maxRetries).
		Build()
}

// download performs one GET. The bool result reports the upstream's two
// deleted-reach signatures, a 200 with an empty body and a bare 500.
func (c *Client) download(ctx context.Context, url string) (body []byte, notFound bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	switch {
	case resp.StatusCode == http.StatusInternalServerError:
		return nil, true, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if len(body) == 0 {
		return nil, true, nil
	}
	return body, false, nil
}

// parseDetailJSON flattens the nested detail gadget JSON into a Record.
func parseDetailJSON(reachID string, body []byte) (Record, error) {
	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Context("reach_id", reachID).
			Context("operation", "parse_detail_json").
			Build()
	}

	main, err := root.GetObject("CContainerViewJSON_view", "CRiverMainGadgetJSON_main")
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceFetch).
			Context("reach_id", reachID).
			Context("operation", "locate_main_gadget").
			Build()
	}

	rec := Record{KeyReachID: reachID}

	info, err := main.GetObject("info")
	if err == nil {
		setIfPresent(rec, KeyRiverName, cleanupText(jsonText(info, "river")))
		setIfPresent(rec, KeyName, cleanupText(jsonText(info, "section")))
		setIfPresent(rec, KeyRiverNameAlternate, cleanupText(jsonText(info, "altname")))
		setIfPresent(rec, KeyAbstract, cleanupText(jsonText(info, "abstract")))
		setIfPresent(rec, KeyDescription, cleanupText(jsonText(info, "description")))

		if class := jsonText(info, "class"); class != "" && !strings.EqualFold(class, "none") {
			rec[KeyDifficulty] = class
		}

		if pt, ok := pointFromInfo(info, "plon", "plat"); ok {
			rec[KeyPutin] = pt
		}
		if pt, ok := pointFromInfo(info, "tlon", "tlat"); ok {
			rec[KeyTakeout] = pt
		}

		if edited := jsonText(info, "edited"); edited != "" {
			if t, terr := time.Parse("2006-01-02 15:04:05", edited); terr == nil {
				rec[KeySourceUpdated] = t
			}
		}
	}

	parseGauge(rec, main)
	return rec, nil
}

// parseGauge picks the reach's gauge, biasing toward cfs when several report,
// and derives the stage category from the matching range summary.
func parseGauge(rec Record, main *jason.Object) {
	gauges, err := main.GetObjectArray("gauges")
	if err != nil || len(gauges) == 0 {
		return
	}

	gauge := gauges[0]
	for _, g := range gauges {
		if jsonText(g, "metric_unit") == "cfs" {
			gauge = g
			break
		}
	}

	setIfPresent(rec, KeyGaugeID, jsonText(gauge, "gauge_id"))
	setIfPresent(rec, KeyGaugeUnits, jsonText(gauge, "metric_unit"))

	var observation *float64
	if v, ok := jsonFloat(gauge, "gauge_reading"); ok {
		observation = &v
		rec[KeyGaugeObservation] = v
	}

	// range boundaries live in the summary block, keyed back to the gauge
	// by its dhid; the upstream key really is spelled "guagesummary"
	boundaries := make(map[int]float64)
	dhid := jsonText(gauge, "dhid")
	if ranges, rerr := main.GetObjectArray("guagesummary", "ranges"); rerr == nil {
		for _, rng := range ranges {
			if jsonText(rng, "dhid") != dhid {
				continue
			}
			if slot, ok := rangeSlot(jsonText(rng, "range_min")); ok {
				if v, vok := jsonFloat(rng, "gauge_min"); vok {
					boundaries[slot] = v
				}
			}
			if slot, ok := rangeSlot(jsonText(rng, "range_max")); ok {
				if v, vok := jsonFloat(rng, "gauge_max"); vok {
					boundaries[slot] = v
				}
			}
		}
	}

	if stage := deriveStage(observation, boundaries); stage != "" {
		rec[KeyGaugeStage] = stage
	}
}

// rangeSlot maps a range label like "R4" to its slot index.
func rangeSlot(label string) (int, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if len(label) != 2 || label[0] != 'R' || label[1] < '0' || label[1] > '9' {
		return 0, false
	}
	return int(label[1] - '0'), true
}

func pointFromInfo(info *jason.Object, lonKey, latKey string) (pt any, ok bool) {
	lon, lonOK := jsonFloat(info, lonKey)
	lat, latOK := jsonFloat(info, latKey)
	if !lonOK || !latOK {
		return nil, false
	}
	return newPoint(lon, lat), true
}

func setIfPresent(rec Record, key, value string) {
	if value != "" {
		rec[key] = value
	}
}

// jsonText returns the value at path as a string, accepting either a JSON
// string or a number. The upstream is not consistent about which one it sends.
func jsonText(obj *jason.Object, keys ...string) string {
	if s, err := obj.GetString(keys...); err == nil {
		return strings.TrimSpace(s)
	}
	if f, err := obj.GetFloat64(keys...); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// jsonFloat returns the value at path as a float, accepting numbers and
// numeric strings.
func jsonFloat(obj *jason.Object, keys ...string) (float64, bool) {
	if f, err := obj.GetFloat64(keys...); err == nil {
		return f, true
	}
	if s, err := obj.GetString(keys...); err == nil {
		if f, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			return f, true
		}
	}
	return 0, false
}
