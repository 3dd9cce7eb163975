package promquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"modelmon/internal/metrics"
	"modelmon/internal/models"
)

// Client errors
var (
	ErrBadStatus = errors.New("metric store returned non-success status")
	ErrNoData    = errors.New("metric store returned no data for query")
)

// Client speaks the metric store's HTTP query API: instant queries for the
// latest value of a metric and the list of currently-firing alerts.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient builds a client for the given base URL. Each request is bounded
// by timeout so a slow upstream cannot stall the caller's poll loop.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiResponse is the common envelope of the query API
type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type vectorData struct {
	ResultType string         `json:"resultType"`
	Result     []vectorSample `json:"result"`
}

type vectorSample struct {
	Metric map[string]string `json:"metric"`
	Value  [2]interface{}    `json:"value"` // [unix seconds, string value]
}

type alertsData struct {
	Alerts []apiAlert `json:"alerts"`
}

type apiAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	State       string            `json:"state"`
	ActiveAt    time.Time         `json:"activeAt"`
	Value       string            `json:"value"`
}

// InstantQuery returns the latest scraped value of the named metric and the
// timestamp the store attached to it.
func (c *Client) InstantQuery(ctx context.Context, metric string) (float64, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/v1/query?query=%s", c.baseURL, url.QueryEscape(metric))
	var data vectorData
	if err := c.get(ctx, u, "metrics", &data); err != nil {
		return 0, time.Time{}, err
	}

	if len(data.Result) == 0 {
		metrics.UpstreamQueryErrors.WithLabelValues("metrics").Inc()
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrNoData, metric)
	}

	sample := data.Result[0]
	ts, ok := sample.Value[0].(float64)
	if !ok {
		metrics.UpstreamQueryErrors.WithLabelValues("metrics").Inc()
		return 0, time.Time{}, fmt.Errorf("malformed timestamp for %s", metric)
	}
	raw, ok := sample.Value[1].(string)
	if !ok {
		metrics.UpstreamQueryErrors.WithLabelValues("metrics").Inc()
		return 0, time.Time{}, fmt.Errorf("malformed value for %s", metric)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		metrics.UpstreamQueryErrors.WithLabelValues("metrics").Inc()
		return 0, time.Time{}, fmt.Errorf("parse value for %s: %w", metric, err)
	}

	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return v, time.Unix(sec, nsec), nil
}

// FiringAlerts returns the alerts the alert engine currently reports as
// firing, projected into display form. Pending alerts are skipped.
func (c *Client) FiringAlerts(ctx context.Context) ([]models.AlertView, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var data alertsData
	if err := c.get(ctx, c.baseURL+"/api/v1/alerts", "alerts", &data); err != nil {
		return nil, err
	}

	views := make([]models.AlertView, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		if a.State != "firing" {
			continue
		}
		value, _ := strconv.ParseFloat(a.Value, 64)
		views = append(views, models.AlertView{
			Name:         a.Labels["alertname"],
			Severity:     models.Severity(a.Labels["severity"]),
			Description:  a.Annotations["description"],
			CurrentValue: value,
			FiringSince:  a.ActiveAt,
		})
	}
	return views, nil
}

// get performs one API call and decodes the data payload into out
func (c *Client) get(ctx context.Context, rawURL, upstream string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamQueryErrors.WithLabelValues(upstream).Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamQueryErrors.WithLabelValues(upstream).Inc()
		return fmt.Errorf("%w: http %d", ErrBadStatus, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metrics.UpstreamQueryErrors.WithLabelValues(upstream).Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != "success" {
		metrics.UpstreamQueryErrors.WithLabelValues(upstream).Inc()
		return fmt.Errorf("%w: %s", ErrBadStatus, envelope.Status)
	}
	return json.Unmarshal(envelope.Data, out)
}
