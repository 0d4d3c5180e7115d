package noaa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	"github.com/couchcryptid/ghcn-daily-etl/internal/observability"
)

// ErrStationNotFound is wrapped by RetrievalError when the archive has no file for the station.
var ErrStationNotFound = errors.New("station file not found")

// RetrievalError describes a failed station file download. It is fatal for a run.
type RetrievalError struct {
	Station    string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retrieve %s from %s: status %d: %v", e.Station, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retrieve %s from %s: %v", e.Station, e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Client downloads GHCN-Daily station files over HTTPS.
// It implements pipeline.Fetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client rooted at baseURL, e.g.
// https://www.ncei.noaa.gov/pub/data/ghcn/daily/all.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch streams the .dly file for station into w and returns the number of bytes copied.
func (c *Client) Fetch(ctx context.Context, station string, w io.Writer) (int64, error) {
	u := fmt.Sprintf("%s/%s.dly", c.baseURL, station)
	if !domain.ValidStationID(station) {
		return 0, &RetrievalError{Station: station, URL: u, Err: fmt.Errorf("invalid station id %q", station)}
	}

	start := time.Now()
	n, err := c.download(ctx, station, u, w)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.FetchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	c.metrics.FetchBytes.Add(float64(n))

	if err != nil {
		return n, err
	}
	c.logger.Info("station file downloaded", "station", station, "url", u, "bytes", n)
	return n, nil
}

func (c *Client) download(ctx context.Context, station, u string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, &RetrievalError{Station: station, URL: u, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &RetrievalError{Station: station, URL: u, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, &RetrievalError{Station: station, URL: u, StatusCode: resp.StatusCode, Err: ErrStationNotFound}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &RetrievalError{Station: station, URL: u, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("archive error: %s", strings.TrimSpace(string(body)))}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &RetrievalError{Station: station, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return n, nil
}
