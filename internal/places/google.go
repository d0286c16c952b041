package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/metrics"
	"github.com/majnioui/calc/internal/models"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

type nearbyResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []nearbyPlace `json:"results"`
}

type nearbyPlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type GoogleConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// GoogleClient queries the Places Nearby Search API.
type GoogleClient struct {
	cfg        GoogleConfig
	httpClient *http.Client
	logger     logger.Logger
}

func NewGoogleClient(cfg GoogleConfig, log logger.Logger) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &GoogleClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithFields(map[string]interface{}{"component": "places.google"}),
	}
}

// retryable marks an attempt that may succeed if repeated.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

func (c *GoogleClient) Nearby(ctx context.Context, loc models.GeoPoint, radiusMeters float64, keyword string) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%s,%s",
		strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		strconv.FormatFloat(loc.Lon, 'f', -1, 64)))
	params.Set("radius", strconv.FormatFloat(radiusMeters, 'f', -1, 64))
	if keyword != "" {
		params.Set("keyword", keyword)
	}
	params.Set("key", c.cfg.APIKey)
	target := c.cfg.BaseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("retrying places request", map[string]interface{}{
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   lastErr,
			})
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
			case <-time.After(wait):
			}
		}

		out, err := c.do(ctx, target)
		if err == nil {
			metrics.PlacesUpstream.WithLabelValues("ok").Inc()
			return out, nil
		}
		lastErr = err

		var r retryable
		if !errors.As(err, &r) {
			metrics.PlacesUpstream.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		metrics.PlacesUpstream.WithLabelValues("retryable").Inc()
	}
	return nil, fmt.Errorf("%w: giving up after %d attempts: %v", ErrUpstream, c.cfg.MaxRetries+1, lastErr)
}

func (c *GoogleClient) do(ctx context.Context, target string) ([]models.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retryable{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, retryable{err}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryable{fmt.Errorf("places api returned %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places api returned %d", resp.StatusCode)
	}

	var payload nearbyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	switch payload.Status {
	case "OK", "":
	case "ZERO_RESULTS":
		return []models.Candidate{}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, retryable{fmt.Errorf("places status %s: %s", payload.Status, payload.ErrorMessage)}
	default:
		return nil, fmt.Errorf("places status %s: %s", payload.Status, payload.ErrorMessage)
	}

	out := make([]models.Candidate, 0, len(payload.Results))
	for _, p := range payload.Results {
		out = append(out, models.Candidate{
			ID:      p.PlaceID,
			Name:    p.Name,
			Address: p.Vicinity,
			Loc:     models.GeoPoint{Lat: p.Geometry.Location.Lat, Lon: p.Geometry.Location.Lng},
		})
	}
	return out, nil
}

// MapsURL links to a place on Google Maps.
func MapsURL(placeID string) string {
	return "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(placeID)
}
