package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

const (
	defaultBaseURL             = "https://routes.googleapis.com"
	computeRoutesPath          = "directions/v2:computeRoutes"
	routeFieldMask             = "routes.duration,routes.distanceMeters"
	requestBodyReadLimit int64 = 1024
	metersPerMile              = 1609.344
)

var errAPIKeyRequired = errors.New("routing api key is required")

// Client wraps the Google Routes API used for driver ETA estimates.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Routes base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Routes client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// RouteEstimate carries the drive distance and duration between two points.
type RouteEstimate struct {
	DistanceMiles float64
	Duration      time.Duration
}

// DistanceAndDuration returns the driving estimate from origin to destination.
func (c *Client) DistanceAndDuration(ctx context.Context, origin, destination types.GeoPoint) (*RouteEstimate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "routing client not configured")
	}

	payload, err := json.Marshal(computeRoutesRequest{
		Origin:      waypoint{Location: location{LatLng: latLng{Latitude: origin.Lat, Longitude: origin.Lng}}},
		Destination: waypoint{Location: location{LatLng: latLng{Latitude: destination.Lat, Longitude: destination.Lng}}},
		TravelMode:  "DRIVE",
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal route request")
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), computeRoutesPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build route request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", routeFieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute route request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "route request failed")
	}

	var apiResp struct {
		Routes []struct {
			Duration       string `json:"duration"`
			DistanceMeters int64  `json:"distanceMeters"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode route response")
	}
	if len(apiResp.Routes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no route returned")
	}

	route := apiResp.Routes[0]
	duration, err := parseDuration(route.Duration)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse route duration")
	}

	return &RouteEstimate{
		DistanceMiles: float64(route.DistanceMeters) / metersPerMile,
		Duration:      duration,
	}, nil
}

type computeRoutesRequest struct {
	Origin      waypoint `json:"origin"`
	Destination waypoint `json:"destination"`
	TravelMode  string   `json:"travelMode"`
}

type waypoint struct {
	Location location `json:"location"`
}

type location struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// parseDuration handles the protobuf-style "123s" duration encoding.
func parseDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "s")
	if trimmed == "" {
		return 0, fmt.Errorf("empty duration %q", raw)
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
