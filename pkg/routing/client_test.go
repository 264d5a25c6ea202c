package routing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/glowcart/glowcart-backend/pkg/types"
)

func TestClientComputeRoutesRequest(t *testing.T) {
	const expectedURL = "http://routes.test/directions/v2:computeRoutes"
	respBody := `{"routes":[{"duration":"900s","distanceMeters":3218}]}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload computeRoutesRequest
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload.TravelMode != "DRIVE" {
			t.Fatalf("unexpected travel mode %q", payload.TravelMode)
		}
		if payload.Origin.Location.LatLng.Latitude != 47.6 {
			t.Fatalf("unexpected origin %+v", payload.Origin)
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-key", WithBaseURL("http://routes.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	estimate, err := client.DistanceAndDuration(context.Background(),
		types.GeoPoint{Lat: 47.6, Lng: -122.3},
		types.GeoPoint{Lat: 47.7, Lng: -122.2},
	)
	if err != nil {
		t.Fatalf("distance and duration: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("X-Goog-Api-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
	if capturedHeaders.Get("X-Goog-FieldMask") != routeFieldMask {
		t.Fatalf("unexpected field mask %q", capturedHeaders.Get("X-Goog-FieldMask"))
	}
	if estimate.Duration != 15*time.Minute {
		t.Fatalf("unexpected duration %v", estimate.Duration)
	}
	if estimate.DistanceMiles < 1.99 || estimate.DistanceMiles > 2.01 {
		t.Fatalf("unexpected distance %v", estimate.DistanceMiles)
	}
}

func TestClientComputeRoutesNoRoute(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"routes":[]}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://routes.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.DistanceAndDuration(context.Background(), types.GeoPoint{}, types.GeoPoint{}); err == nil {
		t.Fatal("expected error for empty route list")
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "900s", want: 15 * time.Minute},
		{raw: "1.5s", want: 1500 * time.Millisecond},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseDuration(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %v want %v", tc.raw, got, tc.want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
