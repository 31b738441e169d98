// Package geocode provides an optional address-to-coordinates client
// (Nominatim-compatible API).
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"prospector_backend/platform/logger"
)

// Coordinates is a geocoding result.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Client performs forward geocoding lookups.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// New creates a new geocoding client.
func New(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		log:        log,
	}
}

// Geocode resolves a free-form address string to coordinates.
func (c *Client) Geocode(ctx context.Context, query string) (*Coordinates, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("limit", "1")
	params.Add("countrycodes", "br")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ProspectorApp/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("geocoder request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.log.ExternalCall("geocoder", resp.StatusCode, float64(time.Since(start).Milliseconds()))

	if resp.StatusCode != http.StatusOK {
		c.log.Error("geocoder upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var rawResults []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		c.log.Error("failed to decode geocoder payload", "error", err)
		return nil, err
	}

	if len(rawResults) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(rawResults[0].Lat, 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(rawResults[0].Lon, 64)
	if err != nil {
		return nil, err
	}

	return &Coordinates{Latitude: lat, Longitude: lon}, nil
}
