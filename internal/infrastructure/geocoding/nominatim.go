// Package geocoding resolves coordinates to a display address.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/errors"
)

const userAgent = "neighborly-api/1.0"

// NominatimClient talks to a Nominatim-compatible /reverse endpoint.
type NominatimClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewNominatimClient(baseURL string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (c *NominatimClient) ReverseGeocode(ctx context.Context, point entity.GeoPoint) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(point.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(point.Lng, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", errors.Internal("Failed to build geocoding request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.DependencyUnavailable("Geocoder unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.DependencyUnavailable(fmt.Sprintf("Geocoder returned %s", resp.Status), nil)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.DependencyUnavailable("Geocoder returned an unreadable response", err)
	}
	if body.Error != "" || body.DisplayName == "" {
		return "", errors.NotFound("Address", nil)
	}
	return body.DisplayName, nil
}
