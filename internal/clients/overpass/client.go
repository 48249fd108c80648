package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/saferoute/server/internal/cache"
	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
)

// metersPerBuildingLevel is the usual estimate when OSM has a level count but
// no measured height.
const metersPerBuildingLevel = 3.0

// Client queries the Overpass API for man-made structures near a point. It
// implements blindspot.NearbyFeatureProvider.
type Client struct {
	cfg        config.OverpassConfig
	httpClient *http.Client
	cache      *cache.Cache
	geo        geo.GeoUtils
}

// NewClient creates an Overpass client. cache may be nil to disable caching.
func NewClient(cfg config.OverpassConfig, c *cache.Cache) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
		geo:        geo.NewGeoUtils(),
	}
}

// GetNearbyFeatures returns structures within radiusMeters of point, with
// heights taken from OSM tags or estimated from level counts.
func (c *Client) GetNearbyFeatures(ctx context.Context, point geo.Point, radiusMeters float64) ([]blindspot.Feature, error) {
	if c.cache != nil {
		if features, found := c.cache.GetNearbyFeatures(point, radiusMeters); found {
			return features, nil
		}
	}

	elements, err := c.query(ctx, point, radiusMeters)
	if err != nil {
		return nil, err
	}

	var features []blindspot.Feature
	for _, el := range elements {
		feature, ok := c.toFeature(el, point)
		if !ok {
			continue
		}
		features = append(features, feature)
	}

	if c.cache != nil {
		_ = c.cache.SetNearbyFeatures(point, radiusMeters, features, c.cfg.CacheTTL)
	}
	return features, nil
}

// query runs one Overpass QL request for buildings and other tall man-made
// structures around the point.
func (c *Client) query(ctx context.Context, point geo.Point, radiusMeters float64) ([]element, error) {
	ql := fmt.Sprintf(`[out:json][timeout:25];
(
  way["building"](around:%.0f,%.6f,%.6f);
  way["man_made"](around:%.0f,%.6f,%.6f);
  node["man_made"](around:%.0f,%.6f,%.6f);
);
out center tags;`,
		radiusMeters, point.Latitude, point.Longitude,
		radiusMeters, point.Latitude, point.Longitude,
		radiusMeters, point.Latitude, point.Longitude)

	form := url.Values{"data": {ql}}
	requestURL := fmt.Sprintf("%s/api/interpreter", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var response overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response.Elements, nil
}

// toFeature converts one Overpass element into a feature, or reports false
// when the element has no usable location or height.
func (c *Client) toFeature(el element, origin geo.Point) (blindspot.Feature, bool) {
	location, ok := el.location()
	if !ok {
		return blindspot.Feature{}, false
	}

	height := el.height()
	if height <= 0 || math.IsNaN(height) || math.IsInf(height, 0) {
		return blindspot.Feature{}, false
	}

	featureType := el.Tags["man_made"]
	if building, hasBuilding := el.Tags["building"]; hasBuilding {
		featureType = "building"
		if building != "yes" && building != "" {
			featureType = building
		}
	}
	if featureType == "" {
		return blindspot.Feature{}, false
	}

	name := el.Tags["name"]
	if name == "" {
		name = featureType
	}

	distance, err := c.geo.PointToPoint(origin, location)
	if err != nil {
		return blindspot.Feature{}, false
	}

	return blindspot.Feature{
		Name:           name,
		Type:           featureType,
		DistanceMeters: distance,
		HeightMeters:   height,
		Location:       location,
	}, true
}

// overpassResponse is the Overpass JSON envelope.
type overpassResponse struct {
	Elements []element `json:"elements"`
}

// element is one node or way in an Overpass response. Ways carry their
// centroid in Center when queried with "out center".
type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *elementCenter    `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type elementCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// location returns the element's representative point.
func (el element) location() (geo.Point, bool) {
	if el.Center != nil {
		return geo.Point{Latitude: el.Center.Lat, Longitude: el.Center.Lon}, true
	}
	if el.Lat != 0 || el.Lon != 0 {
		return geo.Point{Latitude: el.Lat, Longitude: el.Lon}, true
	}
	return geo.Point{}, false
}

// height returns the element's height in meters: the measured height tag when
// present, else an estimate from the level count, else 0.
func (el element) height() float64 {
	if raw, ok := el.Tags["height"]; ok {
		if h, err := parseMeters(raw); err == nil {
			return h
		}
	}
	if raw, ok := el.Tags["building:levels"]; ok {
		if levels, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return levels * metersPerBuildingLevel
		}
	}
	return 0
}

// parseMeters parses OSM height values, tolerating an "m" unit suffix.
func parseMeters(raw string) (float64, error) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "m"))
	return strconv.ParseFloat(cleaned, 64)
}
