package roads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/saferoute/server/internal/cache"
	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
)

// searchRadiusMeters is how far from the point a road segment may sit and
// still be treated as "the road here". GPS traces and OSM geometry rarely
// disagree by more than this.
const searchRadiusMeters = 25

const mphToKmh = 1.609344

// Client looks up road attributes (speed limit, class, lanes) from OSM via
// the Overpass API. It implements blindspot.RoadGeometryProvider.
type Client struct {
	cfg        config.RoadsProviderConfig
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient creates a road-attribute client. cache may be nil.
func NewClient(cfg config.RoadsProviderConfig, c *cache.Cache) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
	}
}

// GetRoadAttributes returns attributes for the road nearest point, or nil
// when no tagged road is nearby.
func (c *Client) GetRoadAttributes(ctx context.Context, point geo.Point) (*blindspot.RoadAttributes, error) {
	key := cacheKey(point)
	if c.cache != nil {
		var attrs *blindspot.RoadAttributes
		if found, err := c.cache.Get(key, &attrs); err == nil && found {
			return attrs, nil
		}
	}

	elements, err := c.query(ctx, point)
	if err != nil {
		return nil, err
	}

	attrs := pickAttributes(elements)
	if c.cache != nil {
		_ = c.cache.Set(key, attrs, c.cfg.CacheTTL, "roads")
	}
	return attrs, nil
}

func cacheKey(p geo.Point) string {
	return fmt.Sprintf("roads:%.4f,%.4f", p.Latitude, p.Longitude)
}

func (c *Client) query(ctx context.Context, point geo.Point) ([]element, error) {
	ql := fmt.Sprintf(`[out:json][timeout:25];
way["highway"](around:%d,%.6f,%.6f);
out tags;`, searchRadiusMeters, point.Latitude, point.Longitude)

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

// pickAttributes selects the most useful nearby way: prefer one with an
// explicit maxspeed tag, then fall back to the first drivable way.
func pickAttributes(elements []element) *blindspot.RoadAttributes {
	var fallback *blindspot.RoadAttributes
	for _, el := range elements {
		highway := el.Tags["highway"]
		if highway == "" || highway == "footway" || highway == "cycleway" || highway == "path" {
			continue
		}

		attrs := &blindspot.RoadAttributes{
			SpeedLimitKmh: parseMaxspeed(el.Tags["maxspeed"]),
			HighwayClass:  highway,
		}
		if lanes, err := strconv.Atoi(strings.TrimSpace(el.Tags["lanes"])); err == nil {
			attrs.LaneCount = lanes
		}

		if attrs.SpeedLimitKmh > 0 {
			return attrs
		}
		if fallback == nil {
			fallback = attrs
		}
	}
	return fallback
}

// parseMaxspeed parses an OSM maxspeed value into km/h, handling the mph
// suffix. Unparseable or non-numeric values ("signals", "none") yield 0.
func parseMaxspeed(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	mph := false
	if strings.HasSuffix(raw, "mph") {
		mph = true
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "mph"))
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return 0
	}
	if mph {
		value *= mphToKmh
	}
	return value
}

type overpassResponse struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Tags map[string]string `json:"tags"`
}
