package elevation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/saferoute/server/internal/cache"
	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/geo"
)

// Client provides batched access to an Open-Elevation compatible lookup API.
// Lookups are chunked, rate-limited between chunks, and bounded by a fixed
// worker count so a long route never fans out unbounded requests.
type Client struct {
	cfg        config.ElevationProviderConfig
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient creates an elevation API client. cache may be nil to disable
// response caching.
func NewClient(cfg config.ElevationProviderConfig, c *cache.Cache) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
	}
}

// GetElevations returns one elevation per input point, aligned by index.
// A nil entry means no data for that point. Individual chunk failures are
// logged and surface as nil entries, never as a fatal error; only caller
// cancellation aborts the whole call.
func (c *Client) GetElevations(ctx context.Context, points []geo.Point) ([]*float64, error) {
	results := make([]*float64, len(points))

	// Serve what we can from cache and collect the rest
	var pending []int
	for i, p := range points {
		if c.cache == nil {
			pending = append(pending, i)
			continue
		}
		value, ok, cached := c.cache.GetElevation(p)
		switch {
		case cached && ok:
			v := value
			results[i] = &v
		case cached:
			// Cached "no data": don't re-ask
		default:
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return results, nil
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	var batches [][]int
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[start:end])
	}

	workers := c.cfg.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan []int, len(batches))
	for _, batch := range batches {
		jobs <- batch
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for batch := range jobs {
				if ctx.Err() != nil {
					return
				}
				if !first && c.cfg.BatchDelay > 0 {
					// Explicit delay between batches respects provider quotas
					select {
					case <-ctx.Done():
						return
					case <-time.After(c.cfg.BatchDelay):
					}
				}
				first = false

				// Workers write disjoint index sets; no locking needed
				c.fetchBatch(ctx, points, batch, results)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetchBatch looks up one chunk and fills the shared result slice at the
// chunk's indices. Failures leave the entries nil.
func (c *Client) fetchBatch(ctx context.Context, points []geo.Point, indices []int, results []*float64) {
	elevations, err := c.lookup(ctx, points, indices)
	if err != nil {
		log.Printf("Elevation batch of %d points failed: %v", len(indices), err)
		return
	}

	for n, i := range indices {
		e := elevations[n]
		if e == nil || math.IsNaN(*e) || math.IsInf(*e, 0) {
			// Malformed values never propagate into profiles
			if c.cache != nil {
				_ = c.cache.SetElevation(points[i], nil, c.cfg.CacheTTL)
			}
			continue
		}
		results[i] = e
		if c.cache != nil {
			_ = c.cache.SetElevation(points[i], e, c.cfg.CacheTTL)
		}
	}
}

// lookup performs one POST /api/v1/lookup call for the indexed points.
func (c *Client) lookup(ctx context.Context, points []geo.Point, indices []int) ([]*float64, error) {
	request := lookupRequest{Locations: make([]lookupLocation, len(indices))}
	for n, i := range indices {
		request.Locations[n] = lookupLocation{
			Latitude:  points[i].Latitude,
			Longitude: points[i].Longitude,
		}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	requestURL := fmt.Sprintf("%s/api/v1/lookup", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	var response lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	elevations := make([]*float64, len(indices))
	for n := range indices {
		if n < len(response.Results) {
			elevations[n] = response.Results[n].Elevation
		}
	}
	return elevations, nil
}

// lookupRequest is the batched lookup request body.
type lookupRequest struct {
	Locations []lookupLocation `json:"locations"`
}

// lookupLocation is one point in a lookup request.
type lookupLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// lookupResponse is the lookup response body. Elevation is a pointer so a
// provider null survives decoding as "no data".
type lookupResponse struct {
	Results []struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}
