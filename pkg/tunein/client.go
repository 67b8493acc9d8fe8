// Package tunein is a minimal client for the TuneIn (radiotime) OPML
// directory API: station search and stream URL resolution.
package tunein

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/krperry/mediaAI/pkg/icecast"
)

// DefaultBaseURL is the public radiotime OPML endpoint.
const DefaultBaseURL = "http://opml.radiotime.com/"

const maxResponseSize = 1 << 20

// Station is one audio outline from a directory response.
type Station struct {
	ID          string
	Name        string
	URL         string
	Bitrate     int
	Subtext     string
	GenreID     string
	Reliability int
}

// Client queries the TuneIn directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the directory endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient returns a directory client with sane request timeouts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the audio stations matching query, typically a genre or
// category name.
func (c *Client) Search(ctx context.Context, query string) ([]Station, error) {
	data, err := c.get(ctx, "Search.ashx", url.Values{"query": {query}})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	stations, err := parseStations(data)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return stations, nil
}

// Resolve returns the direct stream URL for a station. Tune.ashx answers
// with a playlist body (bare URLs or M3U/PLS), which is resolved through
// the shared playlist parser.
func (c *Client) Resolve(ctx context.Context, stationID string) (string, error) {
	data, err := c.get(ctx, "Tune.ashx", url.Values{"id": {stationID}})
	if err != nil {
		return "", fmt.Errorf("tune %q: %w", stationID, err)
	}

	streamURL, err := icecast.ResolveBody(string(data))
	if err != nil {
		return "", fmt.Errorf("resolve stream for %q: %w", stationID, err)
	}
	return streamURL, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}
