// Package bluebikes fetches and parses the station and trip feeds.
package bluebikes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const userAgent = "bikeflow/1.0"

type Client struct {
	stationsURL string
	tripsURL    string
	location    *time.Location
	client      *http.Client
	logger      *slog.Logger
}

// New returns a feed client. Trip timestamps without an offset are read in loc.
func New(stationsURL, tripsURL string, loc *time.Location, timeout time.Duration, logger *slog.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		stationsURL: stationsURL,
		tripsURL:    tripsURL,
		location:    loc,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With("component", "feed_client"),
	}
}

func (c *Client) Location() *time.Location {
	return c.location
}

// download GETs url and returns the whole body.
func (c *Client) download(ctx context.Context, feed, url, accept string) ([]byte, error) {
	start := time.Now()
	c.logger.Info("starting feed download", "feed", feed, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("feed request failed",
			"feed", feed,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("download %s: %w", feed, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received HTTP response",
		"feed", feed,
		"status_code", resp.StatusCode,
		"content_length", resp.ContentLength,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status: %d", feed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", feed, err)
	}

	c.logger.Info("feed download completed",
		"feed", feed,
		"size_mb", fmt.Sprintf("%.2f", float64(len(data))/(1024*1024)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}
