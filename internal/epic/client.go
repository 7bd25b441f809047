// Package epic talks to NASA's EPIC (Earth Polychromatic Imaging Camera) API:
// the per-day metadata endpoint and the image archive.
package epic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/italolelis/epic_wallpaper/internal/retry"
	"github.com/italolelis/epic_wallpaper/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultAPIURL     = "https://epic.gsfc.nasa.gov/api"
	DefaultArchiveURL = "https://epic.gsfc.nasa.gov/archive"

	defaultUserAgent = "epic_wallpaper/1.0"
	errorBodyLimit   = 4096
)

// Collection is an EPIC image collection.
type Collection string

const (
	Natural  Collection = "natural"
	Enhanced Collection = "enhanced"
	Aerosol  Collection = "aerosol"
	Cloud    Collection = "cloud"
)

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(strings.ToLower(strings.TrimSpace(s))); c {
	case Natural, Enhanced, Aerosol, Cloud:
		return c, nil
	}

	return "", fmt.Errorf("unknown collection %q", s)
}

// Format is the archive image format; it is also the file extension.
type Format string

const (
	JPG Format = "jpg"
	PNG Format = "png"
)

// ParseFormat validates an image format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JPG, PNG:
		return f, nil
	}

	return "", fmt.Errorf("unknown image format %q", s)
}

// Formats lists every archive image format.
func Formats() []Format {
	return []Format{JPG, PNG}
}

// Extensions returns the file extension of every format, so a cache can
// recognise frames written by runs with a different format.
func Extensions() []string {
	exts := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		exts = append(exts, f.Ext())
	}

	return exts
}

// Ext returns the file extension without the leading dot.
func (f Format) Ext() string {
	return string(f)
}

// ImageDescriptor is one entry of the metadata endpoint. Its position in the
// response is the capture order.
type ImageDescriptor struct {
	Identifier string      `json:"identifier"`
	Image      string      `json:"image"`
	Caption    string      `json:"caption"`
	Date       string      `json:"date"`
	Centroid   Coordinates `json:"centroid_coordinates"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Options configures a Client. Zero values fall back to the public EPIC
// endpoints, the natural collection, JPG images and retry.Default().
type Options struct {
	APIURL     string
	ArchiveURL string
	Collection Collection
	Format     Format
	Policy     *retry.Policy
	HTTPClient *http.Client
	Logger     *slog.Logger
	Telemetry  *telemetry.Telemetry
	UserAgent  string
}

// Client fetches EPIC metadata and images, retrying every request with the
// same policy.
type Client struct {
	apiURL     string
	archiveURL string
	collection Collection
	format     Format
	policy     retry.Policy
	http       *http.Client
	logger     *slog.Logger
	telemetry  *telemetry.Telemetry
	userAgent  string
}

func NewClient(opts Options) *Client {
	c := &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		archiveURL: strings.TrimRight(opts.ArchiveURL, "/"),
		collection: opts.Collection,
		format:     opts.Format,
		policy:     retry.Default(),
		http:       opts.HTTPClient,
		logger:     opts.Logger,
		telemetry:  opts.Telemetry,
		userAgent:  opts.UserAgent,
	}

	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}

	if c.archiveURL == "" {
		c.archiveURL = DefaultArchiveURL
	}

	if c.collection == "" {
		c.collection = Natural
	}

	if c.format == "" {
		c.format = JPG
	}

	if opts.Policy != nil {
		c.policy = *opts.Policy
	}

	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	return c
}

// Format returns the image format the client downloads.
func (c *Client) Format() Format {
	return c.format
}

// MetadataURL returns the metadata endpoint for the given day.
func (c *Client) MetadataURL(date time.Time) string {
	return fmt.Sprintf("%s/%s/date/%s", c.apiURL, c.collection, date.Format(time.DateOnly))
}

// ImageURL derives the archive URL of an image from its day and identifier.
// The identifier is escaped as a single path segment.
func (c *Client) ImageURL(date time.Time, image string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		c.archiveURL, c.collection, date.Format("2006/01/02"), c.format, url.PathEscape(image), c.format.Ext())
}

// ListImages returns the day's metadata in capture order. An empty slice means
// the day has no images.
func (c *Client) ListImages(ctx context.Context, date time.Time) ([]ImageDescriptor, error) {
	endpoint := c.MetadataURL(date)

	return retry.Value(ctx, c.policyFor("list_images", endpoint), func(ctx context.Context) ([]ImageDescriptor, error) {
		body, err := c.fetch(ctx, "list_images", endpoint)
		if err != nil {
			return nil, err
		}

		var images []ImageDescriptor
		if err := json.Unmarshal(body, &images); err != nil {
			return nil, retry.Permanent(&DecodeError{URL: endpoint, Err: err})
		}

		return images, nil
	})
}

// GrabImage downloads the image at endpoint.
func (c *Client) GrabImage(ctx context.Context, endpoint string) ([]byte, error) {
	return retry.Value(ctx, c.policyFor("grab_image", endpoint), func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, "grab_image", endpoint)
	})
}

func (c *Client) policyFor(operation, endpoint string) retry.Policy {
	p := c.policy
	p.Notify = func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying", "operation", operation, "url", endpoint, "wait", wait, "err", err)
		c.telemetry.RecordRetry(operation)
	}

	return p
}

// fetch performs a single GET and returns the body of a 2xx response.
func (c *Client) fetch(ctx context.Context, operation, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: operation, URL: endpoint, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))

		return nil, &NetworkError{
			Operation:  operation,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Operation: operation, URL: endpoint, Message: "failed to read body: " + err.Error(), Err: err}
	}

	return body, nil
}
