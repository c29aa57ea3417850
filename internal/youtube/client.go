// Package youtube fetches video metadata and original thumbnails from
// YouTube's public endpoints. No API key is required.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultOEmbedURL        = "https://www.youtube.com/oembed"
	DefaultThumbnailBaseURL = "https://i.ytimg.com/vi"

	maxThumbnailBytes = 10 << 20
	userAgent         = "thumbwatch/1.0"
)

var (
	// ErrUnavailable covers transport failures, timeouts and unexpected
	// upstream statuses.
	ErrUnavailable = errors.New("youtube: upstream unavailable")
	// ErrInvalidMetadata means upstream answered but the video has no usable
	// metadata (removed, private, not embeddable, empty title).
	ErrInvalidMetadata = errors.New("youtube: invalid metadata")
)

// Thumbnail variants in preference order.
var thumbnailVariants = []string{"maxresdefault.jpg", "hqdefault.jpg"}

type Metadata struct {
	Title string
}

type Thumbnail struct {
	// URL is the variant that was actually served.
	URL  string
	Data []byte
}

type Client struct {
	oembedURL        string
	thumbnailBaseURL string
	http             *http.Client
	titlePolicy      *bluemonday.Policy
}

func NewClient(oembedURL, thumbnailBaseURL string, timeout time.Duration) *Client {
	oembedURL = strings.TrimSpace(oembedURL)
	if oembedURL == "" {
		oembedURL = DefaultOEmbedURL
	}
	thumbnailBaseURL = strings.TrimSpace(thumbnailBaseURL)
	if thumbnailBaseURL == "" {
		thumbnailBaseURL = DefaultThumbnailBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		oembedURL:        oembedURL,
		thumbnailBaseURL: strings.TrimRight(thumbnailBaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		titlePolicy: bluemonday.StrictPolicy(),
	}
}

type oembedResponse struct {
	Title string `json:"title"`
}

func (c *Client) FetchMetadata(ctx context.Context, videoID string) (Metadata, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Metadata{}, fmt.Errorf("%w: videoID is required", ErrInvalidMetadata)
	}

	u, err := url.Parse(c.oembedURL)
	if err != nil {
		return Metadata{}, err
	}
	q := u.Query()
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	resp, err := c.get(ctx, u.String(), "application/json")
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: oembed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return Metadata{}, fmt.Errorf("%w: oembed status %d for %s", ErrInvalidMetadata, resp.StatusCode, videoID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return Metadata{}, fmt.Errorf("%w: oembed status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out oembedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Metadata{}, fmt.Errorf("%w: decode oembed: %w", ErrInvalidMetadata, err)
	}

	title := c.cleanText(out.Title)
	if title == "" {
		return Metadata{}, fmt.Errorf("%w: empty title for %s", ErrInvalidMetadata, videoID)
	}
	return Metadata{Title: title}, nil
}

// FetchThumbnail downloads the best available thumbnail, falling back to
// lower resolutions when a variant is missing or the request fails.
func (c *Client) FetchThumbnail(ctx context.Context, videoID string) (Thumbnail, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Thumbnail{}, fmt.Errorf("%w: videoID is required", ErrUnavailable)
	}

	var errs []error
	for _, variant := range thumbnailVariants {
		thumbURL := c.ThumbnailURL(videoID, variant)
		data, err := c.download(ctx, thumbURL)
		if err == nil {
			return Thumbnail{URL: thumbURL, Data: data}, nil
		}
		if ctx.Err() != nil {
			return Thumbnail{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
		slog.Debug("thumbnail variant unavailable", "video_id", videoID, "variant", variant, "error", err)
		errs = append(errs, err)
	}
	return Thumbnail{}, fmt.Errorf("%w: thumbnail for %s: %w", ErrUnavailable, videoID, errors.Join(errs...))
}

func (c *Client) ThumbnailURL(videoID, variant string) string {
	return c.thumbnailBaseURL + "/" + url.PathEscape(videoID) + "/" + variant
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.get(ctx, rawURL, "image/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("GET %s: empty body", rawURL)
	}
	if len(data) > maxThumbnailBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", rawURL, maxThumbnailBytes)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	return c.http.Do(req)
}

// cleanText strips markup, decodes entities, applies NFC and collapses
// whitespace.
func (c *Client) cleanText(s string) string {
	s = html.UnescapeString(c.titlePolicy.Sanitize(s))
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
