package photohistory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxBytes    = 50 << 20 // 50MB, full-resolution photos
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (compatible; go-photohistory/1.0)"
)

// HTTPLibrary fetches photos by URL. The asset's Source is the URL; when it
// is empty the ID is used.
type HTTPLibrary struct {
	Client    *http.Client  // default: http.DefaultClient
	UserAgent string        // default: "Mozilla/5.0 (compatible; go-photohistory/1.0)"
	MaxBytes  int64         // max response body size (default: 50MB)
	Timeout   time.Duration // per-request timeout (default: 30s)
	Cache     Cache         // optional: caches fetched bytes by URL
}

// withDefaults returns a copy with zero-value fields filled, leaving the
// shared receiver untouched while workers fetch concurrently.
func (l HTTPLibrary) withDefaults() HTTPLibrary {
	if l.Client == nil {
		l.Client = http.DefaultClient
	}
	if l.UserAgent == "" {
		l.UserAgent = defaultUserAgent
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = defaultMaxBytes
	}
	if l.Timeout <= 0 {
		l.Timeout = defaultHTTPTimeout
	}
	return l
}

// Fetch downloads the asset. Non-200 responses, non-image content types and
// truncated bodies report ErrNotFound; transport errors are returned wrapped.
func (l *HTTPLibrary) Fetch(ctx context.Context, asset Asset) (*ImageData, error) {
	cfg := l.withDefaults()

	url := asset.Source
	if url == "" {
		url = asset.ID
	}

	var cacheKey string
	if cfg.Cache != nil {
		cacheKey = cfg.Cache.Key("url", url)
		var cached ImageData
		if cfg.Cache.Get(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	img, err := cfg.download(ctx, url)
	if err != nil {
		return nil, err
	}

	if cfg.Cache != nil {
		cfg.Cache.Set(ctx, cacheKey, *img)
	}
	return img, nil
}

func (l HTTPLibrary) download(ctx context.Context, url string) (*ImageData, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, url, err)
	}
	req.Header.Set("User-Agent", l.UserAgent)

	resp, err := l.Client.Do(req) //nolint:gosec // G107: URL is caller-supplied by design
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrNotFound, url, resp.StatusCode)
	}

	ct := stripMIMEParams(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s: content type %q", ErrNotFound, url, ct)
	}

	// Read one extra byte to detect bodies over the limit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) == 0 || int64(len(data)) > l.MaxBytes {
		return nil, fmt.Errorf("%w: %s: body size %d", ErrNotFound, url, len(data))
	}

	img := &ImageData{Data: data, MIMEType: ct, Orientation: OrientationUp}
	if meta := ExtractPhotoMetadata(data, url); meta != nil {
		img.Orientation = meta.Orientation
	}
	return img, nil
}
