package panel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // logo decoders
	_ "image/jpeg" // logo decoders
	_ "image/png"  // logo decoders
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // logo decoders

	"github.com/unklstewy/flightboard/pkg/config"
)

const (
	// DefaultLogoURLTemplate is queried with the airline's web domain.
	DefaultLogoURLTemplate = "https://logo.clearbit.com/{domain}"

	// maxLogoBytes bounds the body read from the logo service.
	maxLogoBytes = 2 << 20
)

// ErrUnexpectedStatus is returned when the logo service answers non-2xx.
var ErrUnexpectedStatus = errors.New("unexpected logo status")

// LogoSource supplies an already-sized logo for an airline name, or nil.
type LogoSource interface {
	Logo(ctx context.Context, airline string) image.Image
}

// LogoFetcher downloads airline logos by looking the airline name up in a
// static name -> domain table. Decoded and resized logos are kept in a
// small LRU keyed by domain; failures are not cached.
type LogoFetcher struct {
	domains     map[string]string
	urlTemplate string
	width       uint
	height      uint
	httpClient  *http.Client
	cache       *lru.Cache[string, image.Image]
	logger      *slog.Logger
}

// NewLogoFetcher creates a fetcher from the logo config and airline table.
func NewLogoFetcher(cfg config.LogoConfig, domains map[string]string, logger *slog.Logger) *LogoFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	template := cfg.URLTemplate
	if template == "" {
		template = DefaultLogoURLTemplate
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	f := &LogoFetcher{
		domains:     domains,
		urlTemplate: template,
		width:       uint(cfg.Width),
		height:      uint(cfg.Height),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, image.Image](cfg.CacheSize)
		if err == nil {
			f.cache = cache
		}
	}
	return f
}

// Logo returns the resized logo for airline, or nil when the airline has
// no configured domain or the fetch fails.
func (f *LogoFetcher) Logo(ctx context.Context, airline string) image.Image {
	domain, ok := f.domains[airline]
	if !ok || domain == "" {
		f.logger.Debug("No logo domain for airline", "airline", airline)
		return nil
	}

	if f.cache != nil {
		if img, ok := f.cache.Get(domain); ok {
			return img
		}
	}

	img, err := f.fetch(ctx, domain)
	if err != nil {
		f.logger.Warn("Logo fetch failed", "airline", airline, "error", err)
		return nil
	}

	logo := resize.Resize(f.width, f.height, img, resize.Lanczos3)
	if f.cache != nil {
		f.cache.Add(domain, logo)
	}
	return logo
}

// URL returns the logo URL for a domain.
func (f *LogoFetcher) URL(domain string) string {
	return strings.ReplaceAll(f.urlTemplate, "{domain}", domain)
}

func (f *LogoFetcher) fetch(ctx context.Context, domain string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(domain), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read logo: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo: %w", err)
	}
	return img, nil
}
