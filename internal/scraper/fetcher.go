package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/normalize"
	"github.com/schoolatlas/schoolatlas/internal/ratelimit"
)

// maxPageSize caps a single fetched page at 10 MiB.
const maxPageSize = 10 << 20

// Fetcher downloads school-list pages politely: per-host rate limiting, a
// stable user agent, and an on-disk page cache so re-runs don't refetch.
type Fetcher struct {
	client     *http.Client
	limiter    *ratelimit.HostLimiter
	userAgent  string
	pagesDir   string
	cachePages bool
	log        *logger.Logger
}

// FetcherConfig carries the scraper settings relevant to fetching.
type FetcherConfig struct {
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	PagesDir          string
	CachePages        bool
}

// NewFetcher creates a fetcher. PagesDir is created lazily on first write.
func NewFetcher(cfg FetcherConfig, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		userAgent:  cfg.UserAgent,
		pagesDir:   cfg.PagesDir,
		cachePages: cfg.CachePages,
		log:        log,
	}
}

// Fetch returns the page body for url, serving from the page cache when
// enabled and populating it after a successful download.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.cachePages {
		if body, ok := f.readCache(url); ok {
			f.log.Debug("serving page from cache", "url", url)
			return body, nil
		}
	}

	host := url
	if u, err := normalize.ParseURL(url); err == nil {
		host = normalize.Host(u)
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	if f.cachePages {
		f.writeCache(url, body)
	}
	return body, nil
}

// cachePath derives a stable filename from the URL.
func (f *Fetcher) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.pagesDir, hex.EncodeToString(sum[:16])+".html")
}

func (f *Fetcher) readCache(url string) ([]byte, bool) {
	body, err := os.ReadFile(f.cachePath(url))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (f *Fetcher) writeCache(url string, body []byte) {
	if err := os.MkdirAll(f.pagesDir, 0o755); err != nil {
		f.log.WithError(err).Warn("creating page cache directory", "dir", f.pagesDir)
		return
	}
	if err := os.WriteFile(f.cachePath(url), body, 0o644); err != nil {
		f.log.WithError(err).Warn("writing page cache", "url", url)
	}
}
