// Package collyscraper implements the fast-path probe Scraper using gocolly.
package collyscraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/gardenbot/stock-watcher/internal/scraper"
	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Scraper implements stock.Scraper using the Colly collector. It fetches the
// raw page without executing JavaScript; on a client-rendered page it
// typically returns zero items and the detector promotes to headless.
type Scraper struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a probe Scraper.
func New(cfg Config) *Scraper {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Scraper{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Scrape executes a single HTTP GET and parses any stock rows present in the
// static HTML.
func (s *Scraper) Scrape(ctx context.Context, url string) (stock.ScrapeResult, error) {
	var (
		result   stock.ScrapeResult
		fetchErr error
	)
	start := time.Now()
	collector := s.buildCollector(start, &result, &fetchErr)

	if err := s.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return stock.ScrapeResult{}, err
	}

	items, err := scraper.ParseItems(result.HTML)
	if err != nil {
		return stock.ScrapeResult{}, err
	}
	result.Items = items
	return result, nil
}

func (s *Scraper) buildCollector(
	start time.Time,
	result *stock.ScrapeResult,
	fetchErr *error,
) *colly.Collector {
	collector := s.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	timeout := s.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(s.transport)

	collector.OnResponse(func(r *colly.Response) {
		*result = stock.ScrapeResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			HTML:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

func (s *Scraper) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("probe fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("probe visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("probe response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
