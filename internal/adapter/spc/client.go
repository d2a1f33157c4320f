// Package spc retrieves daily storm report files from the Storm Prediction Center.
package spc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
	"github.com/couchcryptid/storm-data-aggregator/internal/observability"
)

// sectionHeaders maps each category to the heading of its table on the daily page.
var sectionHeaders = map[domain.Category]string{
	domain.Tornado: "Tornado Reports",
	domain.Hail:    "Hail Reports",
	domain.Wind:    "Wind Reports",
}

// Client talks to the SPC climatology report pages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Client. Each CSV download is attempted up to retries
// times, waiting retryDelay before the first retry and doubling after that.
func NewClient(baseURL string, timeout time.Duration, retries int, retryDelay time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    max(retries, 1),
		retryDelay: retryDelay,
		logger:     logger,
		metrics:    metrics,
	}
}

// PageURL is the daily report page for day.
func (c *Client) PageURL(day time.Time) string {
	return fmt.Sprintf("%s/%s_rpts.html", c.baseURL, domain.FileDateToken(day))
}

// CSVURL is the category's report file for day.
func (c *Client) CSVURL(day time.Time, category domain.Category) string {
	return fmt.Sprintf("%s/%s_rpts_%s.csv", c.baseURL, domain.FileDateToken(day), category)
}

// ReportCategories inspects the daily page and returns the categories that
// have at least one report.
func (c *Client) ReportCategories(ctx context.Context, day time.Time) (map[domain.Category]bool, error) {
	resp, err := c.get(ctx, c.PageURL(day))
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("page", "error").Inc()
		return nil, fmt.Errorf("request report page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.FetchRequests.WithLabelValues("page", "error").Inc()
		return nil, fmt.Errorf("report page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("page", "error").Inc()
		return nil, fmt.Errorf("parse report page: %w", err)
	}
	c.metrics.FetchRequests.WithLabelValues("page", "success").Inc()
	return categoriesFromPage(doc), nil
}

// categoriesFromPage finds the section header cells. A section whose next row
// is highlighted with "No reports received" does not count.
func categoriesFromPage(doc *goquery.Document) map[domain.Category]bool {
	found := make(map[domain.Category]bool)
	doc.Find(`th[colspan="8"]`).Each(func(_ int, th *goquery.Selection) {
		text := strings.TrimSpace(th.Text())
		for category, heading := range sectionHeaders {
			if !strings.HasPrefix(text, heading) {
				continue
			}
			next := th.Closest("tr").Next()
			note := strings.ToLower(strings.TrimSpace(next.Find("td.highlight").First().Text()))
			if strings.Contains(note, "no reports received") {
				continue
			}
			found[category] = true
		}
	})
	return found
}

// FetchCSV downloads one category's report file, retrying server errors,
// rate limiting and network failures.
func (c *Client) FetchCSV(ctx context.Context, day time.Time, category domain.Category) ([]byte, error) {
	url := c.CSVURL(day, category)

	var body []byte
	operation := func() error {
		resp, err := c.get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s: %w", url, err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.FetchRequests.WithLabelValues("csv", "retry").Inc()
		c.logger.Warn("download failed, retrying", "url", url, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		c.metrics.FetchRequests.WithLabelValues("csv", "error").Inc()
		return nil, err
	}
	c.metrics.FetchRequests.WithLabelValues("csv", "success").Inc()
	return body, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retries-1)), ctx)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "storm-data-aggregator/1.0")
	return c.httpClient.Do(req)
}
