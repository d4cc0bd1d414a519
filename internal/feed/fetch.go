package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// PagePause is the flat delay between successive page requests. Not a
// backoff policy; the source API rate-limits aggressive pagination.
const PagePause = 300 * time.Millisecond

// DefaultPageSize matches the source API's documented default.
const DefaultPageSize = 50

// Sleeper abstracts the pacing delay so tests run without wall time.
type Sleeper interface {
	Sleep(d time.Duration)
}

// StdSleeper sleeps for real.
type StdSleeper struct{}

func (StdSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Fetcher walks the source employee feed page by page and accumulates a flat
// record list. There is no retry at this layer: a transport failure stops
// pagination keeping what was already accumulated, while a non-404 error
// status fails the whole fetch.
type Fetcher struct {
	Client   *http.Client
	BaseURL  string
	PageSize int
	// Token is the source bearer token, resolved by the caller right
	// before fetching.
	Token   string
	Sleeper Sleeper
	Log     *slog.Logger
}

// FetchAll retrieves every page until one of the stop conditions hits,
// checked in order: HTTP 404, non-200 status, empty body, empty decoded
// page, or a page shorter than the requested size (last-page heuristic; that
// page's records are still kept).
func (f *Fetcher) FetchAll(ctx context.Context) ([]EmployeeRecord, error) {
	log := f.logger()
	sleeper := f.sleeper()
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []EmployeeRecord
	for page := 1; ; page++ {
		records, done, err := f.fetchPage(ctx, page, pageSize, log)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if done {
			break
		}
		sleeper.Sleep(PagePause)
	}

	log.Info("feed fetch complete", "records", len(all))
	return all, nil
}

// fetchPage retrieves a single page. done reports that pagination must stop
// after this page.
func (f *Fetcher) fetchPage(ctx context.Context, page, pageSize int, log *slog.Logger) ([]EmployeeRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL(page, pageSize), nil)
	if err != nil {
		return nil, true, fmt.Errorf("fetch page %d: %w", page, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client().Do(req)
	if err != nil {
		// Transport failure: stop here and let the caller use whatever
		// pages already accumulated. No retry.
		log.Warn("feed page request failed, keeping accumulated pages",
			"page", page, "error", err)
		return nil, true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug("feed exhausted", "page", page)
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("fetch page %d: unexpected status %d", page, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("feed page body read failed, keeping accumulated pages",
			"page", page, "error", err)
		return nil, true, nil
	}
	if len(body) == 0 {
		return nil, true, nil
	}

	records, shape := DecodePage(body)
	if shape == ShapeUnknown {
		log.Warn("feed page has unknown shape, treating as empty", "page", page)
	}
	if len(records) == 0 {
		return nil, true, nil
	}

	log.Debug("feed page fetched", "page", page, "records", len(records), "shape", shape.String())

	// A short page is the last page; keep its records but stop.
	return records, len(records) < pageSize, nil
}

func (f *Fetcher) pageURL(page, pageSize int) string {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	return f.BaseURL + "?" + q.Encode()
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) sleeper() Sleeper {
	if f.Sleeper != nil {
		return f.Sleeper
	}
	return StdSleeper{}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Log != nil {
		return f.Log
	}
	return slog.Default()
}
