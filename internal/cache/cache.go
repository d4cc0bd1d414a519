// Package cache layers a process-memory tier over the persistent feed
// snapshot, with a read-time company allow-list filter.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/feed"
	"github.com/lfreitas-dev/hrbridge/internal/store"
)

// RecordCache is an explicit two-tier cache of the fetched employee records.
// The memory tier is valid for the lifetime of the cache object (one run);
// the persistent tier honors the configured TTL, where zero means "valid
// until explicitly cleared".
//
// The allow-list filter runs at every read, never at write: the raw feed is
// what gets cached, so changing the admission list takes effect without
// invalidating the cache.
//
// Not safe for concurrent use; runs are single-threaded by design.
type RecordCache struct {
	store   *store.Store
	ttl     time.Duration
	allowed map[string]struct{}
	now     func() time.Time
	log     *slog.Logger

	mem       []feed.EmployeeRecord
	memLoaded bool
}

// Option configures a RecordCache.
type Option func(*RecordCache)

// WithClock overrides the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *RecordCache) { c.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *RecordCache) { c.log = log }
}

// New builds a RecordCache over st. allowedCompanies may use any leading-zero
// spelling ("004" and "4" are the same company); an empty list disables
// filtering.
func New(st *store.Store, ttl time.Duration, allowedCompanies []string, opts ...Option) *RecordCache {
	c := &RecordCache{
		store: st,
		ttl:   ttl,
		now:   time.Now,
		log:   slog.Default(),
	}
	if len(allowedCompanies) > 0 {
		c.allowed = make(map[string]struct{}, len(allowedCompanies))
		for _, code := range allowedCompanies {
			c.allowed[feed.NormalizeCode(code)] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached, company-filtered record set. ok=false signals the
// caller to re-fetch from the source API. Read errors on the persistent tier
// degrade to a cache miss; they never abort the run.
func (c *RecordCache) Get(ctx context.Context) (records []feed.EmployeeRecord, ok bool) {
	if c.memLoaded {
		return c.FilterAllowed(c.mem), true
	}

	snap, err := c.store.ReadSnapshot(ctx)
	if err != nil {
		c.log.Warn("snapshot read failed, treating as cache miss", "error", err)
		return nil, false
	}
	if snap == nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(snap.WrittenAt) > c.ttl {
		c.log.Debug("snapshot expired", "written_at", snap.WrittenAt, "ttl", c.ttl)
		return nil, false
	}

	var cached []feed.EmployeeRecord
	if err := json.Unmarshal(snap.Payload, &cached); err != nil {
		c.log.Warn("snapshot payload is unreadable, treating as cache miss", "error", err)
		return nil, false
	}

	c.mem = cached
	c.memLoaded = true
	c.log.Debug("snapshot loaded", "records", len(cached), "written_at", snap.WrittenAt)
	return c.FilterAllowed(cached), true
}

// Set stores the raw (unfiltered) record set in both tiers, stamped with the
// current time. A persistent-tier write failure is returned but the memory
// tier is populated regardless, so the current run still benefits.
func (c *RecordCache) Set(ctx context.Context, records []feed.EmployeeRecord) error {
	c.mem = records
	c.memLoaded = true

	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.store.WriteSnapshot(ctx, payload, len(records), c.now())
}

// Invalidate clears both tiers. Maintenance operation.
func (c *RecordCache) Invalidate(ctx context.Context) error {
	c.mem = nil
	c.memLoaded = false
	return c.store.ClearSnapshot(ctx)
}

// FilterAllowed applies the company allow-list. Company codes compare after
// leading-zero normalization; an empty allow-list admits everything.
func (c *RecordCache) FilterAllowed(records []feed.EmployeeRecord) []feed.EmployeeRecord {
	if c.allowed == nil {
		return records
	}
	filtered := make([]feed.EmployeeRecord, 0, len(records))
	for _, r := range records {
		code := feed.NormalizeCode(r.CompanyCode.String())
		if _, ok := c.allowed[code]; ok {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) != len(records) {
		c.log.Debug("company filter applied", "before", len(records), "after", len(filtered))
	}
	return filtered
}
