package calendar

import (
	"context"
	"sync"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
)

// Source provides the raw birthday calendar entries.
type Source interface {
	Entries(ctx context.Context) ([]birthday.Entry, error)
}

// CachingSource wraps a Source and keeps the last successful result. A
// fetch failure returns the previous entries instead of an error, and
// the staleness is surfaced to the status API rather than propagated.
type CachingSource struct {
	source Source

	mu          sync.Mutex
	entries     []birthday.Entry
	lastSuccess time.Time
	stale       bool
	haveResult  bool
}

func NewCachingSource(source Source) *CachingSource {
	return &CachingSource{source: source}
}

// Entries fetches from the underlying source. On failure it falls back
// to the cached result; the error is only returned when there has never
// been a successful fetch.
func (c *CachingSource) Entries(ctx context.Context) ([]birthday.Entry, error) {
	entries, err := c.source.Entries(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if !c.haveResult {
			return nil, err
		}
		c.stale = true
		return c.entries, nil
	}

	c.entries = entries
	c.lastSuccess = time.Now()
	c.stale = false
	c.haveResult = true
	return entries, nil
}

// Stale reports whether the most recent fetch failed and the cached
// entries are being served instead.
func (c *CachingSource) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// LastSuccess returns the time of the last successful fetch, zero if
// none has succeeded yet.
func (c *CachingSource) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}
