package logstore

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/newhook/cilog/internal/travis"
)

// ParseCache memoises parse results by log digest, so a log shown and then
// reported on is only parsed once. Failed parses are cached too.
type ParseCache struct {
	items  *gocache.Cache
	opts   []travis.Option
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats counts lookups since the cache was created.
type CacheStats struct {
	Hits   int64
	Misses int64
}

type parsed struct {
	res *travis.Result
	err error
}

// NewParseCache returns a cache whose entries expire after ttl. Every parse
// uses opts.
func NewParseCache(ttl time.Duration, opts ...travis.Option) *ParseCache {
	return &ParseCache{
		items: gocache.New(ttl, 2*ttl),
		opts:  opts,
	}
}

// Parse returns the parse of body, reusing an earlier result for the same
// content.
func (c *ParseCache) Parse(body string) (*travis.Result, error) {
	key := Digest(body)
	if p, ok := c.lookup(key); ok {
		return p.res, p.err
	}
	c.misses.Add(1)
	res, err := travis.Parse(body, c.opts...)
	c.items.SetDefault(key, parsed{res: res, err: err})
	return res, err
}

// ParseJob parses a stored job, using the digest recorded with it.
func (c *ParseCache) ParseJob(job *Job) (*travis.Result, error) {
	if job.Digest != "" {
		if p, ok := c.lookup(job.Digest); ok {
			return p.res, p.err
		}
	}
	return c.Parse(job.Body)
}

func (c *ParseCache) lookup(key string) (parsed, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return parsed{}, false
	}
	c.hits.Add(1)
	return v.(parsed), true
}

// Stats returns the hit and miss counts.
func (c *ParseCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len is the number of cached results, including expired ones not yet
// evicted.
func (c *ParseCache) Len() int {
	return c.items.ItemCount()
}

// Flush drops every cached result.
func (c *ParseCache) Flush() {
	c.items.Flush()
}
