package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/penne-app/penne/internal/logger"
)

// Avatar cache defaults
const (
	DefaultAvatarEntries = 256
	DefaultAvatarTTL     = 10 * time.Minute
)

// Fetcher downloads an object from a storage bucket
type Fetcher interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
}

// AvatarCache is a size-bounded LRU of avatar image bytes keyed by storage
// path. Entries expire after a TTL and concurrent misses for one path share a
// single download.
type AvatarCache struct {
	log     logger.Logger
	fetcher Fetcher
	bucket  string

	cache  *expirable.LRU[string, []byte]
	hits   atomic.Int64
	misses atomic.Int64

	// inflight holds a token per running download. Invalidate removes it so
	// the download does not store what it fetched.
	mu       sync.Mutex
	inflight map[string]uint64
	token    uint64

	group singleflight.Group
}

// AvatarStats counts cache lookups
type AvatarStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewAvatarCache creates a cache over fetcher's bucket. Non-positive
// maxEntries or ttl fall back to the defaults.
func NewAvatarCache(log logger.Logger, fetcher Fetcher, bucket string, maxEntries int, ttl time.Duration) *AvatarCache {
	if maxEntries <= 0 {
		maxEntries = DefaultAvatarEntries
	}
	if ttl <= 0 {
		ttl = DefaultAvatarTTL
	}
	return &AvatarCache{
		log:      log,
		fetcher:  fetcher,
		bucket:   bucket,
		cache:    expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
		inflight: make(map[string]uint64),
	}
}

// CleanAvatarPath validates a storage path and strips leading slashes
func CleanAvatarPath(path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", ErrInvalidAvatarPath
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidAvatarPath
		}
	}
	return path, nil
}

// Get returns the avatar at path, downloading it on a miss
func (c *AvatarCache) Get(ctx context.Context, path string) ([]byte, error) {
	path, err := CleanAvatarPath(path)
	if err != nil {
		return nil, err
	}
	if data, ok := c.cache.Get(path); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)

	// The shared download must not fail because the first caller went away.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (interface{}, error) {
		token := c.begin(path)
		data, err := c.fetcher.Download(fetchCtx, c.bucket, path)
		c.finish(path, token, data, err)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn("Avatar download failed", "path", path, "error", res.Err)
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *AvatarCache) begin(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	c.inflight[path] = c.token
	return c.token
}

// finish stores a download unless the path was invalidated while it ran
func (c *AvatarCache) finish(path string, token uint64, data []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[path] != token {
		return
	}
	delete(c.inflight, path)
	if err == nil {
		c.cache.Add(path, data)
	}
}

// Invalidate drops a cached avatar, e.g. after the user uploads a new one. A
// download already running for path is not cached, and the next Get starts a
// fresh one.
func (c *AvatarCache) Invalidate(path string) {
	path, err := CleanAvatarPath(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.inflight, path)
	c.cache.Remove(path)
	c.mu.Unlock()
	c.group.Forget(path)
}

// Len returns the number of cached entries
func (c *AvatarCache) Len() int {
	return c.cache.Len()
}

// Stats returns the cache counters
func (c *AvatarCache) Stats() AvatarStats {
	return AvatarStats{Entries: c.cache.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
