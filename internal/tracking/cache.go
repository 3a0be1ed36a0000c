// Package tracking resolves a face identity once per tracker id and remembers it
// for the rest of the track's lifetime.
package tracking

import (
	"context"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/optix-bridge/optix-bridge/internal/identity"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
)

// Matcher maps an embedding to an identity name.
type Matcher interface {
	Identify(embedding []float32) string
}

// Entry is a snapshot of one resolved track.
type Entry struct {
	TrackID        uint64 `json:"track_id"`
	Identity       string `json:"identity"`
	FirstSeenFrame int64  `json:"first_seen_frame"`
	LastSeenFrame  int64  `json:"last_seen_frame"`
	EmbeddingDim   int    `json:"embedding_dim"`
	// Embedding is the vector the identity was resolved from. It is left out of
	// JSON to keep track listings small.
	Embedding []float32 `json:"-"`
}

type trackEntry struct {
	trackID   uint64
	identity  string
	firstSeen int64
	embedding []float32 // immutable after creation
	lastSeen  atomic.Int64
}

func (e *trackEntry) snapshot() Entry {
	return Entry{
		TrackID:        e.trackID,
		Identity:       e.identity,
		FirstSeenFrame: e.firstSeen,
		LastSeenFrame:  e.lastSeen.Load(),
		EmbeddingDim:   len(e.embedding),
		Embedding:      slices.Clone(e.embedding),
	}
}

// Cache holds resolved identities keyed by track id. A track is looked up against the
// matcher at most once per retention window: the first Resolve that carries an
// embedding wins, later calls reuse its answer.
type Cache struct {
	entries         *gocache.Cache
	group           singleflight.Group
	ttl             time.Duration
	cleanupInterval time.Duration
	metrics         *metrics.TrackingMetrics
	log             logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries after ttl without a Resolve. Zero keeps entries forever.
func WithTTL(ttl, cleanupInterval time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
		c.cleanupInterval = cleanupInterval
	}
}

func WithMetrics(m *metrics.TrackingMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// NewCache creates an empty cache. Expired entries are purged by Run; without Run
// they are still never returned.
func NewCache(opts ...Option) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
	}
	if c.ttl < 0 {
		c.ttl = 0
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = time.Minute
	}

	// cleanupInterval 0 disables go-cache's own janitor goroutine; Run owns cleanup.
	c.entries = gocache.New(c.expiration(), 0)
	c.entries.OnEvicted(func(key string, _ any) {
		c.metrics.Evicted()
		c.log.Trace("track entry removed", logger.String("track_id", key))
	})
	return c
}

func (c *Cache) expiration() time.Duration {
	if c.ttl == 0 {
		return gocache.NoExpiration
	}
	return c.ttl
}

func cacheKey(trackID uint64) string {
	return strconv.FormatUint(trackID, 10)
}

func (c *Cache) lookup(key string) (*trackEntry, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*trackEntry)
	return e, ok
}

// Resolve returns the identity for trackID and whether this frame carried an embedding.
//
//   - cached track: the cached identity; the matcher is not consulted.
//   - unseen track with an embedding: matcher.Identify runs once and the result is cached.
//   - unseen track without an embedding: "unknown", and nothing is cached.
func (c *Cache) Resolve(trackID uint64, frameNum int64, embedding []float32, matcher Matcher) (string, bool) {
	available := len(embedding) > 0
	key := cacheKey(trackID)

	if e, ok := c.lookup(key); ok {
		c.touch(key, e, frameNum)
		c.metrics.Hit()
		return e.identity, available
	}

	if !available {
		c.metrics.Miss()
		return identity.Unknown, false
	}

	v, _, shared := c.group.Do(key, func() (any, error) {
		// another caller may have finished resolving between our lookup and Do
		if e, ok := c.lookup(key); ok {
			return e, nil
		}

		name := identity.Unknown
		if matcher != nil {
			name = matcher.Identify(embedding)
		}

		e := &trackEntry{
			trackID:   trackID,
			identity:  name,
			firstSeen: frameNum,
			embedding: slices.Clone(embedding),
		}
		e.lastSeen.Store(frameNum)
		c.entries.Set(key, e, gocache.DefaultExpiration)

		c.metrics.Resolved()
		c.metrics.SetEntries(c.entries.ItemCount())
		c.log.Debug("track resolved",
			logger.Uint64("track_id", trackID),
			logger.Int64("frame", frameNum),
			logger.String("identity", name))
		return e, nil
	})

	e := v.(*trackEntry)
	if shared || e.firstSeen != frameNum {
		c.touch(key, e, frameNum)
	}
	return e.identity, true
}

// touch records the frame and, with a TTL, extends the entry's lifetime.
func (c *Cache) touch(key string, e *trackEntry, frameNum int64) {
	e.lastSeen.Store(frameNum)
	if c.ttl > 0 {
		c.entries.Set(key, e, gocache.DefaultExpiration)
	}
}

// Entry returns a snapshot of the entry for trackID.
func (c *Cache) Entry(trackID uint64) (Entry, bool) {
	e, ok := c.lookup(cacheKey(trackID))
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Entries returns snapshots of all live entries ordered by track id.
func (c *Cache) Entries() []Entry {
	items := c.entries.Items()
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		if e, ok := item.Object.(*trackEntry); ok {
			out = append(out, e.snapshot())
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.TrackID < b.TrackID:
			return -1
		case a.TrackID > b.TrackID:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

// Forget drops trackID so its next embedding is matched again.
func (c *Cache) Forget(trackID uint64) {
	c.entries.Delete(cacheKey(trackID))
	c.metrics.SetEntries(c.entries.ItemCount())
}

// Flush drops every entry, e.g. after the identity store changed.
func (c *Cache) Flush() {
	c.entries.Flush()
	c.metrics.SetEntries(0)
}

// Run purges expired entries every cleanup interval until ctx is done.
// It returns immediately when no TTL is configured.
func (c *Cache) Run(ctx context.Context) {
	if c.ttl == 0 {
		return
	}

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.entries.DeleteExpired()
			c.metrics.SetEntries(c.entries.ItemCount())
		}
	}
}

// GetLogger returns the tracking module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("tracking")
}
