package access

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProfileCacheSize bounds the cache; one entry per locally observed
// account is plenty for a single-user surface plus an admin queue.
var DefaultProfileCacheSize = 128

// ProfileCache merges a raw identity with its fetched profile record and
// keeps the last known good copy so a flaky backend degrades reads instead
// of failing them.
type ProfileCache struct {
	backend  Backend
	entries  *lru.Cache[string, *Profile]
	logger   Logger
	provider LoggerProvider
}

type ProfileCacheOption func(*ProfileCache)

// WithCacheLogger overrides the logger used for fetch failures.
func WithCacheLogger(logger Logger) ProfileCacheOption {
	return func(c *ProfileCache) {
		c.provider, c.logger = ResolveLogger("access.profile_cache", c.provider, logger)
	}
}

// WithCacheLoggerProvider resolves the cache logger from a provider.
func WithCacheLoggerProvider(provider LoggerProvider) ProfileCacheOption {
	return func(c *ProfileCache) {
		c.provider, c.logger = ResolveLogger("access.profile_cache", provider, c.logger)
	}
}

// WithCacheSize bounds the number of retained profiles.
func WithCacheSize(size int) ProfileCacheOption {
	return func(c *ProfileCache) {
		if size <= 0 {
			return
		}
		if entries, err := lru.New[string, *Profile](size); err == nil {
			c.entries = entries
		}
	}
}

// NewProfileCache creates a cache reading through the given backend.
func NewProfileCache(backend Backend, opts ...ProfileCacheOption) *ProfileCache {
	provider, logger := ResolveLogger("access.profile_cache", nil, nil)

	entries, err := lru.New[string, *Profile](DefaultProfileCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}

	cache := &ProfileCache{
		backend:  backend,
		entries:  entries,
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}

	return cache
}

// Hydrate fetches the profile for the identity and caches it. On fetch
// failure it returns the last known good copy (or nil when none exists)
// together with the error, so callers choose between degraded and
// last-known-good policies. The returned profile never aliases the cache.
func (c *ProfileCache) Hydrate(ctx context.Context, identity Identity) (*Profile, error) {
	if identity == nil {
		return nil, nil
	}

	profile, err := c.backend.GetProfile(ctx, identity.ID())
	if err != nil {
		c.logger.Warn("profile fetch failed, serving last known good",
			"user_id", identity.ID(),
			"error", err,
		)

		if stale, ok := c.entries.Get(identity.ID()); ok {
			return stale.Clone(), wrapBackendErr(err, "profile fetch failed")
		}

		return nil, wrapBackendErr(err, "profile fetch failed")
	}

	c.entries.Add(identity.ID(), profile.Clone())

	return profile, nil
}

// Peek returns the cached profile without touching the backend.
func (c *ProfileCache) Peek(id string) (*Profile, bool) {
	profile, ok := c.entries.Peek(id)
	if !ok {
		return nil, false
	}
	return profile.Clone(), true
}

// Invalidate drops the cached profile for the given account.
func (c *ProfileCache) Invalidate(id string) {
	c.entries.Remove(id)
}

// Purge drops every cached profile, e.g. on logout.
func (c *ProfileCache) Purge() {
	c.entries.Purge()
}
