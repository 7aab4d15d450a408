// Package resolver maps human-readable procedure slugs to canonical numeric
// ids by searching the taxonomy snapshot, with negative-result caching so a
// confirmed miss never triggers a second taxonomy scan before its entry
// expires.
package resolver

import (
	"context"
	"time"

	"gallery-router/internal/cache"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/keys"
	"gallery-router/internal/taxonomy"
)

// absentSentinel is the reserved cache value meaning "looked up and absent".
// It is distinct from a cache miss ("not yet looked up"): collapsing the two
// would repeat expensive taxonomy scans for slugs known not to exist.
const absentSentinel = 0

// Resolver resolves procedure slugs against the taxonomy snapshot.
type Resolver struct {
	provider taxonomy.Provider
	cache    cache.Cache
	keygen   *keys.Generator
	ttl      time.Duration
	logger   logging.Logger
}

// New creates a resolver. ttl bounds how long both positive and negative
// entries persist.
func New(provider taxonomy.Provider, c cache.Cache, keygen *keys.Generator, ttl time.Duration, logger logging.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    c,
		keygen:   keygen,
		ttl:      ttl,
		logger:   logger,
	}
}

// Resolve maps a procedure slug to its canonical numeric id within a
// credential scope. The second return value is false on a confirmed miss.
//
// Resolution order:
//  1. Normalize the slug; an empty result returns a miss with no cache
//     interaction.
//  2. Check the resolution cache: sentinel 0 is a confirmed prior miss,
//     any positive value a prior hit.
//  3. Fetch the taxonomy snapshot. A fetch failure is treated as an empty
//     snapshot and cached as a miss; the next request after TTL expiry
//     retries naturally.
//  4. Scan the snapshot in two full passes: exact slug match first, then
//     slugified display name. The passes are not interleaved because an
//     exact-slug match must always win over a name-derived one regardless
//     of iteration order.
func (r *Resolver) Resolve(ctx context.Context, slug, scope string) (int, bool, error) {
	normalized := taxonomy.Slugify(slug)
	if normalized == "" {
		return 0, false, nil
	}

	if scope == "" {
		// No credential scope configured: resolution is a no-op, not an error.
		r.logger.Debug("slug resolution skipped, no credential scope configured",
			logging.String("slug", normalized))
		return 0, false, nil
	}

	key := r.keygen.ResolutionKey(normalized, scope)

	if raw, found := r.cache.Get(ctx, key); found {
		if id, ok := asInt(raw); ok {
			if id == absentSentinel {
				return 0, false, nil
			}
			return id, true, nil
		}
		// Unreadable entry: fall through and re-resolve.
		r.logger.Warn("discarding unreadable resolution cache entry", logging.String("key", key))
	}

	snapshot, err := r.provider.GetTaxonomy(ctx, scope)
	if err != nil {
		// Treated as an empty snapshot. The miss is cached so a flapping
		// upstream does not get hammered; TTL bounds how long it persists.
		r.logger.Warn("taxonomy fetch failed, caching resolution miss",
			logging.String("slug", normalized), logging.Err(err))
		r.writeEntry(ctx, key, absentSentinel)
		return 0, false, nil
	}

	if id, ok := r.search(snapshot, normalized); ok {
		r.writeEntry(ctx, key, id)
		return id, true, nil
	}

	r.writeEntry(ctx, key, absentSentinel)
	return 0, false, nil
}

// search runs the two-pass match over the snapshot. Each pass terminates on
// the first match; nodes without numeric ids are skipped entirely.
func (r *Resolver) search(snapshot *taxonomy.Snapshot, normalized string) (int, bool) {
	for _, category := range snapshot.Data {
		for i := range category.Procedures {
			proc := &category.Procedures[i]
			if proc.Slug != normalized {
				continue
			}
			if id, ok := proc.CanonicalID(); ok {
				return id, true
			}
		}
	}

	for _, category := range snapshot.Data {
		for i := range category.Procedures {
			proc := &category.Procedures[i]
			if taxonomy.Slugify(proc.Name) != normalized {
				continue
			}
			if id, ok := proc.CanonicalID(); ok {
				return id, true
			}
		}
	}

	return 0, false
}

func (r *Resolver) writeEntry(ctx context.Context, key string, id int) {
	if err := r.cache.Set(ctx, key, id, r.ttl); err != nil {
		// A failed cache write only costs a duplicate scan later.
		r.logger.Warn("failed to write resolution cache entry",
			logging.String("key", key), logging.Err(err))
	}
}

// asInt coerces a cached value back to an int. Redis-backed caches round-trip
// numbers through JSON and hand back float64.
func asInt(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
