// Package discovery finds every host-managed content page that hosts the
// gallery, merging three sources: a content scan for the embed marker, the
// configured slug list, and a legacy stored-path fallback.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gallery-router/internal/cache"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/keys"
	"gallery-router/internal/storage"
	"gallery-router/internal/taxonomy"
)

// GalleryPage is a discovered gallery-hosting page. InternalID is 0 when the
// page repository has no page for the slug.
type GalleryPage struct {
	Slug       string `json:"slug"`
	InternalID int64  `json:"internal_id,omitempty"`
	Published  bool   `json:"published"`
}

// Discoverer produces the deduplicated set of gallery pages.
type Discoverer struct {
	store   storage.Storage
	cache   cache.Cache
	keygen  *keys.Generator
	marker  string
	scanTTL time.Duration
	logger  logging.Logger
}

// New creates a page discoverer. scanTTL bounds how long the content-scan
// result is reused before the database is scanned again.
func New(store storage.Storage, c cache.Cache, keygen *keys.Generator, marker string, scanTTL time.Duration, logger logging.Logger) *Discoverer {
	return &Discoverer{
		store:   store,
		cache:   c,
		keygen:  keygen,
		marker:  marker,
		scanTTL: scanTTL,
		logger:  logger,
	}
}

// DiscoverPages merges all sources into a deduplicated, first-seen-wins page
// list. A failing source is logged and skipped; discovery never aborts the
// compilation pass that consumes it.
//
// Sources, in merge order:
//   - A: published pages whose content contains the embed marker (cached)
//   - B: the configured gallery slug list
//   - C: legacy stored page paths, consulted only when B yields nothing
func (d *Discoverer) DiscoverPages(ctx context.Context) []GalleryPage {
	var pages []GalleryPage
	seen := make(map[string]bool)

	add := func(p GalleryPage) {
		p.Slug = strings.TrimSpace(p.Slug)
		if p.Slug == "" || seen[p.Slug] {
			return
		}
		seen[p.Slug] = true
		pages = append(pages, p)
	}

	for _, p := range d.scanPages(ctx) {
		add(p)
	}

	configSlugs := d.configuredSlugs(ctx)
	for _, slug := range configSlugs {
		add(d.lookupPage(ctx, slug))
	}

	if len(configSlugs) == 0 {
		for _, path := range d.legacyPaths(ctx) {
			slug := lastPathSegment(path)
			if slug == "" {
				continue
			}
			add(d.lookupPage(ctx, slug))
		}
	}

	return pages
}

// InvalidateScanCache drops the cached content-scan result. Called whenever
// rules are explicitly re-flushed.
func (d *Discoverer) InvalidateScanCache(ctx context.Context) {
	key := d.keygen.ContentScanKey(d.marker)
	if err := d.cache.Delete(ctx, key); err != nil {
		d.logger.Warn("failed to invalidate content-scan cache", logging.Err(err))
	}
}

// scanPages returns source A, serving from cache when a scan ran recently.
// The scan is a substring match over page content; a page that merely
// mentions the marker is included too. Known over-match, carried forward
// deliberately: the extra rewrite rules it yields are harmless.
func (d *Discoverer) scanPages(ctx context.Context) []GalleryPage {
	key := d.keygen.ContentScanKey(d.marker)

	if raw, found := d.cache.Get(ctx, key); found {
		if cached, ok := decodeScanEntry(raw); ok {
			return cached
		}
		d.logger.Warn("discarding unreadable content-scan cache entry", logging.String("key", key))
	}

	found, err := d.store.FindPagesWithMarker(ctx, d.marker)
	if err != nil {
		d.logger.Warn("content scan failed, skipping source", logging.Err(err))
		return nil
	}

	pages := make([]GalleryPage, 0, len(found))
	for _, p := range found {
		pages = append(pages, GalleryPage{Slug: p.Slug, InternalID: p.ID, Published: p.Published})
	}

	if data, err := json.Marshal(pages); err == nil {
		if err := d.cache.Set(ctx, key, string(data), d.scanTTL); err != nil {
			d.logger.Warn("failed to cache content-scan result", logging.Err(err))
		}
	}

	return pages
}

func (d *Discoverer) configuredSlugs(ctx context.Context) []string {
	raw, err := d.store.GetSetting(ctx, storage.SettingGalleryPageSlug)
	if err != nil {
		d.logger.Warn("failed to read configured gallery slugs", logging.Err(err))
		return nil
	}
	return NormalizeList(raw)
}

func (d *Discoverer) legacyPaths(ctx context.Context) []string {
	raw, err := d.store.GetSetting(ctx, storage.SettingStoredPages)
	if err != nil {
		d.logger.Warn("failed to read legacy stored pages", logging.Err(err))
		return nil
	}
	return NormalizeList(raw)
}

// lookupPage enriches a slug with repository data when a page exists for it.
// A missing or failing lookup still yields the slug so rule compilation can
// fall back to routing by name.
func (d *Discoverer) lookupPage(ctx context.Context, slug string) GalleryPage {
	slug = taxonomy.Slugify(slug)
	page := GalleryPage{Slug: slug}

	found, err := d.store.FindPageBySlug(ctx, slug)
	if err != nil {
		d.logger.Warn("page lookup failed", logging.String("slug", slug), logging.Err(err))
		return page
	}
	if found != nil {
		page.InternalID = found.ID
		page.Published = found.Published
	}
	return page
}

func decodeScanEntry(raw interface{}) ([]GalleryPage, bool) {
	str, ok := raw.(string)
	if !ok {
		return nil, false
	}
	var pages []GalleryPage
	if err := json.Unmarshal([]byte(str), &pages); err != nil {
		return nil, false
	}
	return pages, true
}

func lastPathSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			return s
		}
	}
	return ""
}
