// Package rules compiles per-page URL-rewrite rules into a routing table and
// matches incoming gallery paths against the published table.
//
// Every gallery page gets exactly three rules. Precedence is an explicit
// field on each rule rather than an artifact of slice order: favorites and
// case-detail both match the same leading path shape, and a looser rule must
// never shadow a more specific one.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gallery-router/internal/common/logging"
	"gallery-router/internal/discovery"
	"gallery-router/internal/storage"
	"gallery-router/internal/taxonomy"
)

// Priority orders rule evaluation within a page. Lower evaluates first.
type Priority int

const (
	// PriorityFavorites matches <slug>/myfavorites exactly.
	PriorityFavorites Priority = iota
	// PriorityCaseDetail matches <slug>/<procedure>/<case identifier>.
	PriorityCaseDetail
	// PriorityProcedureFilter matches <slug>/<procedure>.
	PriorityProcedureFilter
)

func (p Priority) String() string {
	switch p {
	case PriorityFavorites:
		return "favorites"
	case PriorityCaseDetail:
		return "case_detail"
	case PriorityProcedureFilter:
		return "procedure_filter"
	default:
		return "unknown"
	}
}

// RewriteRule maps a path pattern to an internal query-string template.
// Template placeholders ${1}/${2} are filled from pattern capture groups.
type RewriteRule struct {
	Pattern  string   `json:"pattern"`
	Template string   `json:"template"`
	Priority Priority `json:"priority"`
	PageSlug string   `json:"page_slug"`
}

// Table is one compiled routing table. Tables are rebuilt whole per
// compilation pass, never mutated incrementally.
type Table struct {
	Rules      []RewriteRule `json:"rules"`
	CompiledAt time.Time     `json:"compiled_at"`
}

// RoutingConfig carries the settings the compiler needs, loaded once per
// compilation pass instead of read ad hoc per sub-step.
type RoutingConfig struct {
	GalleryPageSlug string
	GalleryPageID   int64
}

// LoadRoutingConfig reads the compiler settings from the settings store.
func LoadRoutingConfig(ctx context.Context, store storage.Storage) RoutingConfig {
	rc := RoutingConfig{}

	if slug, err := store.GetSetting(ctx, storage.SettingGalleryPageSlug); err == nil {
		if slugs := discovery.NormalizeList(slug); len(slugs) > 0 {
			rc.GalleryPageSlug = taxonomy.Slugify(slugs[0])
		}
	}

	if raw, err := store.GetSetting(ctx, storage.SettingGalleryPageID); err == nil && raw != "" {
		var id int64
		if _, err := fmt.Sscanf(raw, "%d", &id); err == nil && id > 0 {
			rc.GalleryPageID = id
		}
	}

	return rc
}

// Compiler builds rewrite rules for discovered gallery pages.
type Compiler struct {
	store  storage.Storage
	logger logging.Logger
}

// NewCompiler creates a rule compiler.
func NewCompiler(store storage.Storage, logger logging.Logger) *Compiler {
	return &Compiler{store: store, logger: logger}
}

// CompileForPage emits the three rewrite rules for one page slug. A blank
// slug is rejected before any rule construction and yields zero rules.
func (c *Compiler) CompileForPage(ctx context.Context, slug string, rc RoutingConfig) []RewriteRule {
	slug = taxonomy.Slugify(slug)
	if slug == "" {
		return nil
	}

	base := c.resolveTargetBase(ctx, slug, rc)
	quoted := regexp.QuoteMeta(slug)

	return []RewriteRule{
		{
			Pattern:  fmt.Sprintf("^%s/myfavorites/?$", quoted),
			Template: base + "&favorites_page=1",
			Priority: PriorityFavorites,
			PageSlug: slug,
		},
		{
			Pattern:  fmt.Sprintf(`^%s/([^/]+)/([A-Za-z0-9._-]+)/?$`, quoted),
			Template: base + "&procedure_title=${1}&case_suffix=${2}",
			Priority: PriorityCaseDetail,
			PageSlug: slug,
		},
		{
			Pattern:  fmt.Sprintf(`^%s/([^/]+)/?$`, quoted),
			Template: base + "&filter_procedure=${1}",
			Priority: PriorityProcedureFilter,
			PageSlug: slug,
		},
	}
}

// Compile builds a whole table for a set of discovered pages. Pages keep
// their discovery order; within a page, CompileForPage already emits rules
// in priority order, so the table needs no further sorting.
func (c *Compiler) Compile(ctx context.Context, pages []discovery.GalleryPage) *Table {
	rc := LoadRoutingConfig(ctx, c.store)

	table := &Table{CompiledAt: time.Now().UTC()}
	for _, page := range pages {
		table.Rules = append(table.Rules, c.CompileForPage(ctx, page.Slug, rc)...)
	}

	return table
}

// resolveTargetBase decides what internal page a rule routes to, evaluated
// once per page slug:
//  1. a published page with this slug routes by internal id
//  2. else the configured gallery page id, when the slug matches the
//     configured gallery slug
//  3. else by slug name; if no such page exists the request 404s upstream,
//     so this is surfaced as a configuration warning, never swallowed
func (c *Compiler) resolveTargetBase(ctx context.Context, slug string, rc RoutingConfig) string {
	page, err := c.store.FindPageBySlug(ctx, slug)
	if err != nil {
		c.logger.Warn("page lookup failed during rule compilation",
			logging.String("slug", slug), logging.Err(err))
	}
	if page != nil && page.Published {
		return fmt.Sprintf("page_id=%d", page.ID)
	}

	if slug == rc.GalleryPageSlug && rc.GalleryPageID > 0 {
		return fmt.Sprintf("page_id=%d", rc.GalleryPageID)
	}

	c.logger.Warn("no page found for gallery slug, routing by name",
		logging.String("slug", slug))
	return "pagename=" + slug
}
