// Package storage defines the page repository and settings store consumed by
// the discovery and rule-compilation passes, with SQLite and PostgreSQL
// implementations behind a factory.
package storage

import "context"

// Page is a host-managed content page.
type Page struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

// Well-known settings keys.
const (
	SettingGalleryPageSlug = "gallery_page_slug"
	SettingGalleryPageID   = "gallery_page_id"
	SettingStoredPages     = "gallery_stored_pages"
	SettingFlushRequested  = "flush_requested"
	SettingRulesAdvisory   = "rules_advisory"
	SettingAdminPassword   = "admin_password_hash"
)

// Storage combines the page repository and the settings store.
type Storage interface {
	// FindPagesWithMarker returns every published page whose content contains
	// the gallery embed marker. This is a substring scan, not a parse: a page
	// that merely mentions the marker in plain text is included too. Accepted
	// over-match; the extra rewrite rules it produces are harmless.
	FindPagesWithMarker(ctx context.Context, marker string) ([]Page, error)

	// FindPageBySlug returns the page with the given slug, or nil when none
	// exists.
	FindPageBySlug(ctx context.Context, slug string) (*Page, error)

	// GetPage returns the page with the given id, or nil when none exists.
	GetPage(ctx context.Context, id int64) (*Page, error)

	// SavePage inserts or updates a page by slug and returns its id.
	SavePage(ctx context.Context, page *Page) (int64, error)

	// GetSetting returns the raw value for a settings key, or "" when unset.
	// Legacy values may be scalars where lists are expected; normalization
	// happens at the consuming component's boundary.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting stores a settings value.
	SetSetting(ctx context.Context, key, value string) error

	// DeleteSetting removes a settings key.
	DeleteSetting(ctx context.Context, key string) error

	Health() error
	Close() error
}
