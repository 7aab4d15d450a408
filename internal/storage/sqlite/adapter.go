// Package sqlite provides the SQLite-backed storage adapter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"gallery-router/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	slug      TEXT NOT NULL UNIQUE,
	title     TEXT NOT NULL DEFAULT '',
	content   TEXT NOT NULL DEFAULT '',
	published INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_published ON pages(published);
`

// Adapter implements storage.Storage on SQLite.
type Adapter struct {
	db *sql.DB
}

func init() {
	storage.RegisterOpener("sqlite", func(cfg storage.FactoryConfig) (storage.Storage, error) {
		return New(cfg.Path)
	})
}

// New opens (and if needed initializes) the SQLite database at path.
func New(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &Adapter{db: db}, nil
}

func (a *Adapter) FindPagesWithMarker(ctx context.Context, marker string) ([]storage.Page, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, slug, title, content, published FROM pages
		 WHERE published = 1 AND instr(content, ?) > 0 ORDER BY id`, marker)
	if err != nil {
		return nil, fmt.Errorf("content scan failed: %w", err)
	}
	defer rows.Close()

	var pages []storage.Page
	for rows.Next() {
		var p storage.Page
		var published int
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &published); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		p.Published = published != 0
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (a *Adapter) FindPageBySlug(ctx context.Context, slug string) (*storage.Page, error) {
	return a.queryOne(ctx,
		`SELECT id, slug, title, content, published FROM pages WHERE slug = ?`, slug)
}

func (a *Adapter) GetPage(ctx context.Context, id int64) (*storage.Page, error) {
	return a.queryOne(ctx,
		`SELECT id, slug, title, content, published FROM pages WHERE id = ?`, id)
}

func (a *Adapter) queryOne(ctx context.Context, query string, arg interface{}) (*storage.Page, error) {
	var p storage.Page
	var published int
	err := a.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &published)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("page lookup failed: %w", err)
	}
	p.Published = published != 0
	return &p, nil
}

func (a *Adapter) SavePage(ctx context.Context, page *storage.Page) (int64, error) {
	published := 0
	if page.Published {
		published = 1
	}

	res, err := a.db.ExecContext(ctx,
		`INSERT INTO pages (slug, title, content, published) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET title = excluded.title,
		 content = excluded.content, published = excluded.published`,
		page.Slug, page.Title, page.Content, published)
	if err != nil {
		return 0, fmt.Errorf("failed to save page: %w", err)
	}

	if existing, err := a.FindPageBySlug(ctx, page.Slug); err == nil && existing != nil {
		return existing.ID, nil
	}
	return res.LastInsertId()
}

func (a *Adapter) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := a.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("setting lookup failed: %w", err)
	}
	return value, nil
}

func (a *Adapter) SetSetting(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteSetting(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
