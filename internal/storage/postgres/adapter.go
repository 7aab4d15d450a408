// Package postgres provides the PostgreSQL-backed storage adapter using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gallery-router/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id        BIGSERIAL PRIMARY KEY,
	slug      TEXT NOT NULL UNIQUE,
	title     TEXT NOT NULL DEFAULT '',
	content   TEXT NOT NULL DEFAULT '',
	published BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_published ON pages(published);
`

// Adapter implements storage.Storage on PostgreSQL.
type Adapter struct {
	pool *pgxpool.Pool
}

func init() {
	storage.RegisterOpener("postgres", func(cfg storage.FactoryConfig) (storage.Storage, error) {
		return New(Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.Database,
			User:     cfg.User,
			Password: cfg.Password,
			SSLMode:  cfg.SSLMode,
		})
	})
}

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// New connects to PostgreSQL and initializes the schema.
func New(cfg Config) (*Adapter, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}

	return &Adapter{pool: pool}, nil
}

func (a *Adapter) FindPagesWithMarker(ctx context.Context, marker string) ([]storage.Page, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, slug, title, content, published FROM pages
		 WHERE published AND content LIKE '%' || $1 || '%' ORDER BY id`, marker)
	if err != nil {
		return nil, fmt.Errorf("content scan failed: %w", err)
	}
	defer rows.Close()

	var pages []storage.Page
	for rows.Next() {
		var p storage.Page
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.Published); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (a *Adapter) FindPageBySlug(ctx context.Context, slug string) (*storage.Page, error) {
	return a.queryOne(ctx,
		`SELECT id, slug, title, content, published FROM pages WHERE slug = $1`, slug)
}

func (a *Adapter) GetPage(ctx context.Context, id int64) (*storage.Page, error) {
	return a.queryOne(ctx,
		`SELECT id, slug, title, content, published FROM pages WHERE id = $1`, id)
}

func (a *Adapter) queryOne(ctx context.Context, query string, arg interface{}) (*storage.Page, error) {
	var p storage.Page
	err := a.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.Published)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("page lookup failed: %w", err)
	}
	return &p, nil
}

func (a *Adapter) SavePage(ctx context.Context, page *storage.Page) (int64, error) {
	var id int64
	err := a.pool.QueryRow(ctx,
		`INSERT INTO pages (slug, title, content, published) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title,
		 content = EXCLUDED.content, published = EXCLUDED.published
		 RETURNING id`,
		page.Slug, page.Title, page.Content, page.Published).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save page: %w", err)
	}
	return id, nil
}

func (a *Adapter) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := a.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("setting lookup failed: %w", err)
	}
	return value, nil
}

func (a *Adapter) SetSetting(ctx context.Context, key, value string) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteSetting(ctx context.Context, key string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

func (a *Adapter) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.pool.Ping(ctx)
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}
