package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-router/internal/common/logging"
	"gallery-router/internal/discovery"
	"gallery-router/internal/storage"
)

// fakeStore implements storage.Storage for compiler tests.
type fakeStore struct {
	pagesBySlug map[string]*storage.Page
	settings    map[string]string
}

func (f *fakeStore) FindPagesWithMarker(ctx context.Context, marker string) ([]storage.Page, error) {
	return nil, nil
}

func (f *fakeStore) FindPageBySlug(ctx context.Context, slug string) (*storage.Page, error) {
	return f.pagesBySlug[slug], nil
}

func (f *fakeStore) GetPage(ctx context.Context, id int64) (*storage.Page, error) { return nil, nil }

func (f *fakeStore) SavePage(ctx context.Context, page *storage.Page) (int64, error) {
	return page.ID, nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	return f.settings[key], nil
}

func (f *fakeStore) SetSetting(ctx context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func (f *fakeStore) DeleteSetting(ctx context.Context, key string) error {
	delete(f.settings, key)
	return nil
}

func (f *fakeStore) Health() error { return nil }
func (f *fakeStore) Close() error  { return nil }

func newFakeStore() *fakeStore {
	return &fakeStore{
		pagesBySlug: map[string]*storage.Page{},
		settings:    map[string]string{},
	}
}

func TestCompiler_CompileForPage(t *testing.T) {
	ctx := context.Background()

	t.Run("emits exactly three rules in priority order", func(t *testing.T) {
		store := newFakeStore()
		store.pagesBySlug["gallery"] = &storage.Page{ID: 42, Slug: "gallery", Published: true}

		c := NewCompiler(store, logging.NewDefaultLogger())
		ruleSet := c.CompileForPage(ctx, "gallery", RoutingConfig{})

		require.Len(t, ruleSet, 3)
		assert.Equal(t, PriorityFavorites, ruleSet[0].Priority)
		assert.Equal(t, PriorityCaseDetail, ruleSet[1].Priority)
		assert.Equal(t, PriorityProcedureFilter, ruleSet[2].Priority)
	})

	t.Run("published page routes by internal id", func(t *testing.T) {
		store := newFakeStore()
		store.pagesBySlug["gallery"] = &storage.Page{ID: 42, Slug: "gallery", Published: true}

		c := NewCompiler(store, logging.NewDefaultLogger())
		ruleSet := c.CompileForPage(ctx, "gallery", RoutingConfig{})

		for _, r := range ruleSet {
			assert.Contains(t, r.Template, "page_id=42")
		}
	})

	t.Run("unpublished page falls through to configured id", func(t *testing.T) {
		store := newFakeStore()
		store.pagesBySlug["gallery"] = &storage.Page{ID: 42, Slug: "gallery", Published: false}

		c := NewCompiler(store, logging.NewDefaultLogger())
		ruleSet := c.CompileForPage(ctx, "gallery", RoutingConfig{GalleryPageSlug: "gallery", GalleryPageID: 7})

		for _, r := range ruleSet {
			assert.Contains(t, r.Template, "page_id=7")
		}
	})

	t.Run("unknown slug routes by name", func(t *testing.T) {
		store := newFakeStore()

		c := NewCompiler(store, logging.NewDefaultLogger())
		ruleSet := c.CompileForPage(ctx, "orphan", RoutingConfig{})

		for _, r := range ruleSet {
			assert.Contains(t, r.Template, "pagename=orphan")
		}
	})

	t.Run("blank slug compiles to nothing", func(t *testing.T) {
		c := NewCompiler(newFakeStore(), logging.NewDefaultLogger())

		assert.Empty(t, c.CompileForPage(ctx, "", RoutingConfig{}))
		assert.Empty(t, c.CompileForPage(ctx, "   ", RoutingConfig{}))
	})
}

func TestCompiler_Idempotence(t *testing.T) {
	store := newFakeStore()
	store.pagesBySlug["gallery"] = &storage.Page{ID: 42, Slug: "gallery", Published: true}
	store.settings[storage.SettingGalleryPageSlug] = "gallery"

	pages := []discovery.GalleryPage{
		{Slug: "gallery", InternalID: 42, Published: true},
		{Slug: "results"},
	}

	c := NewCompiler(store, logging.NewDefaultLogger())
	first := c.Compile(context.Background(), pages)
	second := c.Compile(context.Background(), pages)

	assert.Equal(t, first.Rules, second.Rules, "same page set must compile to identical rules")
}

func TestCompiler_TableOrdering(t *testing.T) {
	store := newFakeStore()

	pages := []discovery.GalleryPage{
		{Slug: "gallery"},
		{Slug: "results"},
	}

	c := NewCompiler(store, logging.NewDefaultLogger())
	table := c.Compile(context.Background(), pages)

	require.Len(t, table.Rules, 6)
	for i, want := range []struct {
		slug     string
		priority Priority
	}{
		{"gallery", PriorityFavorites},
		{"gallery", PriorityCaseDetail},
		{"gallery", PriorityProcedureFilter},
		{"results", PriorityFavorites},
		{"results", PriorityCaseDetail},
		{"results", PriorityProcedureFilter},
	} {
		assert.Equal(t, want.slug, table.Rules[i].PageSlug, "rule %d", i)
		assert.Equal(t, want.priority, table.Rules[i].Priority, "rule %d", i)
	}
}

func TestLoadRoutingConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("reads slug and id", func(t *testing.T) {
		store := newFakeStore()
		store.settings[storage.SettingGalleryPageSlug] = "before-after"
		store.settings[storage.SettingGalleryPageID] = "19"

		rc := LoadRoutingConfig(ctx, store)
		assert.Equal(t, "before-after", rc.GalleryPageSlug)
		assert.Equal(t, int64(19), rc.GalleryPageID)
	})

	t.Run("list-valued slug setting uses first entry", func(t *testing.T) {
		store := newFakeStore()
		store.settings[storage.SettingGalleryPageSlug] = `["main-gallery","secondary"]`

		rc := LoadRoutingConfig(ctx, store)
		assert.Equal(t, "main-gallery", rc.GalleryPageSlug)
	})

	t.Run("garbage id is ignored", func(t *testing.T) {
		store := newFakeStore()
		store.settings[storage.SettingGalleryPageID] = "not-a-number"

		rc := LoadRoutingConfig(ctx, store)
		assert.Zero(t, rc.GalleryPageID)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	t.Run("fixed set registered", func(t *testing.T) {
		for _, v := range RegisteredVars() {
			assert.True(t, r.Accepts(v), v)
		}
		assert.Len(t, RegisteredVars(), 6)
	})

	t.Run("target keys always accepted", func(t *testing.T) {
		assert.True(t, r.Accepts("page_id"))
		assert.True(t, r.Accepts("pagename"))
	})

	t.Run("unknown vars rejected", func(t *testing.T) {
		assert.False(t, r.Accepts("utm_source"))
		assert.False(t, r.Accepts("admin"))
	})

	t.Run("re-registration is idempotent", func(t *testing.T) {
		again := NewRegistry()
		for _, v := range RegisteredVars() {
			assert.True(t, again.Accepts(v))
		}
	})
}
