package flush

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-router/internal/cache"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/discovery"
	"gallery-router/internal/keys"
	"gallery-router/internal/redis"
	"gallery-router/internal/rules"
	"gallery-router/internal/storage"
)

type fakeStore struct {
	markerPages []storage.Page
	pagesBySlug map[string]*storage.Page
	settings    map[string]string
	scanCalls   int
}

func (f *fakeStore) FindPagesWithMarker(ctx context.Context, marker string) ([]storage.Page, error) {
	f.scanCalls++
	return f.markerPages, nil
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

func newTestController(store *fakeStore, rdb *redis.Client) (*Controller, *rules.Dispatcher, cache.Cache) {
	logger := logging.NewDefaultLogger()
	local := cache.NewLocalCache(time.Hour, time.Minute)
	keygen := keys.NewGenerator("gallery")

	d := discovery.New(store, local, keygen, "[case-gallery]", time.Hour, logger)
	compiler := rules.NewCompiler(store, logger)
	dispatcher := rules.NewDispatcher(rules.NewRegistry())
	resCache := cache.NewLocalCache(time.Hour, time.Minute)

	return New(store, d, compiler, dispatcher, rdb, resCache, logger), dispatcher, resCache
}

func galleryStore() *fakeStore {
	return &fakeStore{
		markerPages: []storage.Page{{ID: 42, Slug: "gallery", Published: true}},
		pagesBySlug: map[string]*storage.Page{
			"gallery": {ID: 42, Slug: "gallery", Published: true},
		},
		settings: map[string]string{},
	}
}

func TestController_MaybeFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("no pending flush leaves dispatcher untouched", func(t *testing.T) {
		store := galleryStore()
		c, dispatcher, _ := newTestController(store, nil)

		require.NoError(t, c.MaybeFlush(ctx))
		assert.Nil(t, dispatcher.Table(), "table must not publish without a flush request")
	})

	t.Run("pending flush publishes and clears the flag", func(t *testing.T) {
		store := galleryStore()
		store.settings[storage.SettingFlushRequested] = "1"
		c, dispatcher, _ := newTestController(store, nil)

		require.NoError(t, c.MaybeFlush(ctx))
		require.NotNil(t, dispatcher.Table())
		assert.Len(t, dispatcher.Table().Rules, 3)
		assert.Empty(t, store.settings[storage.SettingFlushRequested])

		_, ok := dispatcher.Match("/gallery/lipo")
		assert.True(t, ok)
	})

	t.Run("drifted table records a stale-rules advisory", func(t *testing.T) {
		store := galleryStore()
		c, _, _ := newTestController(store, nil)

		require.NoError(t, c.MaybeFlush(ctx))
		assert.Equal(t, "stale", store.settings[storage.SettingRulesAdvisory])
	})

	t.Run("advisory clears once published rules are current again", func(t *testing.T) {
		store := galleryStore()
		c, _, _ := newTestController(store, nil)

		require.NoError(t, c.MaybeFlush(ctx))
		require.Equal(t, "stale", store.settings[storage.SettingRulesAdvisory])

		require.NoError(t, c.RequestFlush(ctx))
		require.NoError(t, c.MaybeFlush(ctx))
		assert.Empty(t, store.settings[storage.SettingRulesAdvisory])

		// Published and compiled now agree; a plain pass must not re-raise it.
		require.NoError(t, c.MaybeFlush(ctx))
		assert.Empty(t, store.settings[storage.SettingRulesAdvisory])
	})

	t.Run("requested flush rescans instead of reusing the cached scan", func(t *testing.T) {
		store := galleryStore()
		c, dispatcher, _ := newTestController(store, nil)

		// Warm the scan cache with only the original gallery page.
		require.NoError(t, c.Bootstrap(ctx))
		require.Len(t, dispatcher.Table().Rules, 3)

		// A second page gains the embed marker after the scan ran.
		store.markerPages = append(store.markerPages,
			storage.Page{ID: 43, Slug: "newpage", Published: true})
		store.pagesBySlug["newpage"] = &storage.Page{ID: 43, Slug: "newpage", Published: true}

		require.NoError(t, c.RequestFlush(ctx))
		require.NoError(t, c.MaybeFlush(ctx))

		require.Len(t, dispatcher.Table().Rules, 6,
			"requested flush must compile from a fresh content scan")
		_, ok := dispatcher.Match("/newpage/lipo")
		assert.True(t, ok)
	})
}

func TestController_ForceFlush(t *testing.T) {
	ctx := context.Background()
	store := galleryStore()
	store.settings[storage.SettingFlushRequested] = "1"
	store.settings[storage.SettingRulesAdvisory] = "stale"

	c, dispatcher, resCache := newTestController(store, nil)
	require.NoError(t, resCache.Set(ctx, "gallery_resolve_x", 5, time.Hour))

	require.NoError(t, c.ForceFlush(ctx))

	require.NotNil(t, dispatcher.Table())
	assert.Empty(t, store.settings[storage.SettingFlushRequested])
	assert.Empty(t, store.settings[storage.SettingRulesAdvisory])

	_, found := resCache.Get(ctx, "gallery_resolve_x")
	assert.False(t, found, "forced flush must drop cached resolutions")
}

func TestController_ForceFlushRescansContent(t *testing.T) {
	ctx := context.Background()
	store := galleryStore()
	c, _, _ := newTestController(store, nil)

	require.NoError(t, c.ForceFlush(ctx))
	require.NoError(t, c.MaybeFlush(ctx))
	scansBefore := store.scanCalls

	require.NoError(t, c.ForceFlush(ctx))
	assert.Greater(t, store.scanCalls, scansBefore, "forced flush must rescan page content")
}

func TestController_SharedPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	store := galleryStore()
	store.settings[storage.SettingFlushRequested] = "1"

	c, _, _ := newTestController(store, rdb)
	require.NoError(t, c.MaybeFlush(ctx))

	var table rules.Table
	require.NoError(t, rdb.GetJSON(ctx, TableKey, &table))
	assert.Len(t, table.Rules, 3)

	t.Run("bootstrap on a fresh replica reuses the stored table", func(t *testing.T) {
		replicaStore := galleryStore()
		replica, dispatcher, _ := newTestController(replicaStore, rdb)

		require.NoError(t, replica.Bootstrap(ctx))
		require.NotNil(t, dispatcher.Table())
		assert.Len(t, dispatcher.Table().Rules, 3)
		assert.Zero(t, replicaStore.scanCalls, "bootstrap must not rescan when a table is stored")
	})
}

func TestController_BootstrapWithoutStoredTable(t *testing.T) {
	store := galleryStore()
	c, dispatcher, _ := newTestController(store, nil)

	require.NoError(t, c.Bootstrap(context.Background()))
	require.NotNil(t, dispatcher.Table())
	assert.Len(t, dispatcher.Table().Rules, 3)
}

func TestController_RequestFlush(t *testing.T) {
	store := galleryStore()
	c, dispatcher, _ := newTestController(store, nil)
	ctx := context.Background()

	require.NoError(t, c.RequestFlush(ctx))
	require.NoError(t, c.MaybeFlush(ctx))
	assert.NotNil(t, dispatcher.Table())
}
