package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-router/internal/cache"
	"gallery-router/internal/common/errors"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/keys"
	"gallery-router/internal/taxonomy"
)

// countingProvider records how many taxonomy fetches were made.
type countingProvider struct {
	snapshot *taxonomy.Snapshot
	err      error
	fetches  int
}

func (p *countingProvider) GetTaxonomy(ctx context.Context, scope string) (*taxonomy.Snapshot, error) {
	p.fetches++
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

func testSnapshot() *taxonomy.Snapshot {
	return &taxonomy.Snapshot{
		Data: []taxonomy.Category{
			{
				Name: "Body",
				Procedures: []taxonomy.Procedure{
					{Name: "Liposuction", Slug: "liposuction", IDs: []int{42, 43}, CaseCount: 12},
					{Name: "Tummy Tuck", Slug: "tummy-tuck", IDs: []int{17}, CaseCount: 8},
				},
			},
			{
				Name: "Face",
				Procedures: []taxonomy.Procedure{
					{Name: "Rhinoplasty", Slug: "rhinoplasty", IDs: []int{99}, CaseCount: 4},
				},
			},
		},
	}
}

func newTestResolver(t *testing.T, provider taxonomy.Provider, ttl time.Duration) (*Resolver, cache.Cache) {
	t.Helper()
	c := cache.NewLocalCache(ttl, time.Minute)
	r := New(provider, c, keys.NewGenerator("gallery"), ttl, logging.NewDefaultLogger())
	return r, c
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exact slug match returns canonical id", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		id, ok, err := r.Resolve(ctx, "liposuction", "prop-9")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, id)
	})

	t.Run("incoming slug is normalized first", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		id, ok, err := r.Resolve(ctx, "  Tummy Tuck ", "prop-9")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 17, id)
	})

	t.Run("empty slug short-circuits without any lookup", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		for _, slug := range []string{"", "   ", "--"} {
			id, ok, err := r.Resolve(ctx, slug, "prop-9")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Zero(t, id)
		}
		assert.Zero(t, provider.fetches)
	})

	t.Run("missing scope short-circuits without any lookup", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		_, ok, err := r.Resolve(ctx, "liposuction", "")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, provider.fetches)
	})

	t.Run("positive result is served from cache", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		for i := 0; i < 3; i++ {
			id, ok, err := r.Resolve(ctx, "rhinoplasty", "prop-9")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 99, id)
		}
		assert.Equal(t, 1, provider.fetches)
	})

	t.Run("negative result is cached and does not re-scan", func(t *testing.T) {
		provider := &countingProvider{snapshot: testSnapshot()}
		r, _ := newTestResolver(t, provider, time.Hour)

		id, ok, err := r.Resolve(ctx, "no-such-procedure", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, id)

		id, ok, err = r.Resolve(ctx, "no-such-procedure", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, id)

		assert.Equal(t, 1, provider.fetches, "second resolve must hit the negative cache")
	})

	t.Run("fetch failure behaves as empty snapshot and caches the miss", func(t *testing.T) {
		provider := &countingProvider{err: errors.TaxonomyError("boom", nil)}
		r, _ := newTestResolver(t, provider, time.Hour)

		_, ok, err := r.Resolve(ctx, "liposuction", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = r.Resolve(ctx, "liposuction", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.Equal(t, 1, provider.fetches, "failure must not be retried inline")
	})

	t.Run("node without numeric ids is skipped, not id zero", func(t *testing.T) {
		provider := &countingProvider{snapshot: &taxonomy.Snapshot{
			Data: []taxonomy.Category{{
				Name: "Body",
				Procedures: []taxonomy.Procedure{
					{Name: "Broken", Slug: "broken"},
				},
			}},
		}}
		r, _ := newTestResolver(t, provider, time.Hour)

		id, ok, err := r.Resolve(ctx, "broken", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, id)
	})
}

func TestResolver_Precedence(t *testing.T) {
	ctx := context.Background()

	// "lipo" matches procedure A by slugified display name and procedure B by
	// exact slug. The exact-slug match must win no matter where each sits in
	// iteration order.
	build := func(nameMatchFirst bool) *taxonomy.Snapshot {
		nameMatch := taxonomy.Procedure{Name: "Lipo", Slug: "liposuction-360", IDs: []int{11}}
		slugMatch := taxonomy.Procedure{Name: "Liposuction Classic", Slug: "lipo", IDs: []int{22}}

		procs := []taxonomy.Procedure{slugMatch, nameMatch}
		if nameMatchFirst {
			procs = []taxonomy.Procedure{nameMatch, slugMatch}
		}
		return &taxonomy.Snapshot{Data: []taxonomy.Category{{Name: "Body", Procedures: procs}}}
	}

	for _, nameFirst := range []bool{false, true} {
		provider := &countingProvider{snapshot: build(nameFirst)}
		r, _ := newTestResolver(t, provider, time.Hour)

		id, ok, err := r.Resolve(ctx, "lipo", "prop-9")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 22, id, "exact slug match must beat the name-derived one")
	}
}

func TestResolver_NameFallback(t *testing.T) {
	ctx := context.Background()

	// No procedure has this exact slug, but one's display name slugifies to it.
	provider := &countingProvider{snapshot: &taxonomy.Snapshot{
		Data: []taxonomy.Category{{
			Name: "Body",
			Procedures: []taxonomy.Procedure{
				{Name: "Mommy Makeover", Slug: "mm-package", IDs: []int{55}},
			},
		}},
	}}
	r, _ := newTestResolver(t, provider, time.Hour)

	id, ok, err := r.Resolve(ctx, "mommy-makeover", "prop-9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 55, id)
}

func TestResolver_RedisBackedCache(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	provider := &countingProvider{snapshot: testSnapshot()}
	c := cache.NewRedisCache(rdb, "test:")
	r := New(provider, c, keys.NewGenerator("gallery"), time.Hour, logging.NewDefaultLogger())

	t.Run("positive entry round-trips through redis", func(t *testing.T) {
		id, ok, err := r.Resolve(ctx, "liposuction", "prop-9")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, id)

		id, ok, err = r.Resolve(ctx, "liposuction", "prop-9")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, id)
		assert.Equal(t, 1, provider.fetches)
	})

	t.Run("negative entry expires with TTL", func(t *testing.T) {
		_, ok, err := r.Resolve(ctx, "ghost", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)
		fetchesAfterMiss := provider.fetches

		mr.FastForward(2 * time.Hour)

		_, ok, err = r.Resolve(ctx, "ghost", "prop-9")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, fetchesAfterMiss+1, provider.fetches, "expired negative entry must re-scan")
	})
}
