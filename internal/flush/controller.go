// Package flush decides when the compiled routing table is published. A
// compilation pass always recomputes the table in memory; the published table
// (the one live requests match against) only changes when a flush was
// explicitly requested, because publication invalidates every in-flight
// route and must not happen per pass.
package flush

import (
	"context"
	"encoding/json"
	"time"

	"gallery-router/internal/cache"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/discovery"
	"gallery-router/internal/redis"
	"gallery-router/internal/rules"
	"gallery-router/internal/storage"
)

const (
	// TableKey is the fixed shared-store key holding the published table.
	TableKey = "gallery_router:routes"

	// lockKey coordinates publication across replicas. Losing the lock is
	// benign: the winner publishes the same table.
	lockKey = "route_flush"

	lockTTL = 30 * time.Second
)

// Controller runs the discover-compile-publish cycle.
type Controller struct {
	store           storage.Storage
	discoverer      *discovery.Discoverer
	compiler        *rules.Compiler
	dispatcher      *rules.Dispatcher
	rdb             *redis.Client
	resolutionCache cache.Cache
	logger          logging.Logger
}

// New creates a flush controller. rdb may be nil for single-instance
// deployments; the table then lives only in the in-process dispatcher.
func New(
	store storage.Storage,
	discoverer *discovery.Discoverer,
	compiler *rules.Compiler,
	dispatcher *rules.Dispatcher,
	rdb *redis.Client,
	resolutionCache cache.Cache,
	logger logging.Logger,
) *Controller {
	return &Controller{
		store:           store,
		discoverer:      discoverer,
		compiler:        compiler,
		dispatcher:      dispatcher,
		rdb:             rdb,
		resolutionCache: resolutionCache,
		logger:          logger,
	}
}

// Bootstrap installs a table at startup. A previously published table in the
// shared store wins; without one the controller compiles and publishes fresh.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if table := c.loadPublished(ctx); table != nil {
		if err := c.dispatcher.Publish(table); err == nil {
			c.logger.Info("loaded published routing table",
				logging.Int("rules", len(table.Rules)))
			return nil
		}
		c.logger.Warn("stored routing table is unusable, recompiling")
	}

	table := c.compile(ctx)
	return c.publish(ctx, table)
}

// MaybeFlush recompiles the routing table and publishes it only when the
// flush-requested flag is set, clearing the flag on success. An explicit
// flush request also drops the content-scan cache first, so the published
// table always reflects a fresh scan. When no flush is pending, the fresh
// compilation is compared against the published table: drift records a
// stale-rules advisory, agreement clears one left over from earlier passes.
func (c *Controller) MaybeFlush(ctx context.Context) error {
	requested, err := c.store.GetSetting(ctx, storage.SettingFlushRequested)
	if err != nil {
		c.logger.Warn("cannot read flush-requested flag", logging.Err(err))
		return err
	}

	if requested == "" {
		table := c.compile(ctx)
		if c.tableChanged(table) {
			if err := c.store.SetSetting(ctx, storage.SettingRulesAdvisory, "stale"); err != nil {
				c.logger.Warn("cannot record stale-rules advisory", logging.Err(err))
			}
		} else if err := c.store.DeleteSetting(ctx, storage.SettingRulesAdvisory); err != nil {
			c.logger.Warn("cannot clear stale-rules advisory", logging.Err(err))
		}
		return nil
	}

	c.discoverer.InvalidateScanCache(ctx)

	table := c.compile(ctx)
	if err := c.publish(ctx, table); err != nil {
		return err
	}
	if err := c.store.DeleteSetting(ctx, storage.SettingFlushRequested); err != nil {
		c.logger.Warn("published table but could not clear flush flag", logging.Err(err))
	}
	if err := c.store.DeleteSetting(ctx, storage.SettingRulesAdvisory); err != nil {
		c.logger.Warn("cannot clear stale-rules advisory", logging.Err(err))
	}
	return nil
}

// ForceFlush recompiles and publishes unconditionally, dropping the
// content-scan cache and the resolution cache so the next requests see fresh
// state. Clears the stale-rules advisory and any pending flush request.
func (c *Controller) ForceFlush(ctx context.Context) error {
	c.discoverer.InvalidateScanCache(ctx)

	table := c.compile(ctx)
	if err := c.publish(ctx, table); err != nil {
		return err
	}

	if c.resolutionCache != nil {
		if err := c.resolutionCache.Clear(ctx); err != nil {
			c.logger.Warn("resolution cache clear failed", logging.Err(err))
		}
	}

	if err := c.store.DeleteSetting(ctx, storage.SettingFlushRequested); err != nil {
		c.logger.Warn("could not clear flush flag", logging.Err(err))
	}
	if err := c.store.DeleteSetting(ctx, storage.SettingRulesAdvisory); err != nil {
		c.logger.Warn("could not clear stale-rules advisory", logging.Err(err))
	}
	return nil
}

// RequestFlush marks the table for publication on the next pass. Called when
// configuration changes (new gallery page, changed slug).
func (c *Controller) RequestFlush(ctx context.Context) error {
	return c.store.SetSetting(ctx, storage.SettingFlushRequested, "1")
}

func (c *Controller) compile(ctx context.Context) *rules.Table {
	pages := c.discoverer.DiscoverPages(ctx)
	return c.compiler.Compile(ctx, pages)
}

// publish installs the table in the in-process dispatcher and, when a shared
// store is configured, persists it for other replicas. The replica lock only
// guards the shared write; the local dispatcher always gets the new table.
func (c *Controller) publish(ctx context.Context, table *rules.Table) error {
	if err := c.dispatcher.Publish(table); err != nil {
		return err
	}

	if c.rdb == nil {
		c.logger.Info("published routing table",
			logging.Int("rules", len(table.Rules)))
		return nil
	}

	acquired, err := c.rdb.AcquireLock(ctx, lockKey, lockTTL)
	if err != nil {
		c.logger.Warn("flush lock unavailable, skipping shared publish", logging.Err(err))
		return nil
	}
	if !acquired {
		c.logger.Debug("another replica is publishing the routing table")
		return nil
	}
	defer func() {
		if err := c.rdb.ReleaseLock(ctx, lockKey); err != nil {
			c.logger.Warn("flush lock release failed", logging.Err(err))
		}
	}()

	if err := c.rdb.Set(ctx, TableKey, table, 0); err != nil {
		c.logger.Error("shared routing-table write failed", err)
		return err
	}

	c.logger.Info("published routing table",
		logging.Int("rules", len(table.Rules)))
	return nil
}

func (c *Controller) loadPublished(ctx context.Context) *rules.Table {
	if c.rdb == nil {
		return nil
	}

	var table rules.Table
	if err := c.rdb.GetJSON(ctx, TableKey, &table); err != nil {
		return nil
	}
	if len(table.Rules) == 0 {
		return nil
	}
	return &table
}

// tableChanged reports whether a freshly compiled table differs from the one
// currently served. Compared over rules only; CompiledAt always differs.
func (c *Controller) tableChanged(fresh *rules.Table) bool {
	current := c.dispatcher.Table()
	if current == nil {
		return len(fresh.Rules) > 0
	}

	a, errA := json.Marshal(current.Rules)
	b, errB := json.Marshal(fresh.Rules)
	if errA != nil || errB != nil {
		return true
	}
	return string(a) != string(b)
}
