package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/accounting/reports"
	"github.com/odyssey-erp/runway/internal/analytics"
	"github.com/odyssey-erp/runway/internal/observability"
	"github.com/odyssey-erp/runway/internal/platform/cache"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/internal/platform/memdb"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// Container holds the wired ledger and analytics services and their backing stores.
type Container struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Memory *memdb.Store

	Table        *mappings.Table
	Accounts     *accounts.Service
	Poster       *journals.Poster
	Reports      *reports.Service
	Transactions transactions.Repository
	Analytics    *analytics.Service

	closers []func()
}

// ContainerOption adjusts container construction.
type ContainerOption func(*containerOptions)

type containerOptions struct {
	memory  *memdb.Store
	noRedis bool
}

// WithMemoryStore reuses an existing in-process store instead of creating one.
func WithMemoryStore(store *memdb.Store) ContainerOption {
	return func(o *containerOptions) { o.memory = store }
}

// WithoutRedis skips the analytics cache.
func WithoutRedis() ContainerOption {
	return func(o *containerOptions) { o.noRedis = true }
}

// NewContainer wires every service against the configured store. Redis is
// optional: when it cannot be reached analytics runs uncached.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...ContainerOption) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o containerOptions
	for _, opt := range opts {
		opt(&o)
	}

	table, err := mappings.Load(cfg.CategoryMapPath)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger, Metrics: observability.NewMetrics(), Table: table}

	var (
		accountRepo accounts.Repository
		journalRepo journals.Repository
		reportRepo  reports.Repository
		audit       journals.AuditPort
	)
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		store := o.memory
		if store == nil {
			store = memdb.New()
		}
		c.Memory = store
		accountRepo, journalRepo, reportRepo = store.Accounts(), store.Journals(), store.Reports()
		c.Transactions = store.Transactions()
		audit = store
	case StoreDriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		accountRepo = accounts.NewRepository(pool)
		journalRepo = journals.NewRepository(pool, cfg.PostingMaxRetries)
		reportRepo = reports.NewRepository(pool)
		c.Transactions = transactions.NewRepository(pool)
		audit = shared.NewAuditLogger(pool)
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	var analyticsCache *analytics.Cache
	if !o.noRedis && cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("analytics cache disabled", slog.Any("error", err))
		} else {
			c.Redis = client
			c.closers = append(c.closers, func() { _ = client.Close() })
			analyticsCache = analytics.NewCache(client, cfg.AnalyticsCacheTTL)
		}
	}

	c.Accounts = accounts.NewService(accountRepo, logger)
	c.Reports = reports.NewService(reportRepo, logger)
	c.Analytics = analytics.NewService(c.Transactions, analyticsCache, logger)
	c.Poster = journals.NewPoster(journalRepo, table, audit, logger)
	c.Poster.WithObserver(c.Metrics.Ledger())
	if analyticsCache != nil {
		c.Poster.WithCacheInvalidator(analyticsCache)
	}
	return c, nil
}

// HealthChecks lists the dependencies the ops router pings.
func (c *Container) HealthChecks() map[string]Pinger {
	checks := map[string]Pinger{}
	if c.Pool != nil {
		checks["postgres"] = c.Pool
	}
	if c.Redis != nil {
		checks["redis"] = cache.Pinger{Client: c.Redis}
	}
	return checks
}

// Close releases pools and clients in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
