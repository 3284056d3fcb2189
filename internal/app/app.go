package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/genstore"
	asynchook "github.com/unkn0wn-root/swrcache/hooks/async"
	"github.com/unkn0wn-root/swrcache/internal/config"
	"github.com/unkn0wn-root/swrcache/mutation"
	"github.com/unkn0wn-root/swrcache/promhooks"
	pr "github.com/unkn0wn-root/swrcache/provider"
	"github.com/unkn0wn-root/swrcache/provider/bigcache"
	redisprov "github.com/unkn0wn-root/swrcache/provider/redis"
	"github.com/unkn0wn-root/swrcache/provider/ristretto"
	"github.com/unkn0wn-root/swrcache/resource"
	"github.com/unkn0wn-root/swrcache/sloghooks"
	"github.com/unkn0wn-root/swrcache/transport"
)

const (
	genTTL           = 24 * time.Hour
	metricsNamespace = "swrcache"
)

// App owns every long-lived component of the data layer.
type App struct {
	cfg      *config.Config
	logs     *logging
	log      swrcache.Logger
	registry *prometheus.Registry
	hooks    *asynchook.Hooks
	rdb      *goredis.Client

	Store    swrcache.Store
	Client   *transport.Client
	Catalog  *resource.Catalog
	Redeemer *mutation.Redeemer
}

// New builds the data layer in dependency order: logging, metrics, Redis
// (only when configured), snapshot tier, store, transport, catalog and
// redeemer. On error everything built so far is released.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	built := &App{cfg: cfg}
	a = built
	defer func() {
		if err != nil {
			_ = built.Shutdown(context.Background())
			a = nil
		}
	}()

	if a.logs, err = newLogging(cfg); err != nil {
		return nil, fmt.Errorf("failed to init logging: %w", err)
	}
	a.log = a.logs.component("app")

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := promhooks.New(a.registry, metricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	var hooks swrcache.Hooks = prom
	if a.logs.slog != nil {
		hooks = swrcache.Multi(prom, sloghooks.New(a.logs.slog, sloghooks.Options{SelfHealEvery: 10, DedupEvery: 100}))
	}
	a.hooks = asynchook.New(hooks, 1, 4096)

	if cfg.UsesRedis() {
		if err = a.initRedis(ctx); err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
	}

	provider, err := a.snapshotProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init snapshot provider: %w", err)
	}
	var gens genstore.GenStore
	if cfg.GenStore == "redis" {
		gens = genstore.NewRedis(a.rdb, cfg.Namespace, genTTL)
	}

	a.Store, err = swrcache.New(swrcache.Options{
		Namespace:   cfg.Namespace,
		StaleTime:   cfg.StaleTime,
		Logger:      a.logs.component("store"),
		Hooks:       a.hooks,
		Provider:    provider,
		SnapshotTTL: cfg.SnapshotTTL,
		GenStore:    gens,
	})
	if err != nil {
		if provider != nil {
			_ = provider.Close(ctx)
		}
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	var creds transport.Credentials = transport.NoCredentials{}
	if cfg.APIToken != "" {
		creds = transport.StaticToken(cfg.APIToken)
	}
	a.Client, err = transport.New(transport.Options{
		BaseURL:     cfg.APIBaseURL,
		Credentials: creds,
		Logger:      a.logs.component("transport"),
		Timeout:     cfg.RequestTimeout,
		Attempts:    cfg.RetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init transport: %w", err)
	}

	catCfg := resource.CatalogConfig{
		StaleTime:          cfg.StaleTime,
		KPIRefreshInterval: cfg.KPIRefreshInterval,
		HistoryLimit:       cfg.HistoryLimit,
	}
	if provider != nil {
		catCfg.SnapshotCodec = cfg.SnapshotCodec
		catCfg.MaxDecode = int(cfg.SnapshotMaxBytes)
	}
	if a.Catalog, err = resource.NewCatalog(a.Store, a.Client, catCfg); err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	a.Redeemer = mutation.New(a.Catalog, mutation.Options{
		Logger: a.logs.component("mutation"),
	})

	a.log.Info("data layer initialized", swrcache.Fields{
		"api":      cfg.APIBaseURL,
		"snapshot": cfg.SnapshotProvider,
		"genstore": cfg.GenStore,
	})
	return a, nil
}

func (a *App) initRedis(ctx context.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:         a.cfg.RedisAddr,
		Password:     a.cfg.RedisPassword,
		DB:           a.cfg.RedisDB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.cfg.RedisMaxRetries)), ctx)
	err := backoff.RetryNotify(
		func() error {
			return client.Ping(ctx).Err()
		},
		b,
		func(err error, wait time.Duration) {
			a.log.Warn("redis ping failed; retrying", swrcache.Fields{"err": err, "backoff": wait})
		},
	)
	if err != nil {
		_ = client.Close()
		return err
	}

	a.rdb = client
	a.log.Info("redis client initialized", swrcache.Fields{"addr": a.cfg.RedisAddr})
	return nil
}

func (a *App) snapshotProvider(ctx context.Context) (pr.Provider, error) {
	switch a.cfg.SnapshotProvider {
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{MaxBytes: a.cfg.SnapshotMaxBytes, Metrics: true})
		if err != nil {
			return nil, err
		}
		if err := a.registry.Register(p.Collector(metricsNamespace)); err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		return p, nil
	case "bigcache":
		p, err := bigcache.New(ctx, bigcache.Config{LifeWindow: a.cfg.SnapshotTTL, MaxBytes: a.cfg.SnapshotMaxBytes})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "redis":
		p, err := redisprov.New(redisprov.Config{Client: a.rdb})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

// MetricsHandler serves the registry in the Prometheus text format.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// Logger returns the logger for component.
func (a *App) Logger(component string) swrcache.Logger {
	return a.logs.component(component)
}

// Shutdown releases components in reverse order of construction.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if a.Client != nil {
		if err := a.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transport: %w", err))
		}
	}
	if a.hooks != nil {
		a.hooks.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.logs != nil {
		a.logs.sync()
	}
	return errors.Join(errs...)
}
