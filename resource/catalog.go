package resource

import (
	"context"
	"strconv"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/internal/keys"
	"github.com/unkn0wn-root/swrcache/model"
	"github.com/unkn0wn-root/swrcache/transport"
)

// Resource names. They double as endpoint paths.
const (
	KPISummaryName   = "kpi-summary"
	MonthlyUsageName = "monthly-usage"
	CO2TrendName     = "co2-trend"
	ProductsName     = "products"
	BalanceName      = "points/balance"
	HistoryName      = "points/history"
)

const (
	defaultKPIRefresh   = 30 * time.Second
	defaultHistoryLimit = 20
)

type CatalogConfig struct {
	StaleTime          time.Duration // 0 => store default
	KPIRefreshInterval time.Duration // 0 => 30s
	HistoryLimit       int           // 0 => 20
	// SnapshotCodec names the codec for the snapshot tier ("json",
	// "msgpack", "cbor"); empty keeps every resource memory-only.
	SnapshotCodec string
	MaxDecode     int
}

// Catalog hands out the platform's resources.
type Catalog struct {
	store  swrcache.Store
	client *transport.Client
	cfg    CatalogConfig
}

func NewCatalog(store swrcache.Store, client *transport.Client, cfg CatalogConfig) (*Catalog, error) {
	if cfg.KPIRefreshInterval <= 0 {
		cfg.KPIRefreshInterval = defaultKPIRefresh
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.SnapshotCodec != "" {
		if _, err := codec.ByName[struct{}](cfg.SnapshotCodec, 0); err != nil {
			return nil, err
		}
	}
	return &Catalog{store: store, client: client, cfg: cfg}, nil
}

func (c *Catalog) Store() swrcache.Store { return c.store }

func (c *Catalog) Client() *transport.Client { return c.client }

func (c *Catalog) HistoryLimit() int { return c.cfg.HistoryLimit }

func (c *Catalog) KPISummary() *Resource[model.KPISummary] {
	return bind[model.KPISummary](c, KPISummaryName, nil, c.cfg.KPIRefreshInterval)
}

func (c *Catalog) MonthlyUsage() *Resource[[]model.MonthlyUsage] {
	return bind[[]model.MonthlyUsage](c, MonthlyUsageName, nil, 0)
}

func (c *Catalog) CO2Trend() *Resource[[]model.CO2Point] {
	return bind[[]model.CO2Point](c, CO2TrendName, nil, 0)
}

func (c *Catalog) Products() *Resource[[]model.Product] {
	return bind[[]model.Product](c, ProductsName, nil, 0)
}

// PointsBalance is the balance of userID; empty means the caller's own.
func (c *Catalog) PointsBalance(userID string) *Resource[model.Balance] {
	return bind[model.Balance](c, BalanceName, map[string]string{"userId": userID}, 0)
}

// PointsHistory lists the newest records first; limit <= 0 takes the
// configured default.
func (c *Catalog) PointsHistory(limit int) *Resource[[]model.HistoryRecord] {
	if limit <= 0 {
		limit = c.cfg.HistoryLimit
	}
	return bind[[]model.HistoryRecord](c, HistoryName, map[string]string{"limit": strconv.Itoa(limit)}, 0)
}

// bind derives key and query from the same params so they cannot diverge.
func bind[T any](c *Catalog, name string, params map[string]string, refresh time.Duration) *Resource[T] {
	key := keys.Build(name, params)
	query := keys.Params(key)
	client := c.client
	fetch := func(ctx context.Context) (T, error) {
		return transport.GetJSON[T](ctx, client, name, query)
	}
	opts := Options[T]{StaleTime: c.cfg.StaleTime, RefreshInterval: refresh}
	if c.cfg.SnapshotCodec != "" {
		// validated in NewCatalog
		cd, _ := codec.ByName[T](c.cfg.SnapshotCodec, c.cfg.MaxDecode)
		opts.Codec = cd
	}
	return New[T](c.store, key, fetch, opts)
}
