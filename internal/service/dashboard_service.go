package service

import (
	"context"
	"strings"
	"time"

	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecentTradesLimit is the number of imports shown on the dashboard
const RecentTradesLimit = 5

// Chart series names
const (
	ChartExports = "Exports"
	ChartImports = "Imports"
)

// DashboardService aggregates both ledgers of one identity. It is read-only.
type DashboardService struct {
	source DashboardSource
	cache  DashboardCache
	opts   Options
	logger *zap.Logger
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(source DashboardSource, cache DashboardCache, opts Options) *DashboardService {
	if cache == nil {
		cache = noopCache{}
	}
	return &DashboardService{
		source: source,
		cache:  cache,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// ComputeDashboard returns stats, chart data and recent trades of identity
func (s *DashboardService) ComputeDashboard(ctx context.Context, identity string) (*models.Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.ComputeDashboard")
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, invalid("email is required")
	}

	cached, version, ok, err := s.cache.GetDashboard(ctx, identity)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("Dashboard cache read failed", zap.String("identity", identity), zap.Error(err))
	} else if ok {
		util.DashboardRequestsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	util.DashboardRequestsTotal.WithLabelValues("miss").Inc()

	start := time.Now()
	dash, err := s.aggregate(ctx, identity)
	util.DashboardLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		err = translate(err, "dashboard")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Dashboard aggregation failed", err, zap.String("identity", identity))
		return nil, err
	}

	if cacheable && s.opts.DashboardCacheTTL > 0 {
		if err := s.cache.SetDashboard(ctx, identity, version, dash, s.opts.DashboardCacheTTL); err != nil {
			s.logger.Warn("Dashboard cache write failed", zap.String("identity", identity), zap.Error(err))
		}
	}
	return dash, nil
}

func (s *DashboardService) aggregate(ctx context.Context, identity string) (*models.Dashboard, error) {
	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	var (
		exportCount, importCount int64
		exports                  []models.ExportRecord
		imports                  []models.ImportRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.source.CountExports(gctx, identity)
		exportCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.source.CountImports(gctx, identity)
		importCount = n
		return err
	})
	g.Go(func() error {
		records, err := s.source.ListExports(gctx, identity)
		exports = records
		return err
	})
	g.Go(func() error {
		records, err := s.source.ListImports(gctx, identity, 0)
		imports = records
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	exportValue, importCost := Totals(exports, imports)

	recent := imports
	if len(recent) > RecentTradesLimit {
		recent = recent[:RecentTradesLimit]
	}
	if recent == nil {
		recent = []models.ImportRecord{}
	}

	return &models.Dashboard{
		Stats: models.DashboardStats{
			Imports: importCount,
			Exports: exportCount,
			Balance: exportValue.Sub(importCost).InexactFloat64(),
		},
		ChartData: []models.ChartPoint{
			{Name: ChartExports, Value: exportValue.InexactFloat64()},
			{Name: ChartImports, Value: importCost.InexactFloat64()},
		},
		RecentTrades: recent,
	}, nil
}

// Totals sums export prices and import costs (quantity times snapshot price).
func Totals(exports []models.ExportRecord, imports []models.ImportRecord) (exportValue, importCost decimal.Decimal) {
	exportValue = decimal.Zero
	for i := range exports {
		exportValue = exportValue.Add(decimal.NewFromFloat(exports[i].Price))
	}

	importCost = decimal.Zero
	for i := range imports {
		price := decimal.NewFromFloat(imports[i].ProductSnapshot.Price)
		importCost = importCost.Add(price.Mul(decimal.NewFromInt(int64(imports[i].ImportedQuantity))))
	}
	return exportValue, importCost
}

// Invalidate drops the cached dashboard of identity
func (s *DashboardService) Invalidate(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}
	return s.cache.InvalidateDashboard(ctx, identity)
}
