package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocksavvy/stocksavvy/internal/inventory"
)

// Source exposes the ledger snapshots the aggregates are computed from.
type Source interface {
	Products() []inventory.Product
	History() []inventory.HistoryEntry
}

// Service coordinates analytics computation with the cache layer.
type Service struct {
	source    Source
	cache     *Cache
	logger    *slog.Logger
	threshold int
}

// NewService wires a ledger source with a Cache helper. A threshold below
// zero falls back to DefaultLowStockThreshold.
func NewService(source Source, cache *Cache, logger *slog.Logger, lowStockThreshold int) *Service {
	if lowStockThreshold < 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, logger: logger, threshold: lowStockThreshold}
}

// Dashboard returns the landing page counters.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return cached(ctx, s, func() Dashboard {
		return BuildDashboard(s.source.Products(), s.threshold)
	}, "analytics", "dashboard", strconv.Itoa(s.threshold))
}

// Summary returns purchase and sales aggregates.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return cached(ctx, s, func() Summary {
		return BuildSummary(s.source.Products(), s.source.History())
	}, "analytics", "summary")
}

// cached serves from Redis when it can. A cache outage degrades to direct
// computation.
func cached[T any](ctx context.Context, s *Service, build func() T, parts ...string) (T, error) {
	out, err := fetch(ctx, s.cache, build, parts...)
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return build(), nil
	}
	return out, nil
}

// BuildDashboard counts products by status and lists the most recent purchases.
func BuildDashboard(products []inventory.Product, lowStockThreshold int) Dashboard {
	d := Dashboard{TotalProducts: len(products)}
	for _, p := range products {
		switch p.Status {
		case inventory.StatusInStock:
			d.InStock++
			if p.Stock <= lowStockThreshold {
				d.LowStock++
			}
		case inventory.StatusSold:
			d.Sold++
		}
	}
	recent := make([]inventory.Product, len(products))
	copy(recent, products)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].PurchaseDate > recent[j].PurchaseDate
	})
	if len(recent) > RecentProductsLimit {
		recent = recent[:RecentProductsLimit]
	}
	d.Recent = recent
	return d
}

// BuildSummary derives the analytics figures. Products without a price count
// as zero cost; sold products without a sale quantity count as one unit.
func BuildSummary(products []inventory.Product, history []inventory.HistoryEntry) Summary {
	var s Summary
	var totalItems int64
	sales := newMonthly()
	purchases := newMonthly()
	names := make(map[string]string, len(products))

	for _, p := range products {
		names[p.ID] = p.Name
		price := value(p.Price)
		stock := decimal.NewFromInt(int64(p.Stock))
		soldQty := 0
		if p.SaleQuantity != nil {
			soldQty = *p.SaleQuantity
		}
		original := int64(p.Stock + soldQty)

		s.TotalValue = s.TotalValue.Add(price.Mul(stock))
		if p.Status == inventory.StatusInStock {
			s.CurrentStockValue = s.CurrentStockValue.Add(price.Mul(stock))
		}
		s.TotalPurchaseCost = s.TotalPurchaseCost.Add(price.Mul(decimal.NewFromInt(original)))
		s.TotalPurchased += int(original)
		totalItems += original

		if p.Status == inventory.StatusSold {
			units := soldQty
			if units == 0 {
				units = 1
			}
			s.TotalSold += units
			if p.SalePrice != nil && !p.SalePrice.IsZero() {
				amount := p.SalePrice.Mul(decimal.NewFromInt(int64(units)))
				s.TotalSales = s.TotalSales.Add(amount)
				if month, ok := monthOf(p.SaleDate); ok {
					sales.add(month, amount)
				}
			}
		}
		if p.Price != nil && !p.Price.IsZero() {
			if month, ok := monthOf(p.PurchaseDate); ok {
				purchases.add(month, price.Mul(stock))
			}
		}
	}

	if totalItems > 0 {
		s.AveragePurchasePrice = s.TotalPurchaseCost.Div(decimal.NewFromInt(totalItems)).Round(2)
	}
	if s.TotalPurchaseCost.IsPositive() {
		margin := s.TotalSales.Sub(s.TotalPurchaseCost).Div(s.TotalPurchaseCost).Mul(decimal.NewFromInt(100)).Round(1)
		s.ProfitMargin = &margin
	}
	s.MonthlySales = sales.points()
	s.MonthlyPurchases = purchases.points()
	s.PurchaseHistory = priceRecords(history, names)
	return s
}

func priceRecords(history []inventory.HistoryEntry, names map[string]string) []PriceRecord {
	out := make([]PriceRecord, 0, len(history))
	for _, e := range history {
		if e.Price == nil {
			continue
		}
		name, ok := names[e.ProductID]
		if !ok || name == "" {
			name = UnknownProduct
		}
		out = append(out, PriceRecord{
			ID:          e.ID,
			ProductID:   e.ProductID,
			ProductName: name,
			Change:      e.Change,
			Price:       *e.Price,
			Date:        e.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

type monthly struct {
	totals map[time.Time]decimal.Decimal
}

func newMonthly() *monthly {
	return &monthly{totals: make(map[time.Time]decimal.Decimal)}
}

func (m *monthly) add(month time.Time, amount decimal.Decimal) {
	m.totals[month] = m.totals[month].Add(amount)
}

// points returns the months in calendar order labelled like "Jan 2024".
func (m *monthly) points() []MonthlyAmount {
	months := make([]time.Time, 0, len(m.totals))
	for month := range m.totals {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	out := make([]MonthlyAmount, 0, len(months))
	for _, month := range months {
		out = append(out, MonthlyAmount{Month: month.Format(MonthLayout), Amount: m.totals[month]})
	}
	return out
}

func monthOf(date string) (time.Time, bool) {
	t, err := time.Parse(inventory.DateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

func value(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
