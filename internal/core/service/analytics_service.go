package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

const (
	defaultAnalyticsRange = 30 * 24 * time.Hour
	maxAnalyticsRange     = 366 * 24 * time.Hour
	topProductCount       = 5
	dayLayout             = "2006-01-02"
)

type AnalyticsService struct {
	orders port.OrderRepository
	now    func() time.Time
}

func NewAnalyticsService(orders port.OrderRepository) *AnalyticsService {
	return &AnalyticsService{orders: orders, now: time.Now}
}

// ParseRange reads the from/to query values in any common date format.
// Missing values default to the 30 days before now. A date-only to covers
// that whole day.
func (s *AnalyticsService) ParseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := s.now().UTC()
	if strings.TrimSpace(toStr) != "" {
		t, err := dateparse.ParseIn(strings.TrimSpace(toStr), time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("Invalid to date")
		}
		if dateOnly(toStr) {
			t = t.Add(24 * time.Hour)
		}
		to = t.UTC()
	}
	from := to.Add(-defaultAnalyticsRange)
	if strings.TrimSpace(fromStr) != "" {
		t, err := dateparse.ParseIn(strings.TrimSpace(fromStr), time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("Invalid from date")
		}
		from = t.UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, invalid("Invalid date range")
	}
	if to.Sub(from) > maxAnalyticsRange {
		return time.Time{}, time.Time{}, invalid("Date range cannot exceed 366 days")
	}
	return from, to, nil
}

// dateOnly reports whether raw names a calendar day with no time of day.
// Unix timestamps count as explicit instants.
func dateOnly(raw string) bool {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ":") {
		return false
	}
	if len(raw) > 8 && strings.Trim(raw, "0123456789") == "" {
		return false
	}
	return true
}

// Summary aggregates orders created in [from, to). Cancelled orders count
// towards OrdersByStatus only.
func (s *AnalyticsService) Summary(ctx context.Context, from, to time.Time) (*domain.SalesSummary, error) {
	var current, previous []domain.Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.orders.ListOrdersBetween(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.orders.ListOrdersBetween(gctx, from.Add(-to.Sub(from)), from)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	summary := &domain.SalesSummary{
		From:            from,
		To:              to,
		TotalOrders:     len(current),
		Revenue:         domain.Taka(0),
		PreviousRevenue: revenue(previous),
		OrdersByStatus:  make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
	}
	for _, st := range domain.OrderStatuses {
		summary.OrdersByStatus[st] = 0
	}

	days := make(map[string]*domain.DailyRevenue)
	for d := from.Truncate(24 * time.Hour); d.Before(to); d = d.Add(24 * time.Hour) {
		key := d.Format(dayLayout)
		days[key] = &domain.DailyRevenue{Day: key, Revenue: domain.Taka(0)}
	}
	products := make(map[string]*domain.ProductSales)
	var values stats.Float64Data

	for _, o := range current {
		summary.OrdersByStatus[o.Status]++
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		summary.Revenue = summary.Revenue.Add(o.TotalAmount)
		values = append(values, o.TotalAmount.InexactFloat64())

		key := o.CreatedAt.UTC().Format(dayLayout)
		day, ok := days[key]
		if !ok {
			day = &domain.DailyRevenue{Day: key, Revenue: domain.Taka(0)}
			days[key] = day
		}
		day.Orders++
		day.Revenue = day.Revenue.Add(o.TotalAmount)

		for _, it := range o.Items {
			ps, ok := products[it.ProductID]
			if !ok {
				ps = &domain.ProductSales{ProductID: it.ProductID, ProductName: it.ProductName, Revenue: domain.Taka(0)}
				products[it.ProductID] = ps
			}
			ps.Quantity += it.Quantity
			ps.Revenue = ps.Revenue.Add(it.LineTotal())
		}
	}

	if len(values) > 0 {
		mean, _ := stats.Mean(values)
		median, _ := stats.Median(values)
		summary.AverageOrderValue, _ = stats.Round(mean, 2)
		summary.MedianOrderValue, _ = stats.Round(median, 2)
	}
	if summary.PreviousRevenue.IsPositive() {
		growth := summary.Revenue.Sub(summary.PreviousRevenue).Div(summary.PreviousRevenue).Mul(domain.Taka(100))
		summary.RevenueGrowth = growth.Round(1).InexactFloat64()
	}

	summary.RevenueByDay = make([]domain.DailyRevenue, 0, len(days))
	for _, d := range days {
		summary.RevenueByDay = append(summary.RevenueByDay, *d)
	}
	sort.Slice(summary.RevenueByDay, func(i, j int) bool {
		return summary.RevenueByDay[i].Day < summary.RevenueByDay[j].Day
	})

	summary.TopProducts = topProducts(products, topProductCount)
	return summary, nil
}

func revenue(orders []domain.Order) domain.Money {
	total := domain.Taka(0)
	for _, o := range orders {
		if o.Status != domain.OrderStatusCancelled {
			total = total.Add(o.TotalAmount)
		}
	}
	return total
}

// topProducts ranks by quantity, then revenue, then name.
func topProducts(products map[string]*domain.ProductSales, n int) []domain.ProductSales {
	out := make([]domain.ProductSales, 0, len(products))
	for _, p := range products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ProductName < out[j].ProductName
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
