package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/pricing"
)

const lowStockThreshold = 10

// DashboardStats summarizes sales for today and the current month in the
// store's calendar. Employees see figures for their own bills only.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	now := s.now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)

	bills, err := s.repo.ListBills(ctx, domain.BillFilter{EmployeeID: scopeFor(actor), From: &monthStart})
	if err != nil {
		return domain.DashboardStats{}, err
	}

	today := decimal.Zero
	month := decimal.Zero
	var stats domain.DashboardStats
	for _, b := range bills {
		amount := decimal.NewFromFloat(b.TotalAmount)
		month = month.Add(amount)
		if !b.CreatedAt.Before(dayStart) {
			today = today.Add(amount)
			stats.TotalBillsToday++
		}
	}
	stats.TodaySales = pricing.Money(today)
	stats.MonthlySales = pricing.Money(month)

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	for _, p := range products {
		if p.Stock < lowStockThreshold {
			stats.LowStockItems++
		}
	}
	return stats, nil
}
