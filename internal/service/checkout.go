package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/pricing"
	"gstpos/backend/internal/store"
)

// Checkout turns a cart into a persisted bill. Stock is deducted first with a
// conditional all-or-nothing write; any failure before the bill commits puts
// the deducted stock back.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Bill, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return domain.Bill{}, err
	}

	products, deductions, err := s.validateStock(ctx, req.Items)
	if err != nil {
		return domain.Bill{}, err
	}

	items, totals, err := s.priceItems(req.Items, products)
	if err != nil {
		return domain.Bill{}, err
	}
	subTotal, taxAmount, totalAmount := totals.Rounded()
	if err := s.checkCallerTotals(req, totals); err != nil {
		return domain.Bill{}, err
	}

	if err := s.repo.DeductStock(ctx, deductions); err != nil {
		return domain.Bill{}, err
	}
	s.invalidateProducts(ctx, products)

	committed := false
	defer func() {
		if !committed {
			s.restoreStock(ctx, deductions)
			s.invalidateProducts(ctx, products)
		}
	}()

	var snapshot *domain.CustomerSnapshot
	if req.Customer != nil && strings.TrimSpace(req.Customer.Phone) != "" {
		customer, err := s.ResolveCustomer(ctx, req.Customer.Phone, req.Customer.Name)
		if err != nil {
			return domain.Bill{}, err
		}
		snapshot = &domain.CustomerSnapshot{ID: customer.ID, Name: customer.Name, Phone: customer.Phone}
	}

	now := s.now()
	bill := domain.Bill{
		Items:       items,
		SubTotal:    subTotal,
		TaxAmount:   taxAmount,
		TotalAmount: totalAmount,
		PaymentMode: req.PaymentMode,
		Customer:    snapshot,
		BilledBy: domain.BilledBy{
			UserID: actor.ID,
			Name:   defaultString(req.EmployeeName, actor.Name),
			Role:   actor.Role,
		},
		CreatedAt: now,
	}
	payment := domain.Payment{
		Amount:      totalAmount,
		Method:      req.PaymentMode,
		ReferenceID: strings.TrimSpace(req.ReferenceID),
		Date:        now,
	}

	created, err := s.commitBill(ctx, bill, payment)
	if err != nil {
		return domain.Bill{}, err
	}
	committed = true

	if snapshot != nil {
		if err := s.repo.AddCustomerOrder(ctx, snapshot.ID, created.ID); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"bill_no":     created.BillNo,
				"customer_id": snapshot.ID,
			}).Warn("failed to link bill to customer")
		}
	}

	s.log.WithFields(logrus.Fields{
		"bill_no":  created.BillNo,
		"total":    created.TotalAmount,
		"employee": created.BilledBy.Name,
		"role":     created.BilledBy.Role,
	}).Info("bill committed")
	return *created, nil
}

// validateStock loads every product once and checks the aggregated quantity
// per product before anything is written.
func (s *Service) validateStock(ctx context.Context, items []domain.CheckoutItem) (map[string]domain.Product, []domain.StockAdjustment, error) {
	products := make(map[string]domain.Product, len(items))
	wanted := make(map[string]int, len(items))
	order := make([]string, 0, len(items))

	for i, item := range items {
		current, seen := wanted[item.ProductID]
		if !seen {
			order = append(order, item.ProductID)
		}
		if current > math.MaxInt-item.Qty {
			return nil, nil, invalid(fmt.Sprintf("items[%d].qty", i), "total quantity for product is too large")
		}
		wanted[item.ProductID] = current + item.Qty

		if _, loaded := products[item.ProductID]; loaded {
			continue
		}
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && product.Deleted) {
			return nil, nil, fmt.Errorf("product %s not found: %w", defaultString(item.Name, item.ProductID), store.ErrNotFound)
		}
		if err != nil {
			return nil, nil, err
		}
		products[item.ProductID] = *product
	}

	deductions := make([]domain.StockAdjustment, 0, len(order))
	for _, id := range order {
		product := products[id]
		if product.Stock < wanted[id] {
			return nil, nil, &store.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   wanted[id],
			}
		}
		deductions = append(deductions, domain.StockAdjustment{ProductID: id, Qty: wanted[id]})
	}
	return products, deductions, nil
}

func (s *Service) priceItems(items []domain.CheckoutItem, products map[string]domain.Product) ([]domain.BillItem, pricing.Totals, error) {
	lines := make([]pricing.Line, 0, len(items))
	billItems := make([]domain.BillItem, 0, len(items))
	for i, item := range items {
		if err := pricing.ValidateSlab(item.GST); err != nil {
			return nil, pricing.Totals{}, invalid(fmt.Sprintf("items[%d].gst", i), "%s", err.Error())
		}
		if !pricing.IsMoney(item.Price) {
			return nil, pricing.Totals{}, invalid(fmt.Sprintf("items[%d].price", i), "price must have at most 2 decimal places")
		}
		product := products[item.ProductID]
		mrp := item.MRP
		if mrp == nil {
			mrp = product.MRP
		}
		breakdown := pricing.Decompose(item.Price, item.Qty, item.GST)
		lines = append(lines, pricing.Line{Price: item.Price, Qty: item.Qty, GSTRate: item.GST})
		billItems = append(billItems, domain.BillItem{
			ProductID: item.ProductID,
			Name:      defaultString(item.Name, product.Name),
			Qty:       item.Qty,
			MRP:       mrp,
			Price:     item.Price,
			GST:       item.GST,
			Amount:    pricing.Money(breakdown.LineTotal),
		})
	}
	return billItems, pricing.Summarize(lines), nil
}

func (s *Service) checkCallerTotals(req domain.CheckoutRequest, totals pricing.Totals) error {
	checks := []struct {
		field string
		want  decimal.Decimal
		got   *float64
	}{
		{"totalAmount", totals.TotalAmount, req.TotalAmount},
		{"taxAmount", totals.TaxAmount, req.TaxAmount},
		{"subTotal", totals.SubTotal, req.SubTotal},
	}
	for _, c := range checks {
		if c.got == nil {
			continue
		}
		if !pricing.WithinTolerance(c.want, *c.got, s.tolerance) {
			return invalid(c.field, "expected %.2f, got %.2f", pricing.Money(c.want), *c.got)
		}
	}
	return nil
}

func (s *Service) restoreStock(ctx context.Context, deductions []domain.StockAdjustment) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range deductions {
		if _, err := s.repo.AdjustStock(ctx, d.ProductID, d.Qty); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"product_id": d.ProductID,
				"qty":        d.Qty,
			}).Error("failed to restore stock after aborted checkout")
			continue
		}
		s.log.WithFields(logrus.Fields{"product_id": d.ProductID, "qty": d.Qty}).Warn("stock restored after aborted checkout")
	}
}
