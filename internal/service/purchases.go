package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/pricing"
	"gstpos/backend/internal/store"
)

const defaultSupplier = "Generic Supplier"

func purchaseTotal(quantity int, unitCost float64) float64 {
	return pricing.Money(decimal.NewFromFloat(unitCost).Mul(decimal.NewFromInt(int64(quantity))))
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx)
}

// CreatePurchase records received stock and adds its quantity to the product.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (*domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		product, err := s.repo.GetProduct(ctx, req.ProductID)
		switch {
		case err == nil:
			name = product.Name
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	applied, err := s.applyStockDelta(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ProductID:   req.ProductID,
		ProductName: name,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		TotalAmount: purchaseTotal(req.Quantity, req.UnitCost),
		Supplier:    defaultString(req.Supplier, defaultSupplier),
		CreatedAt:   s.now(),
	})
	if err != nil {
		if applied {
			s.revertStockDelta(ctx, req.ProductID, req.Quantity)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"purchase_id": created.ID,
		"product_id":  created.ProductID,
		"quantity":    created.Quantity,
	}).Info("purchase recorded")
	return created, nil
}

// UpdatePurchase changes quantity and cost, moving stock by the quantity
// difference only.
func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseUpdateRequest) (*domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "purchase:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	diff := req.Quantity - current.Quantity

	applied, err := s.applyStockDelta(ctx, current.ProductID, diff)
	if err != nil {
		return nil, err
	}

	next := *current
	next.Quantity = req.Quantity
	next.UnitCost = req.UnitCost
	next.TotalAmount = purchaseTotal(req.Quantity, req.UnitCost)
	updated, err := s.repo.UpdatePurchase(ctx, next)
	if err != nil {
		if applied {
			s.revertStockDelta(ctx, current.ProductID, diff)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"purchase_id": id,
		"product_id":  current.ProductID,
		"delta":       diff,
	}).Info("purchase updated")
	return updated, nil
}

// DeletePurchase removes the purchase and takes its quantity back out of
// stock. It fails if that stock has already been sold.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, "purchase:"+id)
	if err != nil {
		return err
	}
	defer release()

	current, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	applied, err := s.applyStockDelta(ctx, current.ProductID, -current.Quantity)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePurchase(ctx, id); err != nil {
		if applied {
			s.revertStockDelta(ctx, current.ProductID, -current.Quantity)
		}
		return err
	}

	s.log.WithFields(logrus.Fields{
		"purchase_id": id,
		"product_id":  current.ProductID,
		"quantity":    current.Quantity,
	}).Info("purchase deleted")
	return nil
}
