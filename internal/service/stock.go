package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/store"
)

// applyStockDelta moves one product's stock by delta for the purchase ledger.
// A product that no longer exists is only logged so the purchase record can
// still be kept; it reports applied=false in that case.
func (s *Service) applyStockDelta(ctx context.Context, productID string, delta int) (applied bool, err error) {
	if delta == 0 {
		return true, nil
	}
	product, err := s.repo.AdjustStock(ctx, productID, delta)
	if errors.Is(err, store.ErrNotFound) {
		s.log.WithFields(logrus.Fields{"product_id": productID, "delta": delta}).Warn("stock adjustment skipped, product not found")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.dropCached(ctx, product.Barcode)
	s.log.WithFields(logrus.Fields{
		"product_id": productID,
		"delta":      delta,
		"stock":      product.Stock,
	}).Debug("stock adjusted")
	return true, nil
}

// revertStockDelta undoes a delta applied earlier in a failed operation.
func (s *Service) revertStockDelta(ctx context.Context, productID string, delta int) {
	if _, err := s.applyStockDelta(context.WithoutCancel(ctx), productID, -delta); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"product_id": productID,
			"delta":      -delta,
		}).Error("failed to revert stock adjustment")
	}
}
