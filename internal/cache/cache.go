package cache

import (
	"context"
	"time"

	"gstpos/backend/internal/domain"
)

// ProductCache holds barcode lookups for the scan path.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, bool, error)
	Set(ctx context.Context, barcode string, product *domain.Product, ttl time.Duration) error
	Delete(ctx context.Context, barcodes ...string) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ string, _ *domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Delete(_ context.Context, _ ...string) error {
	return nil
}

func barcodeKey(barcode string) string {
	return "gstpos:product:barcode:" + barcode
}
