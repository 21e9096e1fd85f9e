package cache

import (
	"context"
	"testing"
	"time"

	"gstpos/backend/internal/domain"
)

var (
	_ ProductCache = NoopProductCache{}
	_ ProductCache = (*RedisProductCache)(nil)
)

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := NoopProductCache{}
	ctx := context.Background()

	if err := c.Set(ctx, "123456", &domain.Product{ID: "prd-1"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "123456"); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
	if err := c.Delete(ctx, "123456"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestBarcodeKeyIsNamespaced(t *testing.T) {
	if got := barcodeKey("100001"); got != "gstpos:product:barcode:100001" {
		t.Fatalf("unexpected key %q", got)
	}
}
