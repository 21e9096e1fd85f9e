package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("GSTPOS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set GSTPOS_TEST_MONGO_URI to run mongo integration test")
	}
	dbName := fmt.Sprintf("gstpos_it_%d", time.Now().UnixNano())
	s, err := New(context.Background(), uri, dbName)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.products.Database().Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestDeductStockRevertsOnPartialFailure(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	a, err := s.CreateProduct(ctx, domain.Product{Name: "A", Barcode: "111111", Category: "it", Price: 10, Stock: 5})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := s.CreateProduct(ctx, domain.Product{Name: "B", Barcode: "222222", Category: "it", Price: 10, Stock: 1})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	err = s.DeductStock(ctx, []domain.StockAdjustment{{ProductID: a.ID, Qty: 2}, {ProductID: b.ID, Qty: 3}})
	var insufficient *store.InsufficientStockError
	if !errors.As(err, &insufficient) || insufficient.ProductID != b.ID {
		t.Fatalf("expected insufficient stock on b, got %v", err)
	}
	gotA, _ := s.GetProduct(ctx, a.ID)
	if gotA.Stock != 5 {
		t.Fatalf("expected a restored to 5, got %d", gotA.Stock)
	}

	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Dup", Barcode: "111111", Category: "it", Price: 1}); !store.IsConflictOn(err, store.FieldBarcode) {
		t.Fatalf("expected barcode conflict, got %v", err)
	}
}

func TestBillCustomerAndCounterRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	c, err := s.CreateCustomer(ctx, domain.Customer{Name: "Asha", Phone: "9999999999"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := s.CreateCustomer(ctx, domain.Customer{Name: "Dup", Phone: "9999999999"}); !store.IsConflictOn(err, store.FieldPhone) {
		t.Fatalf("expected phone conflict, got %v", err)
	}

	seq, err := s.NextSequence(ctx, "bill-2026")
	if err != nil || seq != 1 {
		t.Fatalf("expected first sequence 1, got %d err=%v", seq, err)
	}
	if err := s.RaiseSequence(ctx, "bill-2025", 6); err != nil {
		t.Fatalf("raise sequence: %v", err)
	}
	if next, _ := s.NextSequence(ctx, "bill-2025"); next != 7 {
		t.Fatalf("expected 7 after raising to 6, got %d", next)
	}
	bill, err := s.CreateBill(ctx, domain.Bill{
		BillNo:   "INV-20260001",
		Items:    []domain.BillItem{{ProductID: "p", Name: "P", Qty: 1, Price: 10, Amount: 10}},
		Customer: &domain.CustomerSnapshot{ID: c.ID, Name: c.Name, Phone: c.Phone},
	}, domain.Payment{Amount: 10, Method: domain.PaymentCard})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if _, err := s.CreateBill(ctx, domain.Bill{BillNo: "INV-20260001", Items: bill.Items}, domain.Payment{}); !store.IsConflictOn(err, store.FieldBillNo) {
		t.Fatalf("expected billNo conflict, got %v", err)
	}
	if n, _ := s.payments.CountDocuments(ctx, bson.M{}); n != 1 {
		t.Fatalf("expected exactly one payment, got %d", n)
	}

	for i := 0; i < 2; i++ {
		if err := s.AddCustomerOrder(ctx, c.ID, bill.ID); err != nil {
			t.Fatalf("add order: %v", err)
		}
	}
	got, _ := s.GetCustomer(ctx, c.ID)
	if len(got.Orders) != 1 {
		t.Fatalf("expected one order, got %v", got.Orders)
	}
}
