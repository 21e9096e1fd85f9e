package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("GSTPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set GSTPOS_TEST_DATABASE_URL to run postgres integration test")
	}
	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestDeductStockIsConditionalAndAtomic(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	a, err := s.CreateProduct(ctx, domain.Product{Name: "IT A", Barcode: fmt.Sprintf("it-a-%d", stamp), Category: "it", Price: 10, Stock: 3})
	if err != nil {
		t.Fatalf("create product a: %v", err)
	}
	b, err := s.CreateProduct(ctx, domain.Product{Name: "IT B", Barcode: fmt.Sprintf("it-b-%d", stamp), Category: "it", Price: 10, Stock: 1})
	if err != nil {
		t.Fatalf("create product b: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ANY($1)`, []string{a.ID, b.ID})
	})

	err = s.DeductStock(ctx, []domain.StockAdjustment{{ProductID: a.ID, Qty: 2}, {ProductID: b.ID, Qty: 2}})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	gotA, _ := s.GetProduct(ctx, a.ID)
	if gotA.Stock != 3 {
		t.Fatalf("expected stock of a unchanged at 3, got %d", gotA.Stock)
	}

	if err := s.DeductStock(ctx, []domain.StockAdjustment{{ProductID: a.ID, Qty: 3}}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	gotA, _ = s.GetProduct(ctx, a.ID)
	if gotA.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", gotA.Stock)
	}
}

func TestCreateBillWritesPaymentAndRejectsDuplicateNumber(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	billNo := fmt.Sprintf("IT-%d", time.Now().UnixNano())

	bill := domain.Bill{
		BillNo:      billNo,
		Items:       []domain.BillItem{{ProductID: "prd-it", Name: "IT", Qty: 2, Price: 100, GST: 12, Amount: 200}},
		SubTotal:    178.57,
		TaxAmount:   21.43,
		TotalAmount: 200,
		PaymentMode: domain.PaymentCash,
		BilledBy:    domain.BilledBy{UserID: "usr-it", Name: "IT", Role: domain.RoleEmployee},
	}
	created, err := s.CreateBill(ctx, bill, domain.Payment{Amount: 200, Method: domain.PaymentCash})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE bill_id = $1`, created.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, created.ID)
	})

	got, err := s.GetBill(ctx, created.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(got.Items) != 1 || got.TotalAmount != 200 || got.Customer != nil {
		t.Fatalf("unexpected bill: %+v", got)
	}
	payments, err := s.ListPaymentsByBill(ctx, created.ID)
	if err != nil || len(payments) != 1 {
		t.Fatalf("expected one payment, got %d err=%v", len(payments), err)
	}

	if _, err := s.CreateBill(ctx, bill, domain.Payment{Amount: 200}); !store.IsConflictOn(err, store.FieldBillNo) {
		t.Fatalf("expected billNo conflict, got %v", err)
	}
}

func TestCustomerPhoneConflictAndOrderLink(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	phone := fmt.Sprintf("9%09d", time.Now().UnixNano()%1_000_000_000)

	c, err := s.CreateCustomer(ctx, domain.Customer{Name: "IT", Phone: phone})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, c.ID)
	})

	if _, err := s.CreateCustomer(ctx, domain.Customer{Name: "Dup", Phone: phone}); !store.IsConflictOn(err, store.FieldPhone) {
		t.Fatalf("expected phone conflict, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.AddCustomerOrder(ctx, c.ID, "bill-it"); err != nil {
			t.Fatalf("add order: %v", err)
		}
	}
	got, err := s.FindCustomerByPhone(ctx, phone)
	if err != nil || len(got.Orders) != 1 {
		t.Fatalf("expected one order, got %+v err=%v", got, err)
	}
	if err := s.AddCustomerOrder(ctx, "cus-missing", "bill-it"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestNextSequenceIncrements(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	name := fmt.Sprintf("it-seq-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sequences WHERE name = $1`, name)
	})

	first, err := s.NextSequence(ctx, name)
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	second, _ := s.NextSequence(ctx, name)
	if first != 1 || second != 2 {
		t.Fatalf("expected 1 then 2, got %d then %d", first, second)
	}

	if err := s.RaiseSequence(ctx, name, 10); err != nil {
		t.Fatalf("raise sequence: %v", err)
	}
	if err := s.RaiseSequence(ctx, name, 4); err != nil {
		t.Fatalf("raise sequence: %v", err)
	}
	if next, _ := s.NextSequence(ctx, name); next != 11 {
		t.Fatalf("expected 11 after raising to 10, got %d", next)
	}
}
