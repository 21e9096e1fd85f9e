package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gstpos/backend/internal/domain"
)

func TestOpenPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p := newProduct(t, s, "654321", 7)
	if err := s.DeductStock(ctx, []domain.StockAdjustment{{ProductID: p.ID, Qty: 2}}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	c, err := s.CreateCustomer(ctx, domain.Customer{Name: "Ravi", Phone: "9000000001"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	bill, err := s.CreateBill(ctx, domain.Bill{
		BillNo: "INV-20260001",
		Items:  []domain.BillItem{{ProductID: p.ID, Qty: 2, Price: 100, Amount: 200}},
	}, domain.Payment{Amount: 200, Method: domain.PaymentUPI})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := s.AddCustomerOrder(ctx, c.ID, bill.ID); err != nil {
		t.Fatalf("add order: %v", err)
	}
	if _, err := s.NextSequence(ctx, "bill-2026"); err != nil {
		t.Fatalf("next sequence: %v", err)
	}

	for _, name := range []string{"products", "bills", "payments", "customers", "counters", "users"} {
		if _, err := os.Stat(filepath.Join(dir, name+".json")); err != nil {
			t.Fatalf("expected %s.json to exist: %v", name, err)
		}
	}

	reopened, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetProduct(ctx, p.ID)
	if err != nil || got.Stock != 5 {
		t.Fatalf("expected stock 5 after restart, got %+v err=%v", got, err)
	}
	gotBill, err := reopened.GetBill(ctx, bill.ID)
	if err != nil || gotBill.BillNo != "INV-20260001" {
		t.Fatalf("expected persisted bill, got %+v err=%v", gotBill, err)
	}
	payments, _ := reopened.ListPaymentsByBill(ctx, bill.ID)
	if len(payments) != 1 {
		t.Fatalf("expected persisted payment, got %d", len(payments))
	}
	gotCustomer, _ := reopened.GetCustomer(ctx, c.ID)
	if len(gotCustomer.Orders) != 1 || gotCustomer.Orders[0] != bill.ID {
		t.Fatalf("expected persisted order link, got %v", gotCustomer.Orders)
	}
	next, _ := reopened.NextSequence(ctx, "bill-2026")
	if next != 2 {
		t.Fatalf("expected counter to continue at 2, got %d", next)
	}
	users, _ := reopened.ListUsers(ctx)
	if len(users) != 2 {
		t.Fatalf("expected seeded users to persist once, got %d", len(users))
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "products.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Open(dir, nil); err == nil {
		t.Fatal("expected corrupt collection file to fail open")
	}
}

func TestCreateBillLeavesNoPaymentWhenBillWriteFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// a non-empty directory in place of bills.json makes the rename fail
	if err := os.MkdirAll(filepath.Join(dir, "bills.json", "locked"), 0o755); err != nil {
		t.Fatalf("block bills file: %v", err)
	}

	_, err = s.CreateBill(ctx, domain.Bill{
		BillNo: "INV-20260001",
		Items:  []domain.BillItem{{ProductID: "prd-1", Qty: 1, Price: 10, Amount: 10}},
	}, domain.Payment{Amount: 10, Method: domain.PaymentCash})
	if err == nil {
		t.Fatal("expected bill write to fail")
	}

	s.mu.RLock()
	bills, payments := len(s.bills), len(s.payments)
	s.mu.RUnlock()
	if bills != 0 || payments != 0 {
		t.Fatalf("expected no bill or payment in memory, got bills=%d payments=%d", bills, payments)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "payments.json"))
	if err != nil {
		t.Fatalf("read payments: %v", err)
	}
	var onDisk []domain.Payment
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("decode payments: %v", err)
	}
	if len(onDisk) != 0 {
		t.Fatalf("expected no payment on disk, got %+v", onDisk)
	}
}
