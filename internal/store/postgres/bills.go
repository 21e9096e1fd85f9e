package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

// CreateBill writes the bill, its lines and its payment in one transaction.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, payment domain.Payment) (*domain.Bill, error) {
	if bill.BillNo == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	payment.BillID = bill.ID
	if payment.Date.IsZero() {
		payment.Date = bill.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerID, customerName, customerPhone any
	if bill.Customer != nil {
		customerID = nullIfEmpty(bill.Customer.ID)
		customerName = bill.Customer.Name
		customerPhone = bill.Customer.Phone
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bills (
			id, bill_no, sub_total, tax_amount, total_amount, payment_mode,
			customer_id, customer_name, customer_phone,
			billed_by_id, billed_by_name, billed_by_role, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, bill.ID, bill.BillNo, bill.SubTotal, bill.TaxAmount, bill.TotalAmount, bill.PaymentMode,
		customerID, customerName, customerPhone,
		bill.BilledBy.UserID, bill.BilledBy.Name, bill.BilledBy.Role, bill.CreatedAt); err != nil {
		return nil, conflictFrom(err, bill.BillNo)
	}

	for i, item := range bill.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_id, line_no, product_id, name, qty, mrp, price, gst, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, bill.ID, i+1, item.ProductID, item.Name, item.Qty, nullFloat(item.MRP), item.Price, item.GST, item.Amount); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, bill_id, amount, method, reference_id, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.BillID, payment.Amount, payment.Method, nullIfEmpty(payment.ReferenceID), payment.Date); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, conflictFrom(err, bill.BillNo)
	}
	return &bill, nil
}

const billColumns = `id, bill_no, sub_total, tax_amount, total_amount, payment_mode,
	customer_id, customer_name, customer_phone, billed_by_id, billed_by_name, billed_by_role, created_at`

func scanBill(row rowScanner) (*domain.Bill, error) {
	var b domain.Bill
	var customerID, customerName, customerPhone sql.NullString
	if err := row.Scan(&b.ID, &b.BillNo, &b.SubTotal, &b.TaxAmount, &b.TotalAmount, &b.PaymentMode,
		&customerID, &customerName, &customerPhone,
		&b.BilledBy.UserID, &b.BilledBy.Name, &b.BilledBy.Role, &b.CreatedAt); err != nil {
		return nil, err
	}
	if customerPhone.Valid {
		b.Customer = &domain.CustomerSnapshot{ID: customerID.String, Name: customerName.String, Phone: customerPhone.String}
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*domain.Bill{bill}); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("billed_by_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := `SELECT ` + billColumns + ` FROM bills`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, bill_no DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]*domain.Bill, 0, 64)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, refs); err != nil {
		return nil, err
	}

	bills := make([]domain.Bill, 0, len(refs))
	for _, b := range refs {
		bills = append(bills, *b)
	}
	return bills, nil
}

func (s *Store) attachItems(ctx context.Context, bills []*domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bills))
	byID := make(map[string]*domain.Bill, len(bills))
	for _, b := range bills {
		ids = append(ids, b.ID)
		byID[b.ID] = b
		b.Items = []domain.BillItem{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_id, product_id, name, qty, mrp, price, gst, amount
		FROM bill_items
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var billID string
		var item domain.BillItem
		var mrp sql.NullFloat64
		if err := rows.Scan(&billID, &item.ProductID, &item.Name, &item.Qty, &mrp, &item.Price, &item.GST, &item.Amount); err != nil {
			return err
		}
		item.MRP = floatPtr(mrp)
		if b, ok := byID[billID]; ok {
			b.Items = append(b.Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) CountBills(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM bills`).Scan(&count)
	return count, err
}

func (s *Store) ListPaymentsByBill(ctx context.Context, billID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, amount, method, reference_id, paid_at
		FROM payments
		WHERE bill_id = $1
		ORDER BY paid_at ASC
	`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 1)
	for rows.Next() {
		var p domain.Payment
		var ref sql.NullString
		if err := rows.Scan(&p.ID, &p.BillID, &p.Amount, &p.Method, &ref, &p.Date); err != nil {
			return nil, err
		}
		p.ReferenceID = ref.String
		p.Date = p.Date.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
