package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

const purchaseColumns = `id, product_id, product_name, quantity, unit_cost, total_amount, supplier, created_at`

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := row.Scan(&p.ID, &p.ProductID, &p.ProductName, &p.Quantity, &p.UnitCost, &p.TotalAmount, &p.Supplier, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ProductID == "" || purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, product_id, product_name, quantity, unit_cost, total_amount, supplier, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.ProductID, purchase.ProductName, purchase.Quantity, purchase.UnitCost,
		purchase.TotalAmount, purchase.Supplier, purchase.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	p, err := scanPurchase(s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanPurchase(s.db.QueryRowContext(ctx, `
		UPDATE purchases
		SET quantity = $2, unit_cost = $3, total_amount = $4, supplier = $5, product_name = $6
		WHERE id = $1
		RETURNING `+purchaseColumns,
		purchase.ID, purchase.Quantity, purchase.UnitCost, purchase.TotalAmount, purchase.Supplier, purchase.ProductName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return updated, err
}

func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
