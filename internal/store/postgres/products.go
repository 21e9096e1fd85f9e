package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

const productColumns = `id, name, barcode, category, sub_category, mrp, price, cost_price, gst, stock, deleted, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var subCategory sql.NullString
	var mrp sql.NullFloat64
	if err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &subCategory, &mrp, &p.Price, &p.CostPrice, &p.GST, &p.Stock, &p.Deleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.SubCategory = subCategory.String
	p.MRP = floatPtr(mrp)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, includeDeleted bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 OR deleted = false)
		ORDER BY category, name
	`, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE barcode = $1 AND deleted = false
	`, strings.TrimSpace(barcode)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, category, sub_category, mrp, price, cost_price, gst, stock, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,$11,$12)
	`, product.ID, product.Name, product.Barcode, product.Category, nullIfEmpty(product.SubCategory), nullFloat(product.MRP),
		product.Price, product.CostPrice, product.GST, product.Stock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, conflictFrom(err, product.Barcode)
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, sub_category = $5, mrp = $6,
			price = $7, cost_price = $8, gst = $9, stock = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Barcode, product.Category, nullIfEmpty(product.SubCategory), nullFloat(product.MRP),
		product.Price, product.CostPrice, product.GST, product.Stock))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, conflictFrom(err, product.Barcode)
	}
	return updated, nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET deleted = true, updated_at = now()
		WHERE id = $1 AND deleted = false
	`, id)
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

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+productColumns, id, delta))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, getErr := s.GetProduct(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &store.InsufficientStockError{
		ProductID:   current.ID,
		ProductName: current.Name,
		Available:   current.Stock,
		Requested:   -delta,
	}
}

func (s *Store) DeductStock(ctx context.Context, items []domain.StockAdjustment) error {
	ids, totals, err := store.SumAdjustments(items)
	if err != nil {
		return err
	}
	// fixed lock order across concurrent checkouts
	sort.Strings(ids)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		var name string
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT name, stock FROM products
			WHERE id = $1 AND deleted = false
			FOR UPDATE
		`, id).Scan(&name, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		if stock < totals[id] {
			return &store.InsufficientStockError{ProductID: id, ProductName: name, Available: stock, Requested: totals[id]}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, id, totals[id]); err != nil {
			return err
		}
	}
	return tx.Commit()
}
