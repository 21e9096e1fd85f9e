package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

const customerColumns = `id, name, phone, email, address, points, created_at, updated_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var email, address sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &address, &c.Points, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Address = address.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.Orders = []string{}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]*domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachOrders(ctx, refs); err != nil {
		return nil, err
	}

	customers := make([]domain.Customer, 0, len(refs))
	for _, c := range refs {
		customers = append(customers, *c)
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.findCustomer(ctx, "id", id)
}

func (s *Store) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return s.findCustomer(ctx, "phone", strings.TrimSpace(phone))
}

func (s *Store) findCustomer(ctx context.Context, column string, value string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachOrders(ctx, []*domain.Customer{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) attachOrders(ctx context.Context, customers []*domain.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	ids := make([]string, 0, len(customers))
	byID := make(map[string]*domain.Customer, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, bill_id
		FROM customer_orders
		WHERE customer_id = ANY($1)
		ORDER BY linked_at ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var customerID, billID string
		if err := rows.Scan(&customerID, &billID); err != nil {
			return err
		}
		if c, ok := byID[customerID]; ok {
			c.Orders = append(c.Orders, billID)
		}
	}
	return rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Phone = strings.TrimSpace(customer.Phone)
	if customer.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	customer.Orders = []string{}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, points, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.Name, customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address),
		customer.Points, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return nil, conflictFrom(err, customer.Phone)
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	updated, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, address = $4, points = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address), customer.Points))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachOrders(ctx, []*domain.Customer{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) AddCustomerOrder(ctx context.Context, customerID string, billID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_orders (customer_id, bill_id, linked_at)
		SELECT id, $2, now() FROM customers WHERE id = $1
		ON CONFLICT (customer_id, bill_id) DO NOTHING
	`, customerID, billID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetCustomer(ctx, customerID); err != nil {
			return err
		}
	}
	return nil
}
