package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gstpos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	barcode TEXT NOT NULL,
	category TEXT NOT NULL,
	sub_category TEXT,
	mrp NUMERIC(12,2),
	price NUMERIC(12,2) NOT NULL,
	cost_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	gst NUMERIC(5,2) NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	deleted BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT products_barcode_key UNIQUE (barcode)
);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL,
	email TEXT,
	address TEXT,
	points INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT customers_phone_key UNIQUE (phone)
);

CREATE TABLE IF NOT EXISTS bills (
	id TEXT PRIMARY KEY,
	bill_no TEXT NOT NULL,
	sub_total NUMERIC(12,2) NOT NULL,
	tax_amount NUMERIC(12,2) NOT NULL,
	total_amount NUMERIC(12,2) NOT NULL,
	payment_mode TEXT NOT NULL,
	customer_id TEXT,
	customer_name TEXT,
	customer_phone TEXT,
	billed_by_id TEXT NOT NULL,
	billed_by_name TEXT NOT NULL,
	billed_by_role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT bills_bill_no_key UNIQUE (bill_no)
);
CREATE INDEX IF NOT EXISTS bills_billed_by_created_idx ON bills (billed_by_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bill_items (
	bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
	line_no INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	name TEXT NOT NULL,
	qty INTEGER NOT NULL,
	mrp NUMERIC(12,2),
	price NUMERIC(12,2) NOT NULL,
	gst NUMERIC(5,2) NOT NULL,
	amount NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (bill_id, line_no)
);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	bill_id TEXT NOT NULL REFERENCES bills(id),
	amount NUMERIC(12,2) NOT NULL,
	method TEXT NOT NULL,
	reference_id TEXT,
	paid_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_bill_idx ON payments (bill_id);

CREATE TABLE IF NOT EXISTS customer_orders (
	customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	bill_id TEXT NOT NULL,
	linked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (customer_id, bill_id)
);

CREATE TABLE IF NOT EXISTS purchases (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	product_name TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 1),
	unit_cost NUMERIC(12,2) NOT NULL,
	total_amount NUMERIC(12,2) NOT NULL,
	supplier TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sequences (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS app_users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	name TEXT NOT NULL,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT app_users_username_key UNIQUE (username)
);
`

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, store.ErrInvalidInput
	}
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, name).Scan(&value)
	return value, err
}

func (s *Store) RaiseSequence(ctx context.Context, name string, floor int64) error {
	if name == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = GREATEST(sequences.value, EXCLUDED.value)
	`, name, floor)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var constraintFields = map[string]string{
	"products_barcode_key":   store.FieldBarcode,
	"customers_phone_key":    store.FieldPhone,
	"bills_bill_no_key":      store.FieldBillNo,
	"app_users_username_key": store.FieldUser,
}

// conflictFrom converts a unique violation into a ConflictError naming the
// business key, or returns err unchanged.
func conflictFrom(err error, value string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	field, ok := constraintFields[pgErr.ConstraintName]
	if !ok {
		field = pgErr.ConstraintName
	}
	return &store.ConflictError{Field: field, Value: value}
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}

func floatPtr(val sql.NullFloat64) *float64 {
	if !val.Valid {
		return nil
	}
	v := val.Float64
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
