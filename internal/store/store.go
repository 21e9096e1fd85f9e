package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gstpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// InsufficientStockError reports the first product that could not cover a
// requested deduction. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ConflictError is returned when a business-unique key is already taken.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsConflictOn reports whether err is a ConflictError on field.
func IsConflictOn(err error, field string) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Field == field
}

// SumAdjustments totals quantities per product in first-seen order. A
// non-positive quantity or a total that overflows int is ErrInvalidInput.
func SumAdjustments(items []domain.StockAdjustment) ([]string, map[string]int, error) {
	if len(items) == 0 {
		return nil, nil, ErrInvalidInput
	}
	totals := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return nil, nil, ErrInvalidInput
		}
		current, seen := totals[item.ProductID]
		if !seen {
			order = append(order, item.ProductID)
		}
		if current > math.MaxInt-item.Qty {
			return nil, nil, fmt.Errorf("%w: quantity for %s overflows", ErrInvalidInput, item.ProductID)
		}
		totals[item.ProductID] = current + item.Qty
	}
	return order, totals, nil
}

const (
	FieldBarcode = "barcode"
	FieldPhone   = "phone"
	FieldBillNo  = "billNo"
	FieldUser    = "username"
)

type Repository interface {
	ListProducts(ctx context.Context, includeDeleted bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SoftDeleteProduct(ctx context.Context, id string) error
	// AdjustStock applies a signed delta to one product and returns it. A delta
	// that would leave stock below zero fails with *InsufficientStockError.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	// DeductStock decrements every product by its quantity or none of them.
	DeductStock(ctx context.Context, items []domain.StockAdjustment) error

	CreateBill(ctx context.Context, bill domain.Bill, payment domain.Payment) (*domain.Bill, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error)
	CountBills(ctx context.Context) (int, error)
	ListPaymentsByBill(ctx context.Context, billID string) ([]domain.Payment, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	AddCustomerOrder(ctx context.Context, customerID string, billID string) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, id string) error

	NextSequence(ctx context.Context, name string) (int64, error)
	// RaiseSequence lifts a counter to at least floor so the next value is
	// above it. A counter already past floor is left alone.
	RaiseSequence(ctx context.Context, name string, floor int64) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
