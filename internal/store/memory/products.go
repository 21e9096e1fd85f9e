package memory

import (
	"context"
	"slices"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) ListProducts(_ context.Context, includeDeleted bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Deleted && !includeDeleted {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneProduct(product)
	return &found, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	barcode = normalizeKey(barcode)
	for _, p := range s.products {
		if p.Barcode == barcode && !p.Deleted {
			found := cloneProduct(p)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Barcode = normalizeKey(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if s.barcodeTaken(product.Barcode, "") {
		return nil, &store.ConflictError{Field: store.FieldBarcode, Value: product.Barcode}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, &store.ConflictError{Field: "id", Value: product.ID}
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt

	s.products[product.ID] = product
	if err := s.persist(colProducts); err != nil {
		return nil, err
	}
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Barcode = normalizeKey(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if s.barcodeTaken(product.Barcode, product.ID) {
		return nil, &store.ConflictError{Field: store.FieldBarcode, Value: product.Barcode}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = product
	if err := s.persist(colProducts); err != nil {
		return nil, err
	}
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) SoftDeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists || product.Deleted {
		return store.ErrNotFound
	}
	product.Deleted = true
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return s.persist(colProducts)
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock+delta < 0 {
		return nil, &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   -delta,
		}
	}
	product.Stock += delta
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	if err := s.persist(colProducts); err != nil {
		return nil, err
	}
	adjusted := cloneProduct(product)
	return &adjusted, nil
}

func (s *Store) DeductStock(_ context.Context, items []domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, totals, err := store.SumAdjustments(items)
	if err != nil {
		return err
	}
	for _, id := range order {
		product, exists := s.products[id]
		if !exists || product.Deleted {
			return store.ErrNotFound
		}
		if product.Stock < totals[id] {
			return &store.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   totals[id],
			}
		}
	}

	now := time.Now().UTC()
	for _, id := range order {
		product := s.products[id]
		product.Stock -= totals[id]
		product.UpdatedAt = now
		s.products[id] = product
	}
	return s.persist(colProducts)
}

func (s *Store) barcodeTaken(barcode string, exceptID string) bool {
	for _, p := range s.products {
		if p.ID != exceptID && p.Barcode == barcode {
			return true
		}
	}
	return false
}
