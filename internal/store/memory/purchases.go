package memory

import (
	"context"
	"slices"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ProductID == "" || purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase
	if err := s.persist(colPurchases); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchases[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &purchase, nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, p)
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return cmpNewest(a.CreatedAt, b.CreatedAt)
	})
	return purchases, nil
}

func (s *Store) UpdatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.purchases[purchase.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	purchase.CreatedAt = existing.CreatedAt
	s.purchases[purchase.ID] = purchase
	if err := s.persist(colPurchases); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchases[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.purchases, id)
	return s.persist(colPurchases)
}
