package memory

import (
	"context"
	"slices"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, cloneCustomer(c))
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpNewest(a.CreatedAt, b.CreatedAt)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneCustomer(customer)
	return &found, nil
}

func (s *Store) FindCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phone = normalizeKey(phone)
	for _, c := range s.customers {
		if c.Phone == phone {
			found := cloneCustomer(c)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Phone = normalizeKey(customer.Phone)
	if customer.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	for _, c := range s.customers {
		if c.Phone == customer.Phone {
			return nil, &store.ConflictError{Field: store.FieldPhone, Value: customer.Phone}
		}
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.Orders == nil {
		customer.Orders = []string{}
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = customer.CreatedAt

	s.customers[customer.ID] = cloneCustomer(customer)
	if err := s.persist(colCustomers); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer replaces the profile fields. Phone and orders are kept from
// the stored record.
func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = customer.Name
	existing.Email = customer.Email
	existing.Address = customer.Address
	existing.Points = customer.Points
	existing.UpdatedAt = time.Now().UTC()

	s.customers[existing.ID] = existing
	if err := s.persist(colCustomers); err != nil {
		return nil, err
	}
	updated := cloneCustomer(existing)
	return &updated, nil
}

func (s *Store) AddCustomerOrder(_ context.Context, customerID string, billID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customers[customerID]
	if !exists {
		return store.ErrNotFound
	}
	if slices.Contains(customer.Orders, billID) {
		return nil
	}
	customer = cloneCustomer(customer)
	customer.Orders = append(customer.Orders, billID)
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customerID] = customer
	return s.persist(colCustomers)
}
