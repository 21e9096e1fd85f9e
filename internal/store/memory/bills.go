package memory

import (
	"context"
	"slices"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) CreateBill(_ context.Context, bill domain.Bill, payment domain.Payment) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.BillNo == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.bills {
		if existing.BillNo == bill.BillNo {
			return nil, &store.ConflictError{Field: store.FieldBillNo, Value: bill.BillNo}
		}
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

	bill = cloneBill(bill)
	s.bills[bill.ID] = bill
	s.payments[payment.ID] = payment
	// payments first so a bill on disk always has its payment
	if err := s.persist(colPayments, colBills); err != nil {
		s.dropUncommittedBill(bill.ID, payment.ID)
		return nil, err
	}
	created := cloneBill(bill)
	return &created, nil
}

// dropUncommittedBill removes a bill whose write failed, along with a payment
// that may already have reached disk. Callers hold the write lock.
func (s *Store) dropUncommittedBill(billID string, paymentID string) {
	delete(s.bills, billID)
	if _, exists := s.payments[paymentID]; !exists {
		return
	}
	delete(s.payments, paymentID)
	if err := s.persist(colPayments); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Error("failed to remove payment of uncommitted bill")
	}
}

func (s *Store) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, exists := s.bills[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneBill(bill)
	return &found, nil
}

func (s *Store) ListBills(_ context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		if filter.EmployeeID != "" && b.BilledBy.UserID != filter.EmployeeID {
			continue
		}
		if filter.From != nil && b.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !b.CreatedAt.Before(*filter.To) {
			continue
		}
		bills = append(bills, cloneBill(b))
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int {
		if c := cmpNewest(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmpString(b.BillNo, a.BillNo)
	})
	return bills, nil
}

func (s *Store) CountBills(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bills), nil
}

func (s *Store) ListPaymentsByBill(_ context.Context, billID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, 1)
	for _, p := range s.payments {
		if p.BillID == billID {
			payments = append(payments, p)
		}
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return a.Date.Compare(b.Date)
	})
	return payments, nil
}

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return 0, store.ErrInvalidInput
	}
	s.counters[name]++
	next := s.counters[name]
	if err := s.persist(colCounters); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) RaiseSequence(_ context.Context, name string, floor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return store.ErrInvalidInput
	}
	if s.counters[name] >= floor {
		return nil
	}
	s.counters[name] = floor
	return s.persist(colCounters)
}
