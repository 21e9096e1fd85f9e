package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
)

const billNoAttempts = 5

// FormatBillNo renders PREFIX-YYYYNNNN. The sequence widens past four digits
// instead of wrapping.
func FormatBillNo(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d%04d", prefix, year, seq)
}

func billSequence(year int) string {
	return fmt.Sprintf("bill-%d", year)
}

func (s *Service) nextBillNo(ctx context.Context, year int) (string, error) {
	seq, err := s.repo.NextSequence(ctx, billSequence(year))
	if err != nil {
		return "", err
	}
	return FormatBillNo(s.prefix, year, seq), nil
}

// commitBill numbers the bill and persists it together with its payment,
// drawing a fresh number when the store reports a collision. The first
// collision lifts the counter past the stored bill count, which is where
// count-numbered history ends.
func (s *Service) commitBill(ctx context.Context, bill domain.Bill, payment domain.Payment) (*domain.Bill, error) {
	year := bill.CreatedAt.In(s.location).Year()
	var lastErr error
	for attempt := 1; attempt <= billNoAttempts; attempt++ {
		billNo, err := s.nextBillNo(ctx, year)
		if err != nil {
			return nil, err
		}
		bill.BillNo = billNo
		created, err := s.repo.CreateBill(ctx, bill, payment)
		if err == nil {
			return created, nil
		}
		if !store.IsConflictOn(err, store.FieldBillNo) {
			return nil, err
		}
		lastErr = err
		s.log.WithFields(logrus.Fields{"bill_no": billNo, "attempt": attempt}).Warn("bill number collision, retrying")
		if attempt == 1 {
			if err := s.skipPastExistingBills(ctx, year); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("allocate bill number: %w", lastErr)
}

func (s *Service) skipPastExistingBills(ctx context.Context, year int) error {
	count, err := s.repo.CountBills(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.RaiseSequence(ctx, billSequence(year), int64(count)); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"year": year, "bills": count}).Info("bill counter raised past existing bills")
	return nil
}

// ListBills returns bills newest first. Employees only see their own.
func (s *Service) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if scope := scopeFor(actor); scope != "" {
		filter.EmployeeID = scope
	}
	return s.repo.ListBills(ctx, filter)
}

func (s *Service) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := scopeFor(actor); scope != "" && bill.BilledBy.UserID != scope {
		return nil, fmt.Errorf("%w: bill belongs to another user", ErrForbidden)
	}
	return bill, nil
}

func (s *Service) ListBillPayments(ctx context.Context, billID string) ([]domain.Payment, error) {
	if _, err := s.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByBill(ctx, billID)
}
