package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
)

const unknownCustomerName = "Unknown"

// ResolveCustomer returns the customer registered under phone, creating one
// if none exists. Concurrent callers with the same phone are serialized on a
// lock and a lost creation race falls back to the winner's record.
func (s *Service) ResolveCustomer(ctx context.Context, phone string, name string) (*domain.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalid("customer.phone", "phone is required")
	}

	release, err := s.locker.Acquire(ctx, "customer:"+phone)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.log.WithError(err).WithField("phone", phone).Warn("customer lock unavailable, relying on unique phone")
	} else {
		defer release()
	}

	existing, err := s.repo.FindCustomerByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  defaultString(name, unknownCustomerName),
		Phone: phone,
	})
	if err == nil {
		s.log.WithFields(logrus.Fields{"customer_id": created.ID, "phone": phone}).Info("customer created at checkout")
		return created, nil
	}
	if !store.IsConflictOn(err, store.FieldPhone) {
		return nil, err
	}

	s.log.WithField("phone", phone).Info("customer creation collided, using existing record")
	return s.repo.FindCustomerByPhone(ctx, phone)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.CustomerSummary, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CustomerSummary, 0, len(customers))
	for _, c := range customers {
		out = append(out, domain.CustomerSummary{Customer: c, TotalOrders: len(c.Orders)})
	}
	return out, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalid("phone", "phone is required")
	}
	return s.repo.FindCustomerByPhone(ctx, phone)
}

// RegisterCustomer creates a customer outright. Unlike ResolveCustomer a taken
// phone is reported to the caller.
func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	return s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	current, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, invalid("name", "name cannot be empty")
		}
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		current.Email = strings.TrimSpace(*req.Email)
		if current.Email != "" {
			if err := s.validate.Var(current.Email, "email"); err != nil {
				return nil, invalid("email", "failed email")
			}
		}
	}
	if req.Address != nil {
		current.Address = strings.TrimSpace(*req.Address)
	}
	if req.Points != nil {
		if *req.Points < 0 {
			return nil, invalid("points", "points cannot be negative")
		}
		current.Points = *req.Points
	}
	return s.repo.UpdateCustomer(ctx, *current)
}

// CustomerOrders returns the bills referenced by a customer's order list,
// newest first. References to bills that no longer resolve are skipped.
func (s *Service) CustomerOrders(ctx context.Context, phone string) ([]domain.Bill, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	customer, err := s.repo.FindCustomerByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return nil, err
	}
	bills := make([]domain.Bill, 0, len(customer.Orders))
	for _, billID := range customer.Orders {
		bill, err := s.repo.GetBill(ctx, billID)
		if errors.Is(err, store.ErrNotFound) {
			s.log.WithFields(logrus.Fields{"customer_id": customer.ID, "bill_id": billID}).Warn("customer references missing bill")
			continue
		}
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	return bills, nil
}
