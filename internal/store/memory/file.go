package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/domain"
)

type collection string

const (
	colProducts  collection = "products"
	colBills     collection = "bills"
	colPayments  collection = "payments"
	colCustomers collection = "customers"
	colPurchases collection = "purchases"
	colCounters  collection = "counters"
	colUsers     collection = "users"
)

var allCollections = []collection{colProducts, colBills, colPayments, colCustomers, colPurchases, colCounters, colUsers}

type counterRecord struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Open returns a store backed by JSON files in dir. Missing files start empty;
// seed accounts are written on first start.
func Open(dir string, logger logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := newEmpty(logger)
	s.dir = dir

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(allCollections...); err != nil {
		return nil, err
	}
	if len(s.users) == 0 {
		s.users = seedUsers(s.logger)
		if err := s.persist(colUsers); err != nil {
			return nil, err
		}
	}
	s.logger.WithFields(logrus.Fields{"dir": dir, "products": len(s.products), "bills": len(s.bills)}).Info("file store opened")
	return s, nil
}

// persist flushes the named collections. Callers hold the write lock. On
// failure the collections are reloaded from disk so memory matches the last
// durable state.
func (s *Store) persist(cols ...collection) error {
	if s.dir == "" {
		return nil
	}
	for _, col := range cols {
		payload, err := s.encode(col)
		if err != nil {
			return fmt.Errorf("encode %s: %w", col, err)
		}
		if err := writeFileAtomic(s.path(col), payload); err != nil {
			if reloadErr := s.load(cols...); reloadErr != nil {
				s.logger.WithError(reloadErr).Error("reload after failed write")
			}
			return fmt.Errorf("write %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) path(col collection) string {
	return filepath.Join(s.dir, string(col)+".json")
}

func (s *Store) encode(col collection) ([]byte, error) {
	switch col {
	case colProducts:
		return marshalSorted(s.products, func(p domain.Product) string { return p.ID })
	case colBills:
		return marshalSorted(s.bills, func(b domain.Bill) string { return b.ID })
	case colPayments:
		return marshalSorted(s.payments, func(p domain.Payment) string { return p.ID })
	case colCustomers:
		return marshalSorted(s.customers, func(c domain.Customer) string { return c.ID })
	case colPurchases:
		return marshalSorted(s.purchases, func(p domain.Purchase) string { return p.ID })
	case colCounters:
		records := make([]counterRecord, 0, len(s.counters))
		for name, value := range s.counters {
			records = append(records, counterRecord{Name: name, Value: value})
		}
		slices.SortFunc(records, func(a, b counterRecord) int { return cmpString(a.Name, b.Name) })
		return json.MarshalIndent(records, "", "  ")
	case colUsers:
		records := make([]domain.UserAccount, 0, len(s.users))
		for _, u := range s.users {
			records = append(records, u)
		}
		slices.SortFunc(records, func(a, b domain.UserAccount) int { return cmpString(a.Username, b.Username) })
		return json.MarshalIndent(records, "", "  ")
	}
	return nil, fmt.Errorf("unknown collection %s", col)
}

func (s *Store) load(cols ...collection) error {
	for _, col := range cols {
		raw, err := os.ReadFile(s.path(col))
		if errors.Is(err, os.ErrNotExist) {
			raw, err = []byte("[]"), nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", col, err)
		}
		if err := s.decode(col, raw); err != nil {
			return fmt.Errorf("decode %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) decode(col collection, raw []byte) error {
	switch col {
	case colProducts:
		return unmarshalInto(raw, s.products, func(p domain.Product) string { return p.ID })
	case colBills:
		return unmarshalInto(raw, s.bills, func(b domain.Bill) string { return b.ID })
	case colPayments:
		return unmarshalInto(raw, s.payments, func(p domain.Payment) string { return p.ID })
	case colCustomers:
		return unmarshalInto(raw, s.customers, func(c domain.Customer) string { return c.ID })
	case colPurchases:
		return unmarshalInto(raw, s.purchases, func(p domain.Purchase) string { return p.ID })
	case colCounters:
		var records []counterRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return err
		}
		clear(s.counters)
		for _, r := range records {
			s.counters[r.Name] = r.Value
		}
		return nil
	case colUsers:
		return unmarshalInto(raw, s.users, func(u domain.UserAccount) string { return u.Username })
	}
	return fmt.Errorf("unknown collection %s", col)
}

func marshalSorted[T any](items map[string]T, key func(T) string) ([]byte, error) {
	records := make([]T, 0, len(items))
	for _, item := range items {
		records = append(records, item)
	}
	slices.SortFunc(records, func(a, b T) int { return cmpString(key(a), key(b)) })
	return json.MarshalIndent(records, "", "  ")
}

func unmarshalInto[T any](raw []byte, dst map[string]T, key func(T) string) error {
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return err
	}
	clear(dst)
	for _, r := range records {
		dst[key(r)] = r
	}
	return nil
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
