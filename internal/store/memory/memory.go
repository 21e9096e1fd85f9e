package memory

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/logging"
	"gstpos/backend/internal/xid"
)

// Store keeps every collection in maps guarded by one lock. When dir is set
// each mutation is flushed to one JSON file per collection before returning.
type Store struct {
	mu        sync.RWMutex
	dir       string
	logger    logrus.FieldLogger
	products  map[string]domain.Product
	bills     map[string]domain.Bill
	payments  map[string]domain.Payment
	customers map[string]domain.Customer
	purchases map[string]domain.Purchase
	counters  map[string]int64
	users     map[string]domain.UserAccount
}

func newEmpty(logger logrus.FieldLogger) *Store {
	return &Store{
		logger:    logging.Component(logger, "memory-store"),
		products:  make(map[string]domain.Product),
		bills:     make(map[string]domain.Bill),
		payments:  make(map[string]domain.Payment),
		customers: make(map[string]domain.Customer),
		purchases: make(map[string]domain.Purchase),
		counters:  make(map[string]int64),
		users:     make(map[string]domain.UserAccount),
	}
}

// New returns an empty store with the seed user accounts.
func New(logger logrus.FieldLogger) *Store {
	s := newEmpty(logger)
	s.users = seedUsers(s.logger)
	return s
}

// NewSeeded returns a store with seed users and a small demo catalog.
func NewSeeded() *Store {
	s := New(nil)
	now := time.Now().UTC()
	for i, p := range seedProducts() {
		p.ID = xid.New("prd")
		p.Barcode = fmt.Sprintf("%06d", 100001+i)
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func seedProducts() []domain.Product {
	mrp := func(v float64) *float64 { return &v }
	return []domain.Product{
		{Name: "Basmati Rice 1kg", Category: "grocery", SubCategory: "rice", MRP: mrp(140), Price: 120, CostPrice: 95, GST: 5, Stock: 50},
		{Name: "Toor Dal 1kg", Category: "grocery", SubCategory: "pulses", MRP: mrp(180), Price: 165, CostPrice: 140, GST: 0, Stock: 40},
		{Name: "Amul Butter 100g", Category: "dairy", MRP: mrp(60), Price: 56, CostPrice: 48, GST: 12, Stock: 30},
		{Name: "Masala Chai 250g", Category: "beverage", MRP: mrp(150), Price: 135, CostPrice: 100, GST: 18, Stock: 25},
		{Name: "Cola 750ml", Category: "beverage", MRP: mrp(45), Price: 40, CostPrice: 30, GST: 28, Stock: 60},
		{Name: "Bath Soap 125g", Category: "household", MRP: mrp(55), Price: 50, CostPrice: 36, GST: 18, Stock: 8},
	}
}

// seedUsers builds the initial accounts for dev/demo mode. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD; unset values fall back to
// dev defaults with a warning.
func seedUsers(logger logrus.FieldLogger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "employee123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Store Owner", adminPwd, domain.RoleAdmin},
		{"employee", "Counter Staff", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Fatalf("failed to hash seed password for %s", u.username)
		}
		users[u.username] = domain.UserAccount{
			ID:        xid.New("usr"),
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

// DefaultAccounts returns the seed accounts for a backend that starts with no
// users.
func DefaultAccounts(logger logrus.FieldLogger) []domain.UserAccount {
	users := seedUsers(logging.Component(logger, "seed"))
	out := make([]domain.UserAccount, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cmpNewest(a time.Time, b time.Time) int {
	switch {
	case a.After(b):
		return -1
	case a.Before(b):
		return 1
	default:
		return 0
	}
}

func normalizeKey(v string) string {
	return strings.TrimSpace(v)
}

func cloneBill(src domain.Bill) domain.Bill {
	dup := src
	dup.Items = make([]domain.BillItem, len(src.Items))
	copy(dup.Items, src.Items)
	if src.Customer != nil {
		c := *src.Customer
		dup.Customer = &c
	}
	return dup
}

func cloneCustomer(src domain.Customer) domain.Customer {
	dup := src
	dup.Orders = make([]string, len(src.Orders))
	copy(dup.Orders, src.Orders)
	return dup
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.MRP != nil {
		v := *src.MRP
		dup.MRP = &v
	}
	return dup
}
