package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"gstpos/backend/internal/cache"
	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/lock"
	"gstpos/backend/internal/logging"
	"gstpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var ErrForbidden = errors.New("forbidden")

// ValidationError is a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type Options struct {
	Logger         logrus.FieldLogger
	Locker         lock.Locker
	ProductCache   cache.ProductCache
	CacheTTL       time.Duration
	BillPrefix     string
	TotalTolerance float64
	Location       *time.Location
	Now            func() time.Time
}

type Service struct {
	repo      store.Repository
	log       logrus.FieldLogger
	locker    lock.Locker
	cache     cache.ProductCache
	cacheTTL  time.Duration
	prefix    string
	tolerance float64
	location  *time.Location
	now       func() time.Time
	validate  *validator.Validate
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.ProductCache == nil {
		opts.ProductCache = cache.NoopProductCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.BillPrefix == "" {
		opts.BillPrefix = "INV"
	}
	if opts.TotalTolerance <= 0 {
		opts.TotalTolerance = 0.01
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:      repo,
		log:       logging.Component(opts.Logger, "service"),
		locker:    opts.Locker,
		cache:     opts.ProductCache,
		cacheTTL:  opts.CacheTTL,
		prefix:    opts.BillPrefix,
		tolerance: opts.TotalTolerance,
		location:  opts.Location,
		now:       opts.Now,
		validate:  validate,
	}
}

func (s *Service) validateStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	if fe.Param() != "" {
		return invalid(field, "failed %s=%s", fe.Tag(), fe.Param())
	}
	return invalid(field, "failed %s", fe.Tag())
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return domain.Actor{}, fmt.Errorf("%w: authenticated session required", ErrForbidden)
	}
	return actor, nil
}

// scopeFor limits non-admin reads to their own bills.
func scopeFor(actor domain.Actor) string {
	if actor.Role == domain.RoleAdmin {
		return ""
	}
	return actor.ID
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
