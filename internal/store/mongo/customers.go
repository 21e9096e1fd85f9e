package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.customers.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Customer](ctx, cur)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := s.customers.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	var c domain.Customer
	if err := s.customers.FindOne(ctx, bson.M{"phone": strings.TrimSpace(phone)}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Phone = strings.TrimSpace(customer.Phone)
	if customer.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	if customer.Orders == nil {
		customer.Orders = []string{}
	}

	if _, err := s.customers.InsertOne(ctx, customer); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &store.ConflictError{Field: store.FieldPhone, Value: customer.Phone}
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var updated domain.Customer
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.customers.FindOneAndUpdate(ctx,
		bson.M{"_id": customer.ID},
		bson.M{"$set": bson.M{
			"name":       customer.Name,
			"email":      customer.Email,
			"address":    customer.Address,
			"points":     customer.Points,
			"updated_at": time.Now().UTC(),
		}},
		opts,
	).Decode(&updated)
	if err != nil {
		return nil, notFound(err)
	}
	return &updated, nil
}

func (s *Store) AddCustomerOrder(ctx context.Context, customerID string, billID string) error {
	res, err := s.customers.UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{
			"$addToSet": bson.M{"orders": billID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
