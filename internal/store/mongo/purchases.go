package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ProductID == "" || purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if _, err := s.purchases.InsertOne(ctx, purchase); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := s.purchases.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.purchases.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Purchase](ctx, cur)
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.Quantity < 1 || purchase.UnitCost < 0 {
		return nil, store.ErrInvalidInput
	}
	var updated domain.Purchase
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.purchases.FindOneAndUpdate(ctx,
		bson.M{"_id": purchase.ID},
		bson.M{"$set": bson.M{
			"quantity":     purchase.Quantity,
			"unit_cost":    purchase.UnitCost,
			"total_amount": purchase.TotalAmount,
			"supplier":     purchase.Supplier,
			"product_name": purchase.ProductName,
		}},
		opts,
	).Decode(&updated)
	if err != nil {
		return nil, notFound(err)
	}
	return &updated, nil
}

func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	res, err := s.purchases.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
