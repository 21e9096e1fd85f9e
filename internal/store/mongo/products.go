package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

func (s *Store) ListProducts(ctx context.Context, includeDeleted bool) ([]domain.Product, error) {
	filter := bson.M{}
	if !includeDeleted {
		filter["deleted"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Product](ctx, cur)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	var p domain.Product
	err := s.products.FindOne(ctx, bson.M{"barcode": strings.TrimSpace(barcode), "deleted": false}).Decode(&p)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Deleted = false

	if _, err := s.products.InsertOne(ctx, product); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &store.ConflictError{Field: store.FieldBarcode, Value: product.Barcode}
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Name == "" || product.Barcode == "" || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	set := bson.M{
		"name":         product.Name,
		"barcode":      product.Barcode,
		"category":     product.Category,
		"sub_category": product.SubCategory,
		"price":        product.Price,
		"cost_price":   product.CostPrice,
		"gst":          product.GST,
		"stock":        product.Stock,
		"updated_at":   time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if product.MRP != nil {
		set["mrp"] = *product.MRP
	} else {
		update["$unset"] = bson.M{"mrp": ""}
	}

	var updated domain.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.products.FindOneAndUpdate(ctx, bson.M{"_id": product.ID}, update, opts).Decode(&updated)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &store.ConflictError{Field: store.FieldBarcode, Value: product.Barcode}
		}
		return nil, notFound(err)
	}
	return &updated, nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	res, err := s.products.UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AdjustStock applies delta only while the result stays non-negative.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	var updated domain.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": -delta}},
		bson.M{"$inc": bson.M{"stock": delta}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		opts,
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, getErr := s.GetProduct(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &store.InsufficientStockError{
		ProductID:   current.ID,
		ProductName: current.Name,
		Available:   current.Stock,
		Requested:   -delta,
	}
}

// DeductStock issues one conditional decrement per product. Without a
// replica-set transaction the already applied decrements are reverted when a
// later one fails.
func (s *Store) DeductStock(ctx context.Context, items []domain.StockAdjustment) error {
	order, totals, err := store.SumAdjustments(items)
	if err != nil {
		return err
	}

	applied := make([]string, 0, len(order))
	for _, id := range order {
		qty := totals[id]
		res, err := s.products.UpdateOne(ctx,
			bson.M{"_id": id, "deleted": false, "stock": bson.M{"$gte": qty}},
			bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		)
		if err == nil && res.MatchedCount == 1 {
			applied = append(applied, id)
			continue
		}

		s.revertDeductions(ctx, applied, totals)
		if err != nil {
			return err
		}
		current, getErr := s.GetProduct(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current.Deleted {
			return store.ErrNotFound
		}
		return &store.InsufficientStockError{ProductID: id, ProductName: current.Name, Available: current.Stock, Requested: qty}
	}
	return nil
}

func (s *Store) revertDeductions(ctx context.Context, applied []string, totals map[string]int) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range applied {
		_, _ = s.products.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$inc": bson.M{"stock": totals[id]}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		)
	}
}
