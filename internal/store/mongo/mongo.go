package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gstpos/backend/internal/store"
)

type Store struct {
	client    *mongo.Client
	products  *mongo.Collection
	bills     *mongo.Collection
	payments  *mongo.Collection
	customers *mongo.Collection
	purchases *mongo.Collection
	counters  *mongo.Collection
	users     *mongo.Collection
}

func New(ctx context.Context, uri string, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	s := &Store{
		client:    client,
		products:  db.Collection("products"),
		bills:     db.Collection("bills"),
		payments:  db.Collection("payments"),
		customers: db.Collection("customers"),
		purchases: db.Collection("purchases"),
		counters:  db.Collection("counters"),
		users:     db.Collection("users"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.products, []mongo.IndexModel{
			{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}},
		}},
		{s.bills, []mongo.IndexModel{
			{Keys: bson.D{{Key: "bill_no", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "billed_by.user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{s.payments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "bill_id", Value: 1}}},
		}},
		{s.customers, []mongo.IndexModel{
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique},
		}},
		{s.purchases, []mongo.IndexModel{
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		}},
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.col.Indexes().CreateMany(ctx, idx.models); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, store.ErrInvalidInput
	}
	var counter struct {
		Value int64 `bson:"value"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (s *Store) RaiseSequence(ctx context.Context, name string, floor int64) error {
	if name == "" {
		return store.ErrInvalidInput
	}
	_, err := s.counters.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$max": bson.M{"value": floor}},
		options.Update().SetUpsert(true),
	)
	return err
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	list := make([]T, 0, 32)
	for cur.Next(ctx) {
		var item T
		if err := cur.Decode(&item); err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, cur.Err()
}
