package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/store"
	"gstpos/backend/internal/xid"
)

// CreateBill inserts the bill and then its payment. A failed payment insert
// removes the bill again so neither is visible on its own.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, payment domain.Payment) (*domain.Bill, error) {
	if bill.BillNo == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
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

	if _, err := s.bills.InsertOne(ctx, bill); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &store.ConflictError{Field: store.FieldBillNo, Value: bill.BillNo}
		}
		return nil, err
	}
	if _, err := s.payments.InsertOne(ctx, payment); err != nil {
		_, _ = s.bills.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": bill.ID})
		return nil, err
	}
	return &bill, nil
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	var bill domain.Bill
	if err := s.bills.FindOne(ctx, bson.M{"_id": id}).Decode(&bill); err != nil {
		return nil, notFound(err)
	}
	return &bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		query["billed_by.user_id"] = filter.EmployeeID
	}
	created := bson.M{}
	if filter.From != nil {
		created["$gte"] = *filter.From
	}
	if filter.To != nil {
		created["$lt"] = *filter.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "bill_no", Value: -1}})
	cur, err := s.bills.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Bill](ctx, cur)
}

func (s *Store) CountBills(ctx context.Context) (int, error) {
	n, err := s.bills.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *Store) ListPaymentsByBill(ctx context.Context, billID string) ([]domain.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.payments.Find(ctx, bson.M{"bill_id": billID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Payment](ctx, cur)
}
