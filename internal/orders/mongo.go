package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	ordersCollection   = "orders"
	countersCollection = "counters"
	orderCounterID     = "order_number"
)

type orderItemDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Size      string               `bson:"size"`
	Color     string               `bson:"color"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type orderDoc struct {
	ID           string               `bson:"_id"`
	CustomerID   string               `bson:"customer_id"`
	CustomerName string               `bson:"customer_name"`
	Email        string               `bson:"email"`
	Phone        string               `bson:"phone"`
	Address      string               `bson:"address"`
	City         string               `bson:"city"`
	Pincode      string               `bson:"pincode"`
	Notes        string               `bson:"notes"`
	Items        []orderItemDoc       `bson:"items"`
	Total        primitive.Decimal128 `bson:"total"`
	Status       string               `bson:"status"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func newOrderDoc(o *domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, fmt.Errorf("total: %w", err)
	}
	doc := orderDoc{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Phone:        o.Phone,
		Address:      o.Address,
		City:         o.City,
		Pincode:      o.Pincode,
		Notes:        o.Notes,
		Items:        make([]orderItemDoc, 0, len(o.Items)),
		Total:        total,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.CreatedAt,
	}
	for _, item := range o.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return orderDoc{}, fmt.Errorf("item %s price: %w", item.Key(), err)
		}
		doc.Items = append(doc.Items, orderItemDoc{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}
	return doc, nil
}

func (d orderDoc) toDomain() (*domain.Order, error) {
	total, err := decimal.NewFromString(d.Total.String())
	if err != nil {
		return nil, fmt.Errorf("order %s total: %w", d.ID, err)
	}
	o := &domain.Order{
		ID:           d.ID,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		Email:        d.Email,
		Phone:        d.Phone,
		Address:      d.Address,
		City:         d.City,
		Pincode:      d.Pincode,
		Notes:        d.Notes,
		Items:        make([]domain.OrderItem, 0, len(d.Items)),
		Total:        total,
		Status:       domain.OrderStatus(d.Status),
		CreatedAt:    d.CreatedAt,
	}
	for _, item := range d.Items {
		price, err := decimal.NewFromString(item.Price.String())
		if err != nil {
			return nil, fmt.Errorf("order %s item price: %w", d.ID, err)
		}
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}
	return o, nil
}

// MongoStore embeds items in the order document. Order numbers come from a
// counter document shared by every replica.
type MongoStore struct {
	orders   *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		orders:   db.Collection(ordersCollection),
		counters: db.Collection(countersCollection),
	}
}

func (s *MongoStore) NextOrderNumber(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": orderCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *MongoStore) Create(ctx context.Context, order *domain.Order) error {
	doc, err := newOrderDoc(order)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("order %s already exists", order.ID)
		}
		return err
	}
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc orderDoc
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (s *MongoStore) List(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.orders.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

// UpdateStatus only writes when the stored status is still the one the
// transition was checked against.
func (s *MongoStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc orderDoc
	err = s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(current.Status)},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s changed concurrently", domain.ErrInvalidTransition, id)
		}
		return nil, err
	}
	return doc.toDomain()
}
