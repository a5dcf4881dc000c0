package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	productsCollection = "products"
	variantsCollection = "product_variants"
)

type productDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Category    string    `bson:"category"`
	Image       string    `bson:"image"`
	Featured    bool      `bson:"featured"`
	Rating      float64   `bson:"rating"`
	Reviews     int       `bson:"reviews"`
	SourcePlace string    `bson:"source_place"`
	Vendor      string    `bson:"vendor"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:          domain.NewID(d.ID),
		Name:        d.Name,
		Category:    d.Category,
		Image:       d.Image,
		Featured:    d.Featured,
		Rating:      d.Rating,
		Reviews:     d.Reviews,
		SourcePlace: d.SourcePlace,
		Vendor:      d.Vendor,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type variantDoc struct {
	ID            string               `bson:"_id"`
	ProductID     string               `bson:"product_id"`
	Size          string               `bson:"size"`
	Color         string               `bson:"color"`
	Stock         int                  `bson:"stock"`
	OriginalPrice primitive.Decimal128 `bson:"original_price"`
	Discount      primitive.Decimal128 `bson:"discount"`
	Price         primitive.Decimal128 `bson:"price"`
	SKU           string               `bson:"sku"`
	CreatedAt     time.Time            `bson:"created_at"`
}

func (d variantDoc) toDomain() (domain.ProductVariant, error) {
	original, err := fromDecimal128(d.OriginalPrice)
	if err != nil {
		return domain.ProductVariant{}, fmt.Errorf("original_price: %w", err)
	}
	discount, err := fromDecimal128(d.Discount)
	if err != nil {
		return domain.ProductVariant{}, fmt.Errorf("discount: %w", err)
	}
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.ProductVariant{}, fmt.Errorf("price: %w", err)
	}
	return domain.ProductVariant{
		ID:            domain.NewID(d.ID),
		ProductID:     d.ProductID,
		Size:          d.Size,
		Color:         d.Color,
		Stock:         d.Stock,
		OriginalPrice: original,
		Discount:      discount,
		Price:         price,
		SKU:           d.SKU,
		CreatedAt:     d.CreatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

// MongoRepository keeps products and variants in two collections. Ids are
// uuid strings so they look the same as in the Postgres store.
type MongoRepository struct {
	products *mongo.Collection
	variants *mongo.Collection
	now      func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		products: db.Collection(productsCollection),
		variants: db.Collection(variantsCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique (product_id, size, color) index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.variants.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "size", Value: 1}, {Key: "color", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("variant_natural_key"),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	})
	return err
}

func (r *MongoRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.products.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toDomain())
	}
	return products, nil
}

func (r *MongoRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var doc productDoc
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	p := doc.toDomain()
	return &p, nil
}

func (r *MongoRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := r.now()
	doc := productDoc{
		ID:          uuid.New().String(),
		Name:        p.Name,
		Category:    p.Category,
		Image:       p.Image,
		Featured:    p.Featured,
		Rating:      p.Rating,
		Reviews:     p.Reviews,
		SourcePlace: p.SourcePlace,
		Vendor:      p.Vendor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.products.InsertOne(ctx, doc); err != nil {
		return &domain.ProductWriteError{Op: "create", Err: err}
	}

	p.ID = domain.NewID(doc.ID)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *MongoRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := r.now()
	var doc productDoc
	err := r.products.FindOneAndUpdate(ctx,
		bson.M{"_id": p.ID.String()},
		bson.M{"$set": bson.M{
			"name":         p.Name,
			"category":     p.Category,
			"image":        p.Image,
			"featured":     p.Featured,
			"rating":       p.Rating,
			"reviews":      p.Reviews,
			"source_place": p.SourcePlace,
			"vendor":       p.Vendor,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = domain.ErrProductNotFound
		}
		return &domain.ProductWriteError{Op: "update", ProductID: p.ID.String(), Err: err}
	}

	p.CreatedAt = doc.CreatedAt
	p.UpdatedAt = doc.UpdatedAt
	return nil
}

// DeleteProduct removes the product document and its variants.
func (r *MongoRepository) DeleteProduct(ctx context.Context, id string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	deletedAt := r.now()
	result, err := r.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return time.Time{}, err
	}
	if result.DeletedCount == 0 {
		return time.Time{}, domain.ErrProductNotFound
	}

	if _, err := r.variants.DeleteMany(ctx, bson.M{"product_id": id}); err != nil {
		return time.Time{}, fmt.Errorf("delete variants of %s: %w", id, err)
	}
	return deletedAt, nil
}

func (r *MongoRepository) ListVariants(ctx context.Context, productIDs ...string) ([]domain.ProductVariant, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if len(productIDs) > 0 {
		filter["product_id"] = bson.M{"$in": productIDs}
	}

	cursor, err := r.variants.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []variantDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	variants := make([]domain.ProductVariant, 0, len(docs))
	for _, d := range docs {
		v, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", d.ID, err)
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// UpsertVariants writes each row keyed by (product_id, size, color). Rows
// are written one by one; an earlier row stays written when a later one
// fails, and re-running the save converges.
func (r *MongoRepository) UpsertVariants(ctx context.Context, productID string, variants []domain.ProductVariant) ([]domain.ProductVariant, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := r.products.FindOne(ctx, bson.M{"_id": productID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		return nil, &domain.PersistenceError{Op: "upsert variants", Err: err}
	}

	saved := make([]domain.ProductVariant, 0, len(variants))
	for i, v := range variants {
		v.ProductID = productID
		v.Reprice()

		id := v.ID.String()
		if !v.ID.IsAssigned() {
			id = uuid.New().String()
		}

		var doc variantDoc
		err := r.variants.FindOneAndUpdate(ctx,
			bson.M{"product_id": productID, "size": v.Size, "color": v.Color},
			bson.M{
				"$set": bson.M{
					"stock":          v.Stock,
					"original_price": toDecimal128(v.OriginalPrice),
					"discount":       toDecimal128(v.Discount),
					"price":          toDecimal128(v.Price),
					"sku":            v.SKU,
				},
				// Keeps first-seen order stable for rows written in the same batch.
				"$setOnInsert": bson.M{
					"_id":        id,
					"created_at": r.now().Add(time.Duration(i) * time.Microsecond),
				},
			},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, &domain.DuplicateVariantError{ProductID: productID, Err: err}
			}
			return nil, &domain.PersistenceError{Op: "upsert variants", Err: err}
		}

		v.ID = domain.NewID(doc.ID)
		v.CreatedAt = doc.CreatedAt
		saved = append(saved, v)
	}
	return saved, nil
}

func (r *MongoRepository) DeleteVariants(ctx context.Context, productID string, keys []domain.VariantKey) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var or bson.A
	for _, k := range keys {
		if k.ProductID != productID {
			continue
		}
		or = append(or, bson.M{"size": k.Size, "color": k.Color})
	}
	if len(or) == 0 {
		return 0, nil
	}

	result, err := r.variants.DeleteMany(ctx, bson.M{"product_id": productID, "$or": or})
	if err != nil {
		return 0, &domain.PersistenceError{Op: "delete variants", Err: err}
	}
	return int(result.DeletedCount), nil
}

func (r *MongoRepository) DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error {
	result, err := r.variants.UpdateOne(ctx,
		bson.M{"product_id": key.ProductID, "size": key.Size, "color": key.Color, "stock": bson.M{"$gte": quantity}},
		bson.M{"$inc": bson.M{"stock": -quantity}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, key)
	}
	return nil
}

func (r *MongoRepository) RestockVariant(ctx context.Context, key domain.VariantKey, quantity int) error {
	result, err := r.variants.UpdateOne(ctx,
		bson.M{"product_id": key.ProductID, "size": key.Size, "color": key.Color},
		bson.M{"$inc": bson.M{"stock": quantity}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, key)
	}
	return nil
}
