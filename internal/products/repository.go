// Package products stores products and their variants. Repository is the
// Postgres store, MongoRepository the document store alternative and
// MemoryStore an in-process store for development and tests.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, name, category, image, featured, rating, reviews, source_place, vendor, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Category, &p.Image, &p.Featured, &p.Rating, &p.Reviews,
		&p.SourcePlace, &p.Vendor, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isCode(err, pgInvalidText) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, category, image, featured, rating, reviews, source_place, vendor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Category, p.Image, p.Featured, p.Rating, p.Reviews, p.SourcePlace, p.Vendor,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return &domain.ProductWriteError{Op: "create", Err: err}
	}
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, image = $4, featured = $5, rating = $6, reviews = $7,
			source_place = $8, vendor = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Category, p.Image, p.Featured, p.Rating, p.Reviews, p.SourcePlace, p.Vendor,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isCode(err, pgInvalidText) {
			err = domain.ErrProductNotFound
		}
		return &domain.ProductWriteError{Op: "update", ProductID: p.ID.String(), Err: err}
	}
	return nil
}

// DeleteProduct removes the product; the schema cascades to its variants.
// The returned time is the database clock, like updated_at.
func (r *Repository) DeleteProduct(ctx context.Context, id string) (time.Time, error) {
	var deletedAt time.Time
	err := r.db.QueryRowContext(ctx, `DELETE FROM products WHERE id = $1 RETURNING NOW()`, id).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isCode(err, pgInvalidText) {
			return time.Time{}, domain.ErrProductNotFound
		}
		return time.Time{}, err
	}
	return deletedAt.UTC(), nil
}

const variantColumns = `id, product_id, size, color, stock, original_price, discount, price, sku, created_at`

func scanVariant(row interface{ Scan(...any) error }, v *domain.ProductVariant) error {
	return row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Stock, &v.OriginalPrice, &v.Discount,
		&v.Price, &v.SKU, &v.CreatedAt)
}

// ListVariants returns variants in insertion order, all of them when no
// product ids are given.
func (r *Repository) ListVariants(ctx context.Context, productIDs ...string) ([]domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants ORDER BY seq`
	var args []any
	if len(productIDs) > 0 {
		ids := uuidsOnly(productIDs)
		if len(ids) == 0 {
			return nil, nil
		}
		query = `SELECT ` + variantColumns + ` FROM product_variants WHERE product_id = ANY($1::uuid[]) ORDER BY seq`
		args = append(args, pq.Array(ids))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var variants []domain.ProductVariant
	for rows.Next() {
		var v domain.ProductVariant
		if err := scanVariant(rows, &v); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return variants, nil
}

// UpsertVariants writes all rows in one transaction keyed by
// (product_id, size, color). A row carrying an id that already belongs to a
// different combination violates the primary key and is reported as a
// DuplicateVariantError.
func (r *Repository) UpsertVariants(ctx context.Context, productID string, variants []domain.ProductVariant) ([]domain.ProductVariant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "upsert variants", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	saved := make([]domain.ProductVariant, 0, len(variants))
	for _, v := range variants {
		v.ProductID = productID
		v.Reprice()

		err := tx.QueryRowContext(ctx, `
			INSERT INTO product_variants (id, product_id, size, color, stock, original_price, discount, price, sku)
			VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (product_id, size, color) DO UPDATE
			SET stock = EXCLUDED.stock,
				original_price = EXCLUDED.original_price,
				discount = EXCLUDED.discount,
				price = EXCLUDED.price,
				sku = EXCLUDED.sku
			RETURNING id, created_at
		`, v.ID, v.ProductID, v.Size, v.Color, v.Stock, v.OriginalPrice, v.Discount, v.Price, v.SKU,
		).Scan(&v.ID, &v.CreatedAt)
		if err != nil {
			return nil, variantWriteError(productID, err)
		}
		saved = append(saved, v)
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.PersistenceError{Op: "upsert variants", Err: err}
	}
	return saved, nil
}

// DeleteVariants removes the listed combinations of one product. Keys of
// other products are ignored.
func (r *Repository) DeleteVariants(ctx context.Context, productID string, keys []domain.VariantKey) (int, error) {
	var sizes, colors []string
	for _, k := range keys {
		if k.ProductID != productID {
			continue
		}
		sizes = append(sizes, k.Size)
		colors = append(colors, k.Color)
	}
	if len(sizes) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM product_variants v
		USING unnest($2::text[], $3::text[]) AS k(size, color)
		WHERE v.product_id = $1::uuid AND v.size = k.size AND v.color = k.color
	`, productID, pq.Array(sizes), pq.Array(colors))
	if err != nil {
		if isCode(err, pgInvalidText) {
			return 0, nil
		}
		return 0, &domain.PersistenceError{Op: "delete variants", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// DecrementStock takes quantity units of a variant, failing with
// ErrInsufficientStock when fewer are available or the variant is gone.
func (r *Repository) DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock - $4
		WHERE product_id = $1::uuid AND size = $2 AND color = $3 AND stock >= $4
	`, key.ProductID, key.Size, key.Color, quantity)
	if err != nil {
		if isCode(err, pgInvalidText) {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, key)
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, key)
	}

	return nil
}

func (r *Repository) RestockVariant(ctx context.Context, key domain.VariantKey, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock + $4
		WHERE product_id = $1::uuid AND size = $2 AND color = $3
	`, key.ProductID, key.Size, key.Color, quantity)
	if err != nil {
		if isCode(err, pgInvalidText) {
			return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, key)
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, key)
	}

	return nil
}

func variantWriteError(productID string, err error) error {
	switch {
	case isCode(err, pgUniqueViolation):
		return &domain.DuplicateVariantError{ProductID: productID, Err: err}
	case isCode(err, pgForeignKeyViolation):
		return &domain.PersistenceError{Op: "upsert variants", Err: fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)}
	default:
		return &domain.PersistenceError{Op: "upsert variants", Err: err}
	}
}

// uuidsOnly drops ids that cannot name a product row, so a stray id does not
// fail the whole uuid[] bind.
func uuidsOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func isCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
