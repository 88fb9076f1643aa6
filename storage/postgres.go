package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"catalog-ingest/models"
)

// PostgresStore persists vendors and catalog products to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ CatalogStore = (*PostgresStore)(nil)
	_ VendorAdmin  = (*PostgresStore)(nil)
)

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

// Migrate creates the schema if it does not exist.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vendors (
			id         UUID        PRIMARY KEY,
			name       TEXT        UNIQUE NOT NULL,
			logo       TEXT        NOT NULL DEFAULT '',
			website    TEXT        NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS products (
			id         UUID          PRIMARY KEY,
			vendor_id  UUID          NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
			title      TEXT          NOT NULL,
			price      NUMERIC(12,2) NOT NULL DEFAULT 0,
			link       TEXT          NOT NULL DEFAULT '',
			thumbnail  TEXT          NOT NULL DEFAULT '',
			category   TEXT,
			created_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_vendor_title ON products(vendor_id, title);
		CREATE INDEX IF NOT EXISTS idx_products_updated_at   ON products(updated_at);
		CREATE INDEX IF NOT EXISTS idx_products_category     ON products(category);
	`)
	return err
}

// FindVendor looks a vendor up by name, case-insensitively.
func (ps *PostgresStore) FindVendor(ctx context.Context, name string) (*models.Vendor, error) {
	v := &models.Vendor{}
	err := ps.db.QueryRowContext(ctx, `
		SELECT id, name, logo, website, created_at
		FROM vendors
		WHERE LOWER(name) = LOWER($1)
	`, strings.TrimSpace(name)).Scan(&v.ID, &v.Name, &v.Logo, &v.Website, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: %q: %w", name, ErrVendorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find vendor: %w", err)
	}
	return v, nil
}

// CreateVendor inserts a vendor.
func (ps *PostgresStore) CreateVendor(ctx context.Context, v models.Vendor) (*models.Vendor, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO vendors (id, name, logo, website)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, v.ID, strings.TrimSpace(v.Name), v.Logo, v.Website).Scan(&v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: create vendor: %w", err)
	}
	return &v, nil
}

// ListVendors returns every vendor ordered by name.
func (ps *PostgresStore) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, name, logo, website, created_at
		FROM vendors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var v models.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Logo, &v.Website, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

const productColumns = `id, vendor_id, title, price, link, thumbnail, category, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.CatalogProduct, error) {
	p := &models.CatalogProduct{}
	var category sql.NullString
	if err := row.Scan(
		&p.ID, &p.VendorID, &p.Title, &p.Price, &p.Link,
		&p.Thumbnail, &category, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Category = category.String
	return p, nil
}

// FindProducts returns every row for (title, vendorID), newest first.
func (ps *PostgresStore) FindProducts(ctx context.Context, title, vendorID string) ([]models.CatalogProduct, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE vendor_id = $1 AND title = $2
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`, vendorID, title)
	if err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	defer rows.Close()

	var products []models.CatalogProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DeleteProducts removes the given rows.
func (ps *PostgresStore) DeleteProducts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM products WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("postgres: delete products: %w", err)
	}
	return nil
}

// CreateProduct inserts a new row for vendorID.
func (ps *PostgresStore) CreateProduct(ctx context.Context, vendorID string, f models.ProductFields) (*models.CatalogProduct, error) {
	row := ps.db.QueryRowContext(ctx, `
		INSERT INTO products (id, vendor_id, title, price, link, thumbnail, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		uuid.NewString(), vendorID, f.Title, f.Price, f.Link, f.Thumbnail, nullable(f.Category))
	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: create product: %w", err)
	}
	return p, nil
}

// UpdateProduct rewrites the mutable columns of row id.
func (ps *PostgresStore) UpdateProduct(ctx context.Context, id string, f models.ProductFields) (*models.CatalogProduct, error) {
	row := ps.db.QueryRowContext(ctx, `
		UPDATE products
		SET price = $2, link = $3, thumbnail = $4, category = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, f.Price, f.Link, f.Thumbnail, nullable(f.Category))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: %s: %w", id, ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update product: %w", err)
	}
	return p, nil
}

// CountProducts returns the number of rows stored for a vendor.
func (ps *PostgresStore) CountProducts(ctx context.Context, vendorID string) (int, error) {
	var n int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE vendor_id = $1`, vendorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count products: %w", err)
	}
	return n, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
