package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog-ingest/models"
)

// MemoryStore is an in-process CatalogStore used for dry runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	vendors  map[string]models.Vendor
	products map[string]models.CatalogProduct
	now      func() time.Time
}

var (
	_ CatalogStore = (*MemoryStore)(nil)
	_ VendorAdmin  = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vendors:  make(map[string]models.Vendor),
		products: make(map[string]models.CatalogProduct),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for created/updated stamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) FindVendor(ctx context.Context, name string) (*models.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.vendors {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			v := v
			return &v, nil
		}
	}
	return nil, fmt.Errorf("memory: %q: %w", name, ErrVendorNotFound)
}

func (m *MemoryStore) CreateVendor(ctx context.Context, v models.Vendor) (*models.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v.Name = strings.TrimSpace(v.Name)
	for _, existing := range m.vendors {
		if strings.EqualFold(existing.Name, v.Name) {
			return nil, fmt.Errorf("memory: vendor %q already exists", v.Name)
		}
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = m.now()
	m.vendors[v.ID] = v
	return &v, nil
}

func (m *MemoryStore) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Vendor, 0, len(m.vendors))
	for _, v := range m.vendors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) FindProducts(ctx context.Context, title, vendorID string) ([]models.CatalogProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CatalogProduct
	for _, p := range m.products {
		if p.VendorID == vendorID && p.Title == title {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) DeleteProducts(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.products, id)
	}
	return nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, vendorID string, f models.ProductFields) (*models.CatalogProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vendors[vendorID]; !ok {
		return nil, fmt.Errorf("memory: create product: %w", ErrVendorNotFound)
	}
	now := m.now()
	p := models.CatalogProduct{
		ID:        uuid.NewString(),
		VendorID:  vendorID,
		Title:     f.Title,
		Price:     f.Price,
		Link:      f.Link,
		Thumbnail: f.Thumbnail,
		Category:  f.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.products[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, id string, f models.ProductFields) (*models.CatalogProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", id, ErrProductNotFound)
	}
	p.Price = f.Price
	p.Link = f.Link
	p.Thumbnail = f.Thumbnail
	p.Category = f.Category
	p.UpdatedAt = m.now()
	m.products[id] = p
	return &p, nil
}

// Insert stores p as-is. It lets tests seed rows, duplicates included.
func (m *MemoryStore) Insert(p models.CatalogProduct) models.CatalogProduct {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products[p.ID] = p
	return p
}

// Products returns every stored row for vendorID, newest first.
func (m *MemoryStore) Products(vendorID string) []models.CatalogProduct {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CatalogProduct
	for _, p := range m.products {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(ps []models.CatalogProduct) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
			return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
		}
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID > ps[j].ID
	})
}
