package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-ingest/models"
	"catalog-ingest/storage"
	"catalog-ingest/utils"
)

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
)

// CatalogWriter upserts raw items into the product catalog, keyed by
// (title, vendorId), repairing duplicate rows as it goes.
type CatalogWriter struct {
	store  storage.CatalogStore
	locker storage.KeyLocker
	logger *utils.Logger
}

// NewCatalogWriter creates a writer. A nil locker serialises keys in-process.
func NewCatalogWriter(store storage.CatalogStore, locker storage.KeyLocker, logger *utils.Logger) *CatalogWriter {
	if locker == nil {
		locker = storage.NewLocalLocker()
	}
	return &CatalogWriter{
		store:  store,
		locker: locker,
		logger: logger.ForComponent("catalog"),
	}
}

// ResolveVendor looks up a provisioned vendor by name.
func (w *CatalogWriter) ResolveVendor(ctx context.Context, name string) (*models.Vendor, error) {
	v, err := w.store.FindVendor(ctx, name)
	if errors.Is(err, storage.ErrVendorNotFound) {
		return nil, utils.NewVendorNotFound(name, err)
	}
	if err != nil {
		return nil, utils.NewError(utils.ErrorTypeStorage, name, "vendor lookup failed", err)
	}
	return v, nil
}

// Ingest writes each item independently. A failing item is counted and
// logged; the rest of the batch carries on.
func (w *CatalogWriter) Ingest(ctx context.Context, vendorID string, items []models.RawItem) models.IngestResult {
	var result models.IngestResult

	for _, item := range items {
		fields := models.ProductFields{
			Title:     strings.TrimSpace(item.Title),
			Price:     NormalizePrice(item.PriceText),
			Link:      item.Link,
			Thumbnail: item.ThumbnailURL,
			Category:  item.Category,
		}

		oc, repaired, err := w.upsert(ctx, vendorID, fields)
		result.Repaired += repaired
		if err != nil {
			result.Failed++
			w.logger.Err(err, "Failed to write %q", fields.Title)
			continue
		}

		result.Succeeded++
		result.Prices = append(result.Prices, fields.Price)
		switch oc {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		}
	}

	w.logger.Info("Wrote %d/%d items (created %d, updated %d, repaired %d, failed %d)",
		result.Succeeded, len(items), result.Created, result.Updated, result.Repaired, result.Failed)
	return result
}

func (w *CatalogWriter) upsert(ctx context.Context, vendorID string, fields models.ProductFields) (outcome, int, error) {
	if fields.Title == "" {
		return 0, 0, fmt.Errorf("item has no title")
	}

	unlock, err := w.locker.Lock(ctx, vendorID+"|"+fields.Title)
	if err != nil {
		return 0, 0, fmt.Errorf("lock %q: %w", fields.Title, err)
	}
	defer unlock()

	rows, err := w.store.FindProducts(ctx, fields.Title, vendorID)
	if err != nil {
		return 0, 0, fmt.Errorf("find %q: %w", fields.Title, err)
	}

	repaired := 0
	if len(rows) > 1 {
		stale := make([]string, 0, len(rows)-1)
		for _, r := range rows[1:] {
			stale = append(stale, r.ID)
		}
		if err := w.store.DeleteProducts(ctx, stale); err != nil {
			return 0, 0, fmt.Errorf("repair %q: %w", fields.Title, err)
		}
		repaired = len(stale)
		w.logger.Warn("Removed %d duplicate rows for %q", repaired, fields.Title)
	}

	if len(rows) > 0 {
		if _, err := w.store.UpdateProduct(ctx, rows[0].ID, fields); err != nil {
			return 0, repaired, fmt.Errorf("update %q: %w", fields.Title, err)
		}
		return outcomeUpdated, repaired, nil
	}

	if _, err := w.store.CreateProduct(ctx, vendorID, fields); err != nil {
		return 0, repaired, fmt.Errorf("create %q: %w", fields.Title, err)
	}
	return outcomeCreated, repaired, nil
}
