package services

import (
	"strings"
	"unicode"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

// Cleaner tidies a vendor's raw items before they reach the Catalog Writer.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger.ForComponent("cleaner")}
}

// Clean normalises whitespace, drops items without a title and keeps only
// the first item for each title in the batch.
func (c *Cleaner) Clean(raw []models.RawItem) []models.RawItem {
	seen := make(map[string]struct{}, len(raw))
	result := make([]models.RawItem, 0, len(raw))

	for _, r := range raw {
		item := models.RawItem{
			Title:        normaliseText(r.Title),
			PriceText:    normaliseText(r.PriceText),
			Link:         strings.TrimSpace(r.Link),
			ThumbnailURL: strings.TrimSpace(r.ThumbnailURL),
			Category:     normaliseText(r.Category),
		}
		if item.Title == "" {
			c.logger.Warn("Dropping item with empty title (link %q)", item.Link)
			continue
		}

		if _, dup := seen[item.Title]; dup {
			c.logger.Debug("Duplicate title skipped: %s", item.Title)
			continue
		}
		seen[item.Title] = struct{}{}

		result = append(result, item)
	}

	c.logger.Info("Cleaned %d → %d items (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
