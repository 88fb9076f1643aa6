package services

import (
	"testing"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  Steel   Kettle ", "Steel Kettle"},
		{"Two\tline\ntitle", "Two line title"},
		{" Lamp ", "Lamp"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := normaliseText(tt.raw); got != tt.want {
			t.Errorf("normaliseText(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerDropsEmptyTitle(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []models.RawItem{
		{Title: "  ", PriceText: "$100", Link: "https://acme.test/1"},
		{Title: "Kettle", PriceText: "$200", Link: "https://acme.test/2"},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 item after dropping empty title, got %d", len(cleaned))
	}
	if cleaned[0].Title != "Kettle" {
		t.Errorf("kept %q; want Kettle", cleaned[0].Title)
	}
}

func TestCleanerDeduplicatesTitle(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []models.RawItem{
		{Title: "Kettle", PriceText: "10"},
		{Title: " Kettle  ", PriceText: "12"},
		{Title: "kettle", PriceText: "14"},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 items after deduplication, got %d", len(cleaned))
	}
	if cleaned[0].PriceText != "10" {
		t.Errorf("first occurrence should win, got price %q", cleaned[0].PriceText)
	}
}

func TestCleanerTrimsFields(t *testing.T) {
	c := NewCleaner(newTestLogger())
	cleaned := c.Clean([]models.RawItem{{
		Title:        "Lamp",
		PriceText:    " 1.299,00   € ",
		Link:         " https://acme.test/lamp\n",
		ThumbnailURL: "\thttps://cdn.acme.test/lamp.jpg ",
		Category:     " Home   Office ",
	}})

	got := cleaned[0]
	if got.PriceText != "1.299,00 €" || got.Link != "https://acme.test/lamp" ||
		got.ThumbnailURL != "https://cdn.acme.test/lamp.jpg" || got.Category != "Home Office" {
		t.Errorf("unexpected cleaned item: %+v", got)
	}
}
