package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		// European decimal comma
		{"1.234,56", "1234.56"},
		{"1.234,56 €", "1234.56"},
		{"€ 19,99", "19.99"},
		{"12,5", "12.5"},
		{"1.000,5", "1000.5"},
		{"1.000.000,50", "1000000.50"},

		// Dots grouping thousands
		{"23.911", "23911"},
		{"1.000", "1000"},
		{"Rp 1.234.567", "1234567"},
		{"1.5000", "15000"},

		// Bare integers
		{"100", "100"},
		{"$45", "45"},

		// US decimal and catch-all
		{"1,000.00", "1000.00"},
		{"$1,234.56", "1234.56"},
		{"19.99", "19.99"},
		{"1.5", "1.5"},
		{"1,000", "1000"},
		{"1,234,567", "1234567"},

		// Nothing recoverable
		{"", "0"},
		{"abc", "0"},
		{"Price on request", "0"},
		{",,", "0"},
	}

	for _, tt := range tests {
		got := NormalizePrice(tt.raw)
		want := decimal.RequireFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("NormalizePrice(%q) = %s; want %s", tt.raw, got, want)
		}
	}
}
