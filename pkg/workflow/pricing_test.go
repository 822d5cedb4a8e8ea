package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		tax      string
		total    string
	}{
		{"whole amount", "300", "30.00", "330.00"},
		{"cents", "79.99", "8.00", "87.99"},
		{"rounds half up", "0.05", "0.01", "0.06"},
		{"zero", "0", "0.00", "0.00"},
		{"several lines", "1329.97", "133.00", "1462.97"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(decimal.RequireFromString(tt.subtotal))
			assert.Equal(t, tt.tax, got.Tax.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
		})
	}
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("19.99"), 3)
	assert.Equal(t, "59.97", got.StringFixed(2))
}
