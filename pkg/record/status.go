package record

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Stock status values derived for inventory records.
const (
	StatusInStock    = "In Stock"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
)

// ComputeStatus derives the stock status from quantity and reorder level.
// The reorder level itself counts as low stock.
func ComputeStatus(quantity, reorderLevel float64) string {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= reorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// CoerceNumber parses a caller-supplied value into a float64. Numeric types
// pass through; strings are parsed. On any failure the fallback is returned
// instead of an error: a malformed number never rejects a request, it is
// substituted with the previous stored value.
func CoerceNumber(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}
