package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemsTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []OrderItem
		total int64
		ok    bool
	}{
		{"empty", nil, 0, true},
		{"sum", []OrderItem{{Price: 15000, Quantity: 2}, {Price: 10000, Quantity: 2}}, 50000, true},
		{"line overflow", []OrderItem{{Price: 15000, Quantity: 1229782938247304}}, 0, false},
		{"sum overflow", []OrderItem{{Price: math.MaxInt64, Quantity: 1}, {Price: 1, Quantity: 1}}, 0, false},
		{"negative price", []OrderItem{{Price: -1, Quantity: 1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, ok := ItemsTotal(tt.items)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.total, total)
		})
	}
}
