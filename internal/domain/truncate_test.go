package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		width    int
		expected float64
	}{
		{"cuts decimals", 9.433962264150944, 3, 9.4},
		{"does not round up", 0.0599999, 5, 0.059},
		{"drops trailing dot", 30.57, 3, 30},
		{"exact hundred", 100, 3, 100},
		{"keeps integer digits", 1234.5678, 3, 1234},
		{"integer longer than width", 123456, 3, 123456},
		{"short value untouched", 0.5, 5, 0.5},
		{"tiny value", 0.0000088, 5, 0},
		{"zero", 0, 5, 0},
		{"width disabled", 3.14159, 0, 3.14159},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.value, tt.width))
		})
	}
}

func TestRatePolicy(t *testing.T) {
	p := DefaultRatePolicy()

	assert.Equal(t, 0.059, p.Fractional(6729, 11262000))
	assert.Equal(t, 0.0, p.Fractional(10, 0), "non-positive population")
	assert.Equal(t, 33.0, p.Ratio(1, 3))
	assert.Equal(t, 0.0, p.Ratio(1, 0), "zero total")

	raw := RatePolicy{FractionalScale: 1}
	assert.Equal(t, 0.25, raw.Fractional(1, 4), "width zero keeps full precision")
	assert.Equal(t, float64(6729)/float64(11262000), raw.Fractional(6729, 11262000), "scale 1 is total/population")
}
