package payouts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEraWindow(t *testing.T) {

	tests := []struct {
		activeEra uint32
		maxEras   uint32
		start     uint32
		end       uint32
	}{
		{103, 5, 102, 98},
		{6, 5, 5, 1},
		{4, 5, 3, 1},
		{2, 7, 1, 1},
		{1, 7, 1, 1},
		{0, 7, 1, 1},
		{50, 0, 49, 49},
		{1000, 84, 999, 916},
	}

	for _, tt := range tests {
		w := NewEraWindow(tt.activeEra, tt.maxEras)
		assert.Equal(t, tt.start, w.StartEra, "active era %d", tt.activeEra)
		assert.Equal(t, tt.end, w.EndEra, "active era %d", tt.activeEra)

		assert.GreaterOrEqual(t, w.StartEra, w.EndEra)
		assert.GreaterOrEqual(t, w.EndEra, uint32(1))
		if tt.maxEras > 0 {
			assert.LessOrEqual(t, w.Len(), int(tt.maxEras))
		}
	}
}

func TestEraWindowEras(t *testing.T) {

	w := NewEraWindow(103, 5)
	assert.Equal(t, []uint32{102, 101, 100, 99, 98}, w.Eras())
	assert.Equal(t, 5, w.Len())

	assert.True(t, w.Contains(98))
	assert.True(t, w.Contains(102))
	assert.False(t, w.Contains(97))
	assert.False(t, w.Contains(103))

	assert.Equal(t, []uint32{1}, NewEraWindow(1, 7).Eras())
}
