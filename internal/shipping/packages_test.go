package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jatango/liveshop/internal/orders"
)

func TestPoundsFor(t *testing.T) {
	assert.InDelta(t, 0.5, PoundsFor(8, "oz"), 1e-9)
	assert.InDelta(t, 1.0, PoundsFor(453.592, "g"), 1e-9)
	assert.InDelta(t, 2.20462, PoundsFor(1, "kg"), 1e-9)
	assert.InDelta(t, 3.0, PoundsFor(3, "lb"), 1e-9)
	assert.InDelta(t, 3.0, PoundsFor(3, ""), 1e-9)
}

func TestDefaultWeight(t *testing.T) {
	items := []orders.OrderItem{
		{Weight: 8, WeightUnit: "oz", Qty: 2},
		{Weight: 1, WeightUnit: "kg", Qty: 1},
		{Weight: 0.5, WeightUnit: "lb", Qty: 1},
	}
	// 1 + 2.20462 + 0.5 pounds
	assert.InDelta(t, 3.70462, DefaultWeight(items), 1e-5)
}

func TestDefaultWeight_FallsBackToOnePound(t *testing.T) {
	assert.Equal(t, 1.0, DefaultWeight(nil))
	assert.Equal(t, 1.0, DefaultWeight([]orders.OrderItem{{Weight: 0, Qty: 3}}))
}

func TestPresetByID(t *testing.T) {
	p, ok := PresetByID("small_box")
	assert.True(t, ok)
	assert.Equal(t, 8.69, p.Length)

	_, ok = PresetByID("giant_crate")
	assert.False(t, ok)
}
