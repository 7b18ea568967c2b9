package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusCancelled, true},
		{StatusPaid, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusPaid, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPaid, false},
		{StatusCancelled, StatusShipped, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("SHIPPED")
	assert.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("shipped")
	assert.Error(t, err)

	_, err = ParseStatus("REFUNDED")
	assert.Error(t, err)
}
