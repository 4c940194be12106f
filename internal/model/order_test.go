package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusReserved, OrderStatusPickuped, true},
		{OrderStatusReserved, OrderStatusCancelled, true},
		{OrderStatusReserved, OrderStatusReturned, false},
		{OrderStatusPickuped, OrderStatusReturned, true},
		{OrderStatusPickuped, OrderStatusCancelled, true},
		{OrderStatusReturned, OrderStatusCompleted, true},
		{OrderStatusReturned, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusReserved, false},
		{"UNKNOWN", OrderStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEnums(t *testing.T) {
	assert.True(t, RoleOutletStaff.Valid())
	assert.False(t, Role("ROOT").Valid())
	assert.True(t, OrderTypeSale.Valid())
	assert.False(t, OrderType("rent").Valid())
	assert.True(t, OrderStatusPickuped.Active())
	assert.False(t, OrderStatusReturned.Active())
}
