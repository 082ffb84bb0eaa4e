package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from enums.OrderStatus
		to   enums.OrderStatus
		want bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusShipped, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusPending, false},
		{enums.OrderStatusShipped, enums.OrderStatusCompleted, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, true},
		{enums.OrderStatusCompleted, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusCompleted, enums.OrderStatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled} {
		assert.True(t, status.IsTerminal())
		assert.Empty(t, transitions[status])
	}
}
