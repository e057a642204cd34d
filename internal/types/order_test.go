package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name        string
		order       Order
		shouldError bool
	}{
		{
			name: "valid order",
			order: Order{
				ID:            "local-1",
				BrokerOrderID: "42",
				Instrument:    "BBG000B9XRY4",
				Side:          SideBuy,
				Status:        OrderStatusNew,
				RequestedLots: 3,
				ExecutedLots:  1,
				CreatedAt:     time.Now(),
			},
			shouldError: false,
		},
		{
			name: "unknown side",
			order: Order{
				ID:            "local-1",
				BrokerOrderID: "42",
				Instrument:    "BBG000B9XRY4",
				Side:          Side("HOLD"),
				Status:        OrderStatusNew,
			},
			shouldError: true,
		},
		{
			name: "executed above requested",
			order: Order{
				ID:            "local-1",
				BrokerOrderID: "42",
				Instrument:    "BBG000B9XRY4",
				Side:          SideSell,
				Status:        OrderStatusFill,
				RequestedLots: 2,
				ExecutedLots:  3,
			},
			shouldError: true,
		},
		{
			name: "imported order without requested lots",
			order: Order{
				ID:            "local-2",
				BrokerOrderID: "43",
				Instrument:    "BBG000B9XRY4",
				Side:          SideSell,
				Status:        OrderStatusDone,
				ExecutedLots:  3,
			},
			shouldError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderPendingLots(t *testing.T) {
	assert.Equal(t, int64(20), Order{RequestedLots: 30, ExecutedLots: 10}.PendingLots())
	assert.Equal(t, int64(0), Order{RequestedLots: 30, ExecutedLots: 30}.PendingLots())
	assert.Equal(t, int64(0), Order{RequestedLots: 0, ExecutedLots: 5}.PendingLots())
}

func TestOrderCollections(t *testing.T) {
	order := Order{}

	assert.True(t, order.AddCollection("robot-1"))
	assert.False(t, order.AddCollection("robot-1"))
	assert.True(t, order.AddCollection("robot-2"))
	assert.True(t, order.BelongsTo("robot-2"))

	assert.True(t, order.RemoveCollection("robot-1"))
	assert.False(t, order.RemoveCollection("robot-1"))
	assert.Equal(t, []string{"robot-2"}, order.Collections)
}

func TestOrderRefreshSynced(t *testing.T) {
	trade := Trade{TradeID: "t1", Quantity: 1, Price: decimal.NewFromInt(10)}

	tests := []struct {
		name     string
		order    Order
		expected bool
	}{
		{
			name: "complete payment details",
			order: Order{
				Status:     OrderStatusDone,
				Payment:    decimal.NewFromFloat(-100.5),
				Commission: decimal.NewFromFloat(0.06),
				Trades:     []Trade{trade},
			},
			expected: true,
		},
		{
			name: "missing commission",
			order: Order{
				Status:  OrderStatusDone,
				Payment: decimal.NewFromFloat(-100.5),
				Trades:  []Trade{trade},
			},
			expected: false,
		},
		{
			name: "missing trades",
			order: Order{
				Status:     OrderStatusDone,
				Payment:    decimal.NewFromFloat(100.5),
				Commission: decimal.NewFromFloat(0.06),
			},
			expected: false,
		},
		{
			name:     "declined order",
			order:    Order{Status: OrderStatusDecline},
			expected: true,
		},
		{
			name:     "rejected order",
			order:    Order{Status: OrderStatusRejected},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.order.RefreshSynced()
			assert.Equal(t, tt.expected, tt.order.IsSynced)
		})
	}
}

func TestOrderStatusIsOpen(t *testing.T) {
	assert.True(t, OrderStatusNew.IsOpen())
	assert.True(t, OrderStatusPartiallyFill.IsOpen())
	assert.True(t, OrderStatusPendingNew.IsOpen())
	assert.False(t, OrderStatusFill.IsOpen())
	assert.False(t, OrderStatusDone.IsOpen())
	assert.False(t, OrderStatusCancelled.IsOpen())
}
