package types

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order statuses follow the broker enumeration. Done, Decline and Progress
// come from historical operations and overwrite the live status on sync.
const (
	OrderStatusNew            OrderStatus = "New"
	OrderStatusPartiallyFill  OrderStatus = "PartiallyFill"
	OrderStatusFill           OrderStatus = "Fill"
	OrderStatusCancelled      OrderStatus = "Cancelled"
	OrderStatusReplaced       OrderStatus = "Replaced"
	OrderStatusPendingCancel  OrderStatus = "PendingCancel"
	OrderStatusRejected       OrderStatus = "Rejected"
	OrderStatusPendingReplace OrderStatus = "PendingReplace"
	OrderStatusPendingNew     OrderStatus = "PendingNew"
	OrderStatusDone           OrderStatus = "Done"
	OrderStatusDecline        OrderStatus = "Decline"
	OrderStatusProgress       OrderStatus = "Progress"
)

// IsOpen reports whether an order with this status may still receive fills.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusNew, OrderStatusPartiallyFill, OrderStatusPendingNew:
		return true
	default:
		return false
	}
}

// IsTerminalFailure reports whether the broker finished the order without
// any chance of payment details arriving later.
func (s OrderStatus) IsTerminalFailure() bool {
	return s == OrderStatusDecline || s == OrderStatusRejected
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Trade is one sub-fill of an order.
type Trade struct {
	TradeID  string          `yaml:"trade_id" json:"trade_id" csv:"trade_id"`
	Date     time.Time       `yaml:"date" json:"date" csv:"date"`
	Quantity int64           `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price    decimal.Decimal `yaml:"price" json:"price" csv:"price"`
}

// Order is one broker order and its fill history as recorded locally.
type Order struct {
	// ID is the local identifier.
	ID string `yaml:"id" json:"id" validate:"required"`
	// BrokerOrderID is the identifier assigned by the broker.
	BrokerOrderID  string          `yaml:"broker_order_id" json:"broker_order_id" validate:"required"`
	Instrument     string          `yaml:"instrument" json:"instrument" validate:"required"`
	Side           Side            `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Status         OrderStatus     `yaml:"status" json:"status" validate:"required"`
	RequestedLots  int64           `yaml:"requested_lots" json:"requested_lots" validate:"gte=0"`
	ExecutedLots   int64           `yaml:"executed_lots" json:"executed_lots" validate:"gte=0"`
	RequestedPrice decimal.Decimal `yaml:"requested_price" json:"requested_price"`
	// Price is the realized average price reported by the broker.
	Price      decimal.Decimal `yaml:"price" json:"price"`
	Commission decimal.Decimal `yaml:"commission" json:"commission"`
	Payment    decimal.Decimal `yaml:"payment" json:"payment"`
	Currency   string          `yaml:"currency" json:"currency"`
	Trades     []Trade         `yaml:"trades" json:"trades"`
	// Collections lists the robots this order is attributed to.
	Collections []string  `yaml:"collections" json:"collections"`
	IsSynced    bool      `yaml:"is_synced" json:"is_synced"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// PendingLots returns the lots still waiting for execution.
func (o Order) PendingLots() int64 {
	if o.ExecutedLots >= o.RequestedLots {
		return 0
	}

	return o.RequestedLots - o.ExecutedLots
}

// BelongsTo reports whether the order is attributed to the robot.
func (o Order) BelongsTo(robotID string) bool {
	return slices.Contains(o.Collections, robotID)
}

// AddCollection attributes the order to a robot. It returns false when the
// robot was already attached.
func (o *Order) AddCollection(robotID string) bool {
	if o.BelongsTo(robotID) {
		return false
	}

	o.Collections = append(o.Collections, robotID)

	return true
}

// RemoveCollection detaches the order from a robot.
func (o *Order) RemoveCollection(robotID string) bool {
	idx := slices.Index(o.Collections, robotID)
	if idx < 0 {
		return false
	}

	o.Collections = slices.Delete(o.Collections, idx, idx+1)

	return true
}

// RefreshSynced recomputes IsSynced from the broker-confirmed fields.
func (o *Order) RefreshSynced() {
	o.IsSynced = (!o.Payment.IsZero() && !o.Commission.IsZero() && len(o.Trades) > 0) ||
		o.Status.IsTerminalFailure()
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.RequestedLots > 0 && o.ExecutedLots > o.RequestedLots {
		return errors.Newf(errors.ErrCodeInvalidOrder,
			"executed lots %d exceed requested lots %d", o.ExecutedLots, o.RequestedLots)
	}

	return nil
}

// OrderResult is what the broker returns for a freshly placed order.
type OrderResult struct {
	BrokerOrderID string
	Status        OrderStatus
	RequestedLots int64
	ExecutedLots  int64
	Commission    decimal.Decimal
}

// OrderSummary is one entry of the broker's open-order list.
type OrderSummary struct {
	BrokerOrderID string
	Instrument    string
	Side          Side
	Status        OrderStatus
	RequestedLots int64
	ExecutedLots  int64
	Price         decimal.Decimal
}

// Operation is one historical broker operation for an order.
type Operation struct {
	// ID is the broker order id the operation settles.
	ID            string
	Instrument    string
	Side          Side
	Status        OrderStatus
	RequestedLots int64
	ExecutedLots  int64
	Price         decimal.Decimal
	Commission    decimal.Decimal
	Payment       decimal.Decimal
	Currency      string
	Trades        []Trade
	Date          time.Time
}
