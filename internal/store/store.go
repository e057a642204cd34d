// Package store defines the persistence interfaces of the robot service.
// Implementations live in sub-packages: memory, sqlstore and redisstate.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/types"
)

// RobotRepository persists robots. Removed robots are kept as soft deletes.
type RobotRepository interface {
	CreateRobot(ctx context.Context, robot *types.Robot) error
	SaveRobot(ctx context.Context, robot *types.Robot) error
	// GetRobot returns ErrCodeRobotNotFound for unknown ids.
	GetRobot(ctx context.Context, id string) (types.Robot, error)
	ListRobots(ctx context.Context, filter RobotFilter) ([]types.Robot, error)
}

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *types.Order) error
	SaveOrder(ctx context.Context, order *types.Order) error
	// GetOrder returns ErrCodeOrderNotFound for unknown ids.
	GetOrder(ctx context.Context, id string) (types.Order, error)
	// FindOrderByBrokerID returns ErrCodeOrderNotFound when no order carries the broker id.
	FindOrderByBrokerID(ctx context.Context, brokerOrderID string) (types.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]types.Order, error)
}

// StateRepository persists the process-wide run state.
type StateRepository interface {
	// GetRunState returns ErrCodeRunStateNotFound when no state was saved yet.
	GetRunState(ctx context.Context) (types.RunState, error)
	SaveRunState(ctx context.Context, state types.RunState) error
}

// RobotFilter selects robots. Unset options match everything.
type RobotFilter struct {
	Instrument     optional.Option[string]
	Ticker         optional.Option[string]
	Tag            optional.Option[string]
	Enabled        optional.Option[bool]
	IncludeRemoved bool
}

// Matches reports whether robot passes the filter.
func (f RobotFilter) Matches(robot types.Robot) bool {
	if robot.Removed && !f.IncludeRemoved {
		return false
	}

	if f.Instrument.IsSome() && robot.Instrument != f.Instrument.Unwrap() {
		return false
	}

	if f.Ticker.IsSome() && robot.Ticker != f.Ticker.Unwrap() {
		return false
	}

	if f.Tag.IsSome() && !slices.Contains(robot.Tags, f.Tag.Unwrap()) {
		return false
	}

	if f.Enabled.IsSome() && robot.Enabled != f.Enabled.Unwrap() {
		return false
	}

	return true
}

// OrderFilter selects orders. Unset options match everything.
// From is inclusive and To exclusive, both on CreatedAt.
type OrderFilter struct {
	RobotID    optional.Option[string]
	Instrument optional.Option[string]
	Side       optional.Option[types.Side]
	Statuses   []types.OrderStatus
	IsSynced   optional.Option[bool]
	From       optional.Option[time.Time]
	To         optional.Option[time.Time]
}

// Matches reports whether order passes the filter.
func (f OrderFilter) Matches(order types.Order) bool {
	if f.RobotID.IsSome() && !order.BelongsTo(f.RobotID.Unwrap()) {
		return false
	}

	if f.Instrument.IsSome() && order.Instrument != f.Instrument.Unwrap() {
		return false
	}

	if f.Side.IsSome() && order.Side != f.Side.Unwrap() {
		return false
	}

	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, order.Status) {
		return false
	}

	if f.IsSynced.IsSome() && order.IsSynced != f.IsSynced.Unwrap() {
		return false
	}

	if f.From.IsSome() && order.CreatedAt.Before(f.From.Unwrap()) {
		return false
	}

	if f.To.IsSome() && !order.CreatedAt.Before(f.To.Unwrap()) {
		return false
	}

	return true
}

// SettledStatuses are the statuses of orders the broker executed in full.
var SettledStatuses = []types.OrderStatus{
	types.OrderStatusFill,
	types.OrderStatusDone,
}

// PaymentStatuses are the statuses of finished orders that may still be
// waiting for payment details.
var PaymentStatuses = []types.OrderStatus{
	types.OrderStatusFill,
	types.OrderStatusDone,
	types.OrderStatusCancelled,
}

// OpenStatuses are the statuses of orders that may still receive fills.
var OpenStatuses = []types.OrderStatus{
	types.OrderStatusNew,
	types.OrderStatusPartiallyFill,
	types.OrderStatusPendingNew,
}
