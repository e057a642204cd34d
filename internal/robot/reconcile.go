package robot

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fillPrice is the price fills of order are booked at. Imported orders carry
// no requested price and fall back to the robot's trigger.
func fillPrice(r types.Robot, order types.Order) decimal.Decimal {
	if order.RequestedPrice.IsPositive() {
		return order.RequestedPrice
	}

	return triggerPrice(r, order.Side)
}

func (e *Engine) listOpenAtBroker(ctx context.Context) (map[string]types.OrderSummary, error) {
	bctx, cancel := context.WithTimeout(ctx, e.config.BrokerTimeout)
	defer cancel()

	start := time.Now()
	remote, err := e.trader.ListOpenOrders(bctx)
	e.metrics.ObserveBroker("list_open_orders", time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}

	byID := make(map[string]types.OrderSummary, len(remote))
	for _, summary := range remote {
		byID[summary.BrokerOrderID] = summary
	}

	return byID, nil
}

// CheckOrders reconciles the robot's open orders with the broker. When a
// check is already running for the robot it only raises the force-recheck
// flag so the next tick checks again.
func (e *Engine) CheckOrders(ctx context.Context, robotID string) error {
	en, err := e.load(ctx, robotID)
	if err != nil {
		return err
	}

	if !e.checkLocks.TryLock(robotID) {
		e.recheck.Lock(robotID)
		e.metrics.CheckOrdersRun("busy")

		return nil
	}
	defer e.checkLocks.UnlockAfter(robotID, e.config.CheckCooldown)

	open, err := e.ledger.OpenOrders(ctx, robotID, optional.None[types.Side]())
	if err != nil {
		e.metrics.CheckOrdersRun("error")

		return err
	}

	if len(open) == 0 {
		e.metrics.CheckOrdersRun("idle")
		e.log.Debug("no open orders, skipping broker", zap.String("robot_id", robotID))

		return nil
	}

	remote, err := e.listOpenAtBroker(ctx)
	if err != nil {
		e.metrics.CheckOrdersRun("error")

		return err
	}

	e.log.Debug("checking orders",
		zap.String("robot_id", robotID),
		zap.Int("local_open", len(open)),
		zap.Int("broker_open", len(remote)))

	r := en.snapshot()

	for i := range open {
		order := &open[i]
		before := order.ExecutedLots

		if summary, ok := remote[order.BrokerOrderID]; ok {
			if summary.ExecutedLots <= before {
				continue
			}

			order.ExecutedLots = summary.ExecutedLots
			order.Status = summary.Status

			if err := e.ledger.Save(ctx, order); err != nil {
				e.log.Warn("failed to save order", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))

				continue
			}
		} else if err := e.ledger.Sync(ctx, order); err != nil {
			e.log.Warn("failed to sync order", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))

			continue
		}

		if delta := order.ExecutedLots - before; delta > 0 {
			if err := e.applyFill(ctx, en, *order, delta, fillPrice(r, *order)); err != nil {
				e.log.Error("failed to apply fill", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))
			}
		}
	}

	e.metrics.CheckOrdersRun("ok")

	return nil
}

// CancelAllOrders cancels every open order of the robot that the broker
// still works and syncs the rest. Fills found on the way are applied.
func (e *Engine) CancelAllOrders(ctx context.Context, robotID string) error {
	en, err := e.load(ctx, robotID)
	if err != nil {
		return err
	}

	// Shares the reconciliation lock so a fill is never applied twice.
	if !e.checkLocks.TryLock(robotID) {
		return errors.Newf(errors.ErrCodeCancelFailed, "orders of robot %s are being checked", robotID)
	}
	defer e.checkLocks.Unlock(robotID)

	open, err := e.ledger.OpenOrders(ctx, robotID, optional.None[types.Side]())
	if err != nil {
		return err
	}

	remote, err := e.listOpenAtBroker(ctx)
	if err != nil {
		return err
	}

	r := en.snapshot()
	failed := 0

	for i := range open {
		order := &open[i]
		before := order.ExecutedLots

		if _, ok := remote[order.BrokerOrderID]; ok {
			e.log.Info("cancelling order", zap.String("robot_id", robotID), zap.String("broker_order_id", order.BrokerOrderID))
			err = e.ledger.Cancel(ctx, order)
		} else {
			err = e.ledger.Sync(ctx, order)
		}

		if err != nil {
			failed++
			e.log.Warn("failed to cancel order", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))

			continue
		}

		if delta := order.ExecutedLots - before; delta > 0 {
			if err := e.applyFill(ctx, en, *order, delta, fillPrice(r, *order)); err != nil {
				e.log.Error("failed to apply fill", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))
			}
		}
	}

	if failed > 0 {
		return errors.Newf(errors.ErrCodeCancelFailed, "%d of %d orders could not be cancelled", failed, len(open))
	}

	e.log.Info("all orders cancelled", zap.String("robot_id", robotID), zap.Int("orders", len(open)))

	return nil
}

// Resync recomputes inventory and budget from the robot's settled orders.
// Stepper robots also get both bounds recomputed.
func (e *Engine) Resync(ctx context.Context, robotID string) (types.Robot, error) {
	en, err := e.load(ctx, robotID)
	if err != nil {
		return types.Robot{}, err
	}

	done, err := e.ledger.DoneOrders(ctx, robotID)
	if err != nil {
		return types.Robot{}, err
	}

	var bought, sold int64

	budget := decimal.Zero

	for _, order := range done {
		if order.Side == types.SideBuy {
			bought += order.ExecutedLots
		} else {
			sold += order.ExecutedLots
		}

		budget = budget.Add(order.Payment).Sub(order.Commission.Abs())
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	r := en.robot
	r.Shares = r.StartShares + (bought-sold)*r.Lot
	r.Budget = budget.Round(2)

	if r.Strategy == types.StrategyStepper {
		r.MaxShares = stepBound(r.InitialMaxShares, sold, e.config.StepBatch)
		r.MinShares = stepBound(r.InitialMinShares, bought, e.config.StepBatch)
	}

	if err := e.save(ctx, &r); err != nil {
		return types.Robot{}, err
	}

	en.robot = r

	e.log.Info("robot resynced",
		zap.String("robot_id", robotID),
		zap.Int("orders", len(done)),
		zap.Int64("shares", r.Shares),
		zap.String("budget", r.Budget.String()))

	return cloneRobot(r), nil
}
