package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Commission returns the broker fee for notional, rounded up to cents.
func Commission(notional, rate decimal.Decimal) decimal.Decimal {
	return notional.Mul(rate).RoundCeil(2)
}

// stepBound moves a stepper bound by one for every batch of filled lots.
func stepBound(initial, filledLots, batch int64) int64 {
	if batch <= 0 {
		return initial
	}

	return initial + filledLots/batch
}

// triggerPrice is the limit price used for side.
func triggerPrice(r types.Robot, side types.Side) decimal.Decimal {
	if side == types.SideBuy {
		return r.BuyPrice
	}

	return r.SellPrice
}

// PriceWasUpdated runs one step of the robot's decision loop for a new price.
func (e *Engine) PriceWasUpdated(ctx context.Context, robotID string, price, volume decimal.Decimal) error {
	en, err := e.load(ctx, robotID)
	if err != nil {
		return err
	}

	r := en.snapshot()
	if !r.Enabled || r.Removed {
		return nil
	}

	e.log.Debug("price updated",
		zap.String("robot_id", robotID),
		zap.String("price", price.String()),
		zap.String("volume", volume.String()),
		zap.Int64("shares", r.Shares))

	var tradeErr error

	switch {
	case price.LessThanOrEqual(r.BuyPlacementPrice()) && r.Shares < r.MaxShares:
		tradeErr = e.place(ctx, en, types.SideBuy)
	case price.GreaterThanOrEqual(r.SellPlacementPrice()) && r.Shares > r.MinShares:
		tradeErr = e.place(ctx, en, types.SideSell)
	}

	// Placement may have changed the inventory.
	r = en.snapshot()
	actionable := (price.LessThanOrEqual(r.BuyPrice) && r.Shares < r.MaxShares) ||
		(price.GreaterThanOrEqual(r.SellPrice) && r.Shares > r.MinShares)
	forced := e.recheck.TakeLocked(robotID)

	if actionable || forced {
		if err := e.CheckOrders(ctx, robotID); err != nil {
			e.log.Warn("failed to check orders", zap.String("robot_id", robotID), zap.Error(err))
		}
	}

	return tradeErr
}

// DesiredLots is how many lots the robot still wants on side: the room left
// to its bound minus the lots already waiting in open orders on that side.
func (e *Engine) DesiredLots(ctx context.Context, robotID string, side types.Side) (int64, error) {
	en, err := e.load(ctx, robotID)
	if err != nil {
		return 0, err
	}

	return e.desiredLots(ctx, en.snapshot(), side)
}

func (e *Engine) desiredLots(ctx context.Context, r types.Robot, side types.Side) (int64, error) {
	open, err := e.ledger.OpenOrders(ctx, r.ID, optional.Some(side))
	if err != nil {
		return 0, err
	}

	var pending int64
	for _, order := range open {
		pending += order.RequestedLots - order.ExecutedLots
	}

	room := r.MaxShares - r.Shares
	if side == types.SideSell {
		room = r.Shares - r.MinShares
	}

	if room < 0 {
		room = 0
	}

	return room/r.Lot - pending, nil
}

// place runs the buy or sell path. It returns nil without doing anything
// when another placement for the robot holds the trade lock.
func (e *Engine) place(ctx context.Context, en *entry, side types.Side) error {
	r := en.snapshot()
	fields := []zap.Field{zap.String("robot_id", r.ID), zap.String("ticker", r.Ticker), zap.String("side", string(side))}

	if !e.tradeLocks.TryLock(r.ID) {
		e.log.Debug("trade lock held, skipping placement", fields...)

		return nil
	}

	lots, err := e.desiredLots(ctx, r, side)
	if err != nil {
		e.tradeLocks.UnlockAfter(r.ID, e.config.FailureCooldown)

		return err
	}

	if lots <= 0 {
		e.tradeLocks.Unlock(r.ID)
		e.log.Debug("nothing to place", append(fields, zap.Int64("lots", lots))...)

		return nil
	}

	price := triggerPrice(r, side)
	fields = append(fields, zap.Int64("lots", lots), zap.String("price", price.String()))

	bctx, cancel := context.WithTimeout(ctx, e.config.BrokerTimeout)
	start := time.Now()
	result, err := e.trader.PlaceLimitOrder(bctx, r.Instrument, side, lots, price)
	e.metrics.ObserveBroker("place_limit_order", time.Since(start).Seconds())
	cancel()

	if err != nil {
		e.tradeLocks.UnlockAfter(r.ID, e.config.FailureCooldown)
		e.metrics.Placement(string(side), "error")
		e.log.Error("failed to place limit order", append(fields, zap.Error(err))...)
		e.notify(ctx, notification.AlertWarning, "Order failed",
			fmt.Sprintf("%s failed to place %s order for %d lots at %s", r.Ticker, side, lots, price))

		return err
	}

	e.metrics.Placement(string(side), "ok")
	e.log.Info("limit order placed", append(fields,
		zap.String("broker_order_id", result.BrokerOrderID),
		zap.String("status", string(result.Status)),
		zap.Int64("executed_lots", result.ExecutedLots))...)
	e.notify(ctx, notification.AlertInfo, "Order placed",
		fmt.Sprintf("%s placed %s order for %d lots at %s", r.Ticker, side, lots, price))

	order, err := e.ledger.CreateFromPlacement(ctx, r.ID, r.Instrument, side, price, result)
	if err != nil {
		// The order lives at the broker. Import backfills it later.
		e.log.Error("failed to record placed order", append(fields, zap.Error(err))...)
		e.recheck.Lock(r.ID)
		e.tradeLocks.UnlockAfter(r.ID, e.config.FailureCooldown)

		return err
	}

	if result.ExecutedLots > 0 {
		if err := e.applyFill(ctx, en, order, result.ExecutedLots, price); err != nil {
			e.log.Error("failed to apply immediate fill", append(fields, zap.Error(err))...)
		}
	}

	e.recheck.Lock(r.ID)
	e.tradeLocks.UnlockAfter(r.ID, e.config.TradeCooldown)

	return nil
}

// applyFill moves inventory and budget for lots filled at price, persists the
// robot and runs the bound hooks. A hook that disables the robot also
// detaches it from the stream.
func (e *Engine) applyFill(ctx context.Context, en *entry, order types.Order, lots int64, price decimal.Decimal) error {
	en.mu.Lock()

	r := en.robot
	shares := lots * r.Lot
	notional := price.Mul(decimal.NewFromInt(shares))
	commission := Commission(notional, e.config.CommissionRate)

	var sum decimal.Decimal

	if order.Side == types.SideBuy {
		sum = notional.Add(commission).Round(2)
		r.Shares += shares
		r.Budget = r.Budget.Sub(sum).Round(2)
	} else {
		sum = notional.Sub(commission).Round(2)
		r.Shares -= shares
		r.Budget = r.Budget.Add(sum).Round(2)
	}

	hook, err := e.runHooks(ctx, &r, order.Side)
	if err != nil {
		e.log.Warn("failed to run bound hook", zap.String("robot_id", r.ID), zap.Error(err))
	}

	if err := e.save(ctx, &r); err != nil {
		en.mu.Unlock()

		return err
	}

	en.robot = r
	snap := cloneRobot(r)
	en.mu.Unlock()

	if !snap.WithinBounds() {
		e.log.Warn("inventory outside bounds",
			zap.String("robot_id", snap.ID),
			zap.Int64("shares", snap.Shares),
			zap.Int64("min_shares", snap.MinShares),
			zap.Int64("max_shares", snap.MaxShares))
	}

	fill := types.Fill{
		RobotID:    snap.ID,
		OrderID:    order.ID,
		Instrument: snap.Instrument,
		Ticker:     snap.Ticker,
		Side:       order.Side,
		Lots:       lots,
		Shares:     shares,
		Price:      price,
		Notional:   notional.Round(2),
		Commission: commission,
		Sum:        sum,
		Budget:     snap.Budget,
		Inventory:  snap.Shares,
		Time:       e.now(),
	}

	e.metrics.Fill(string(order.Side), lots)
	e.record(fill)

	verb := "bought"
	if order.Side == types.SideSell {
		verb = "sold"
	}

	e.log.Info("fill applied",
		zap.String("robot_id", snap.ID),
		zap.String("side", string(order.Side)),
		zap.Int64("lots", lots),
		zap.String("sum", sum.String()),
		zap.Int64("shares", snap.Shares),
		zap.String("budget", snap.Budget.String()))
	e.notify(ctx, notification.AlertInfo, "Fill",
		fmt.Sprintf("%s has %s %d lots at %s for %s", snap.Ticker, verb, lots, price, sum))

	if hook.disabled {
		e.unsubscribe(en, snap)
		e.notify(ctx, notification.AlertInfo, "Robot stopped", fmt.Sprintf("%s has been disabled after %s", snap.Ticker, hook.name))
	}

	return nil
}

func (e *Engine) record(fill types.Fill) {
	if e.journal.IsNone() {
		return
	}

	if err := e.journal.Unwrap().Record(fill); err != nil {
		e.log.Warn("failed to journal fill", zap.String("robot_id", fill.RobotID), zap.Error(err))
	}
}

type hookResult struct {
	name     string
	disabled bool
}

// runHooks fires the all-bought or all-sold hook when the fill left the
// inventory exactly on the bound of its side. r is mutated in place.
func (e *Engine) runHooks(ctx context.Context, r *types.Robot, side types.Side) (hookResult, error) {
	switch {
	case side == types.SideBuy && r.Shares == r.MaxShares:
		res := hookResult{name: "all bought", disabled: false}

		if r.StopAfterBuy && r.Enabled {
			r.Enabled = false
			res.disabled = true
		}

		if r.Strategy == types.StrategyStepper {
			bought, _, err := e.filledLots(ctx, r.ID)
			if err != nil {
				return res, err
			}

			r.MinShares = stepBound(r.InitialMinShares, bought, e.config.StepBatch)
		}

		return res, nil
	case side == types.SideSell && r.Shares == r.MinShares:
		res := hookResult{name: "all sold", disabled: false}

		if r.StopAfterSell && r.Enabled {
			r.Enabled = false
			res.disabled = true
		}

		if r.Strategy == types.StrategyStepper {
			_, sold, err := e.filledLots(ctx, r.ID)
			if err != nil {
				return res, err
			}

			r.MaxShares = stepBound(r.InitialMaxShares, sold, e.config.StepBatch)
		}

		return res, nil
	default:
		return hookResult{name: "", disabled: false}, nil
	}
}

// filledLots sums the executed lots of the robot's settled orders per side.
func (e *Engine) filledLots(ctx context.Context, robotID string) (bought, sold int64, err error) {
	done, err := e.ledger.DoneOrders(ctx, robotID)
	if err != nil {
		return 0, 0, err
	}

	for _, order := range done {
		if order.Side == types.SideBuy {
			bought += order.ExecutedLots
		} else {
			sold += order.ExecutedLots
		}
	}

	return bought, sold, nil
}
