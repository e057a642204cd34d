// Package ledger keeps the local record of broker orders and reconciles it
// with the broker's operation history.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/metrics"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// syncWindow is how far around an order's date the operation history is searched.
const syncWindow = 24 * time.Hour

// Config tunes the ledger.
type Config struct {
	// BrokerTimeout bounds every broker call made by the ledger.
	BrokerTimeout time.Duration `yaml:"broker_timeout" json:"broker_timeout" jsonschema:"title=Broker Timeout,type=string,default=15s"`
}

// Ledger is the order ledger.
type Ledger struct {
	orders  store.OrderRepository
	trader  broker.Trader
	log     *logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// New creates a ledger.
func New(config Config, orders store.OrderRepository, trader broker.Trader, m *metrics.Metrics, log *logger.Logger) *Ledger {
	timeout := config.BrokerTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Ledger{
		orders:  orders,
		trader:  trader,
		log:     log.Named("ledger"),
		metrics: m,
		timeout: timeout,
		now:     time.Now,
	}
}

// FindOrCreate returns the local order for brokerOrderID. Unknown orders are
// imported from the operation history around approxDate.
func (l *Ledger) FindOrCreate(ctx context.Context, brokerOrderID string, approxDate time.Time) (types.Order, error) {
	order, err := l.orders.FindOrderByBrokerID(ctx, brokerOrderID)
	if err == nil {
		return order, nil
	}

	if !errors.HasCode(err, errors.ErrCodeOrderNotFound) {
		return types.Order{}, err
	}

	op, err := l.load(ctx, brokerOrderID, approxDate)
	if err != nil {
		return types.Order{}, err
	}

	if op.IsNone() {
		return types.Order{}, errors.Newf(errors.ErrCodeOperationNotFound, "operation not found for order %s", brokerOrderID)
	}

	return l.CreateByOperation(ctx, op.Unwrap())
}

// FindOrCreateByOperation returns the local order for op, importing it when missing.
func (l *Ledger) FindOrCreateByOperation(ctx context.Context, op types.Operation) (types.Order, bool, error) {
	order, err := l.orders.FindOrderByBrokerID(ctx, op.ID)
	if err == nil {
		return order, false, nil
	}

	if !errors.HasCode(err, errors.ErrCodeOrderNotFound) {
		return types.Order{}, false, err
	}

	order, err = l.CreateByOperation(ctx, op)
	if err != nil {
		return types.Order{}, false, err
	}

	return order, true, nil
}

// CreateByOperation records a historical operation as a new order. The
// requested price is unknown for imported orders and stays zero.
func (l *Ledger) CreateByOperation(ctx context.Context, op types.Operation) (types.Order, error) {
	order := types.Order{
		ID:             uuid.New().String(),
		BrokerOrderID:  op.ID,
		Instrument:     op.Instrument,
		Side:           op.Side,
		Status:         op.Status,
		RequestedLots:  op.RequestedLots,
		ExecutedLots:   op.ExecutedLots,
		RequestedPrice: decimal.Zero,
		Price:          op.Price,
		Commission:     decimal.Zero,
		Payment:        decimal.Zero,
		Currency:       op.Currency,
		Trades:         []types.Trade{},
		Collections:    []string{},
		IsSynced:       false,
		CreatedAt:      op.Date,
		UpdatedAt:      l.now(),
	}

	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	if err := l.orders.CreateOrder(ctx, &order); err != nil {
		return types.Order{}, err
	}

	l.log.Info("imported order from operation",
		zap.String("broker_order_id", op.ID),
		zap.String("instrument", op.Instrument),
		zap.String("status", string(op.Status)))

	return order, nil
}

// CreateFromPlacement records an order the engine has just placed for robotID.
func (l *Ledger) CreateFromPlacement(ctx context.Context, robotID, instrument string, side types.Side, price decimal.Decimal, result types.OrderResult) (types.Order, error) {
	now := l.now()

	order := types.Order{
		ID:             uuid.New().String(),
		BrokerOrderID:  result.BrokerOrderID,
		Instrument:     instrument,
		Side:           side,
		Status:         result.Status,
		RequestedLots:  result.RequestedLots,
		ExecutedLots:   result.ExecutedLots,
		RequestedPrice: price,
		Price:          price,
		Commission:     result.Commission,
		Payment:        decimal.Zero,
		Currency:       "",
		Trades:         []types.Trade{},
		Collections:    []string{robotID},
		IsSynced:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	if err := l.orders.CreateOrder(ctx, &order); err != nil {
		return types.Order{}, err
	}

	return order, nil
}

// load searches the operation history around date for brokerOrderID.
func (l *Ledger) load(ctx context.Context, brokerOrderID string, date time.Time) (optional.Option[types.Operation], error) {
	return l.loadFor(ctx, brokerOrderID, "", date)
}

func (l *Ledger) loadFor(ctx context.Context, brokerOrderID, instrument string, date time.Time) (optional.Option[types.Operation], error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	ops, err := l.trader.ListOperations(ctx, date.Add(-syncWindow), date.Add(syncWindow), instrument)
	l.metrics.ObserveBroker("list_operations", time.Since(start).Seconds())

	if err != nil {
		return optional.None[types.Operation](), err
	}

	l.log.Debug("searching operation history",
		zap.String("broker_order_id", brokerOrderID), zap.Time("date", date), zap.Int("operations", len(ops)))

	for _, op := range ops {
		if op.ID == brokerOrderID {
			return optional.Some(op), nil
		}
	}

	return optional.None[types.Operation](), nil
}

// Sync refreshes order from its broker operation and persists it. An order
// with no matching operation is left untouched.
func (l *Ledger) Sync(ctx context.Context, order *types.Order) error {
	op, err := l.loadFor(ctx, order.BrokerOrderID, order.Instrument, order.CreatedAt)
	if err != nil {
		l.metrics.Sync("error")

		return err
	}

	if op.IsNone() {
		l.metrics.Sync("missing")

		return nil
	}

	applyOperation(order, op.Unwrap())
	order.UpdatedAt = l.now()

	if err := l.orders.SaveOrder(ctx, order); err != nil {
		l.metrics.Sync("error")

		return err
	}

	l.metrics.Sync("ok")

	return nil
}

func applyOperation(order *types.Order, op types.Operation) {
	order.ExecutedLots = op.ExecutedLots
	order.Status = op.Status

	if !op.Price.IsZero() {
		order.Price = op.Price
	}

	order.Commission = op.Commission
	order.Payment = op.Payment
	order.Currency = op.Currency
	order.Trades = op.Trades

	if order.RequestedLots < order.ExecutedLots {
		order.RequestedLots = order.ExecutedLots
	}

	order.RefreshSynced()
}

// Cancel cancels order at the broker and then syncs it.
func (l *Ledger) Cancel(ctx context.Context, order *types.Order) error {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.trader.CancelOrder(cctx, order.BrokerOrderID); err != nil {
		return err
	}

	return l.Sync(ctx, order)
}

// CheckPayments syncs every finished order with executed lots whose
// payment details have not arrived yet. Orders filled at placement are
// picked up here. It returns how many orders became synced.
func (l *Ledger) CheckPayments(ctx context.Context) (int, error) {
	finished, err := l.orders.ListOrders(ctx, store.OrderFilter{
		Statuses: store.PaymentStatuses,
		IsSynced: optional.Some(false),
	})
	if err != nil {
		return 0, err
	}

	pending := finished[:0]

	for _, order := range finished {
		if order.Status == types.OrderStatusCancelled && order.ExecutedLots == 0 {
			continue
		}

		pending = append(pending, order)
	}

	l.log.Info("syncing unsynced orders", zap.Int("count", len(pending)))

	synced := 0

	for i := range pending {
		order := &pending[i]

		if err := l.Sync(ctx, order); err != nil {
			l.log.Warn("failed to sync order", zap.String("broker_order_id", order.BrokerOrderID), zap.Error(err))

			continue
		}

		if order.IsSynced {
			synced++
		}
	}

	return synced, nil
}

// Import backfills operations between from and to. When robotID is set,
// every imported order is attributed to that robot. It returns how many
// orders were newly created.
func (l *Ledger) Import(ctx context.Context, from, to time.Time, instrument string, robotID optional.Option[string]) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ops, err := l.trader.ListOperations(cctx, from, to, instrument)
	if err != nil {
		return 0, err
	}

	created := 0

	for _, op := range ops {
		order, isNew, err := l.FindOrCreateByOperation(ctx, op)
		if err != nil {
			return created, err
		}

		if isNew {
			created++

			applyOperation(&order, op)
		}

		changed := isNew

		if robotID.IsSome() && order.AddCollection(robotID.Unwrap()) {
			changed = true
		}

		if changed {
			order.UpdatedAt = l.now()
			if err := l.orders.SaveOrder(ctx, &order); err != nil {
				return created, err
			}
		}
	}

	l.log.Info("imported operations", zap.Int("operations", len(ops)), zap.Int("created", created))

	return created, nil
}

// AddCollection attributes an order to a robot.
func (l *Ledger) AddCollection(ctx context.Context, orderID, robotID string) (types.Order, error) {
	order, err := l.orders.GetOrder(ctx, orderID)
	if err != nil {
		return types.Order{}, err
	}

	if order.AddCollection(robotID) {
		order.UpdatedAt = l.now()
		if err := l.orders.SaveOrder(ctx, &order); err != nil {
			return types.Order{}, err
		}
	}

	return order, nil
}

// RemoveCollection detaches an order from a robot.
func (l *Ledger) RemoveCollection(ctx context.Context, orderID, robotID string) (types.Order, error) {
	order, err := l.orders.GetOrder(ctx, orderID)
	if err != nil {
		return types.Order{}, err
	}

	if order.RemoveCollection(robotID) {
		order.UpdatedAt = l.now()
		if err := l.orders.SaveOrder(ctx, &order); err != nil {
			return types.Order{}, err
		}
	}

	return order, nil
}

// Save persists an order updated by the caller.
func (l *Ledger) Save(ctx context.Context, order *types.Order) error {
	order.UpdatedAt = l.now()

	return l.orders.SaveOrder(ctx, order)
}

// Get returns one order by local id.
func (l *Ledger) Get(ctx context.Context, orderID string) (types.Order, error) {
	return l.orders.GetOrder(ctx, orderID)
}

// List returns the orders matching filter.
func (l *Ledger) List(ctx context.Context, filter store.OrderFilter) ([]types.Order, error) {
	return l.orders.ListOrders(ctx, filter)
}

// OpenOrders returns the robot's orders that may still receive fills.
func (l *Ledger) OpenOrders(ctx context.Context, robotID string, side optional.Option[types.Side]) ([]types.Order, error) {
	return l.orders.ListOrders(ctx, store.OrderFilter{
		RobotID:  optional.Some(robotID),
		Side:     side,
		Statuses: store.OpenStatuses,
	})
}

// DoneOrders returns the robot's orders executed in full, including those
// still waiting for the payments sweep.
func (l *Ledger) DoneOrders(ctx context.Context, robotID string) ([]types.Order, error) {
	return l.orders.ListOrders(ctx, store.OrderFilter{
		RobotID:  optional.Some(robotID),
		Statuses: store.SettledStatuses,
	})
}
