// Package paper implements an in-memory broker that simulates limit order
// execution against published prices. It backs dry runs and tests.
package paper

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type simOrder struct {
	summary    types.OrderSummary
	commission decimal.Decimal
	payment    decimal.Decimal
	currency   string
	trades     []types.Trade
	createdAt  time.Time
}

// Broker is a simulated broker. Buy orders fill when the price falls to or
// below their limit, sell orders when it rises to or above it. Orders fill
// completely at their limit price.
type Broker struct {
	log      *logger.Logger
	rate     decimal.Decimal
	upstream optional.Option[broker.Streamer]
	now      func() time.Time

	mu          sync.Mutex
	instruments map[string]types.InstrumentMeta
	tickers     map[string]string
	orders      map[string]*simOrder
	orderSeq    int64
	tradeSeq    int64
	lastPrice   map[string]decimal.Decimal
	subscribers map[string]map[uint64]func(types.Candle)
	subSeq      uint64
}

// New creates a paper broker. When upstream is set, StreamPrice forwards its
// candles through Publish so orders fill against real prices.
func New(config Config, upstream optional.Option[broker.Streamer], log *logger.Logger) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Broker{
		log:         log.Named("paper"),
		rate:        config.CommissionRate,
		upstream:    upstream,
		now:         time.Now,
		mu:          sync.Mutex{},
		instruments: make(map[string]types.InstrumentMeta),
		tickers:     make(map[string]string),
		orders:      make(map[string]*simOrder),
		orderSeq:    0,
		tradeSeq:    0,
		lastPrice:   make(map[string]decimal.Decimal),
		subscribers: make(map[string]map[uint64]func(types.Candle)),
		subSeq:      0,
	}

	for _, ic := range config.Instruments {
		b.AddInstrument(toMeta(ic))
	}

	return b, nil
}

func toMeta(ic InstrumentConfig) types.InstrumentMeta {
	lot := ic.Lot
	if lot <= 0 {
		lot = 1
	}

	tick := ic.MinPriceIncrement
	if !tick.IsPositive() {
		tick = decimal.RequireFromString("0.01")
	}

	ticker := ic.Ticker
	if ticker == "" {
		ticker = ic.ID
	}

	return types.InstrumentMeta{
		ID:                ic.ID,
		Ticker:            ticker,
		Name:              ic.Name,
		Lot:               lot,
		MinPriceIncrement: tick,
		QuantityStep:      decimal.NewFromInt(1),
		Currency:          ic.Currency,
	}
}

// AddInstrument registers instrument metadata at runtime.
func (b *Broker) AddInstrument(meta types.InstrumentMeta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.instruments[meta.ID] = meta
	if meta.Ticker != "" {
		b.tickers[strings.ToUpper(meta.Ticker)] = meta.ID
	}
}

// LastPrice returns the last published close for instrument.
func (b *Broker) LastPrice(instrument string) optional.Option[decimal.Decimal] {
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.lastPrice[instrument]
	if !ok {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(price)
}

// Publish feeds a candle into the simulator. Crossed orders are filled
// before the candle reaches stream subscribers.
func (b *Broker) Publish(candle types.Candle) {
	b.mu.Lock()

	b.lastPrice[candle.Instrument] = candle.Close

	for _, o := range b.orders {
		if o.summary.Instrument != candle.Instrument || !o.summary.Status.IsOpen() {
			continue
		}

		if crosses(o.summary.Side, o.summary.Price, candle.Close) {
			b.fillLocked(o, candle.Time)
		}
	}

	subs := make([]func(types.Candle), 0, len(b.subscribers[candle.Instrument]))
	for _, cb := range b.subscribers[candle.Instrument] {
		subs = append(subs, cb)
	}

	b.mu.Unlock()

	for _, cb := range subs {
		cb(candle)
	}
}

func crosses(side types.Side, limit, price decimal.Decimal) bool {
	if side == types.SideBuy {
		return price.LessThanOrEqual(limit)
	}

	return price.GreaterThanOrEqual(limit)
}

func (b *Broker) fillLocked(o *simOrder, at time.Time) {
	if at.IsZero() {
		at = b.now()
	}

	meta := b.instruments[o.summary.Instrument]
	lots := o.summary.RequestedLots - o.summary.ExecutedLots
	units := lots * meta.Lot
	notional := o.summary.Price.Mul(decimal.NewFromInt(units)).Round(2)
	commission := notional.Mul(b.rate).RoundCeil(2)

	b.tradeSeq++
	o.trades = append(o.trades, types.Trade{
		TradeID:  strconv.FormatInt(b.tradeSeq, 10),
		Date:     at,
		Quantity: units,
		Price:    o.summary.Price,
	})

	if o.summary.Side == types.SideBuy {
		o.payment = o.payment.Sub(notional)
	} else {
		o.payment = o.payment.Add(notional)
	}

	o.commission = o.commission.Add(commission)
	o.summary.ExecutedLots = o.summary.RequestedLots
	o.summary.Status = types.OrderStatusFill

	b.log.Debug("paper order filled",
		zap.String("order_id", o.summary.BrokerOrderID),
		zap.String("instrument", o.summary.Instrument),
		zap.String("side", string(o.summary.Side)),
		zap.Int64("lots", lots),
		zap.String("price", o.summary.Price.String()))
}

// PlaceLimitOrder records a limit order. It fills immediately when the last
// published price already crosses the limit.
func (b *Broker) PlaceLimitOrder(ctx context.Context, instrument string, side types.Side, lots int64, price decimal.Decimal) (types.OrderResult, error) {
	if lots <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "lots must be positive, got %d", lots)
	}

	if !price.IsPositive() {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %s", price)
	}

	if side != types.SideBuy && side != types.SideSell {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", side)
	}

	meta, err := b.ResolveInstrument(ctx, instrument)
	if err != nil {
		return types.OrderResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.orderSeq++
	o := &simOrder{
		summary: types.OrderSummary{
			BrokerOrderID: "paper-" + strconv.FormatInt(b.orderSeq, 10),
			Instrument:    meta.ID,
			Side:          side,
			Status:        types.OrderStatusNew,
			RequestedLots: lots,
			ExecutedLots:  0,
			Price:         price,
		},
		commission: decimal.Zero,
		payment:    decimal.Zero,
		currency:   meta.Currency,
		trades:     nil,
		createdAt:  b.now(),
	}
	b.orders[o.summary.BrokerOrderID] = o

	if last, ok := b.lastPrice[meta.ID]; ok && crosses(side, price, last) {
		b.fillLocked(o, o.createdAt)
	}

	return types.OrderResult{
		BrokerOrderID: o.summary.BrokerOrderID,
		Status:        o.summary.Status,
		RequestedLots: lots,
		ExecutedLots:  o.summary.ExecutedLots,
		Commission:    o.commission,
	}, nil
}

// CancelOrder cancels an open order.
func (b *Broker) CancelOrder(_ context.Context, brokerOrderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[brokerOrderID]
	if !ok || !o.summary.Status.IsOpen() {
		return errors.Newf(errors.ErrCodeOrderNotFound, "open order not found: %s", brokerOrderID)
	}

	o.summary.Status = types.OrderStatusCancelled

	return nil
}

// ListOpenOrders returns the orders still waiting for a price cross.
func (b *Broker) ListOpenOrders(_ context.Context) ([]types.OrderSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.OrderSummary, 0)

	for _, o := range b.orders {
		if o.summary.Status.IsOpen() {
			out = append(out, o.summary)
		}
	}

	slices.SortFunc(out, func(a, c types.OrderSummary) int {
		return strings.Compare(a.BrokerOrderID, c.BrokerOrderID)
	})

	return out, nil
}

// ListOperations returns every order created in [from, to) as an operation.
func (b *Broker) ListOperations(_ context.Context, from, to time.Time, instrument string) ([]types.Operation, error) {
	if !from.Before(to) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid operation range %s - %s", from, to)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if instrument != "" {
		if id, ok := b.tickers[strings.ToUpper(instrument)]; ok {
			instrument = id
		}
	}

	ops := make([]types.Operation, 0)

	for _, o := range b.orders {
		if instrument != "" && o.summary.Instrument != instrument {
			continue
		}

		if o.createdAt.Before(from) || !o.createdAt.Before(to) {
			continue
		}

		ops = append(ops, types.Operation{
			ID:            o.summary.BrokerOrderID,
			Instrument:    o.summary.Instrument,
			Side:          o.summary.Side,
			Status:        operationStatus(o.summary),
			RequestedLots: o.summary.RequestedLots,
			ExecutedLots:  o.summary.ExecutedLots,
			Price:         o.summary.Price,
			Commission:    o.commission,
			Payment:       o.payment,
			Currency:      o.currency,
			Trades:        slices.Clone(o.trades),
			Date:          o.createdAt,
		})
	}

	slices.SortFunc(ops, func(a, c types.Operation) int {
		return a.Date.Compare(c.Date)
	})

	return ops, nil
}

func operationStatus(s types.OrderSummary) types.OrderStatus {
	switch {
	case s.Status == types.OrderStatusFill:
		return types.OrderStatusDone
	case s.Status == types.OrderStatusCancelled && s.ExecutedLots > 0:
		return types.OrderStatusDone
	case s.Status == types.OrderStatusCancelled:
		return types.OrderStatusDecline
	default:
		return types.OrderStatusProgress
	}
}

// StreamPrice subscribes onCandle to published candles for instrument.
func (b *Broker) StreamPrice(ctx context.Context, instrument string, resolution types.Resolution, onCandle func(types.Candle)) (func(), error) {
	meta, err := b.ResolveInstrument(ctx, instrument)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.subSeq++
	id := b.subSeq

	if b.subscribers[meta.ID] == nil {
		b.subscribers[meta.ID] = make(map[uint64]func(types.Candle))
	}

	b.subscribers[meta.ID][id] = onCandle
	b.mu.Unlock()

	stopUpstream := func() {}

	if b.upstream.IsSome() {
		stopUpstream, err = b.upstream.Unwrap().StreamPrice(ctx, meta.ID, resolution, func(c types.Candle) {
			c.Instrument = meta.ID
			b.Publish(c)
		})
		if err != nil {
			b.removeSubscriber(meta.ID, id)

			return nil, errors.Wrap(errors.ErrCodeStreamOpenFailed, "failed to open upstream stream", err)
		}
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			stopUpstream()
			b.removeSubscriber(meta.ID, id)
		})
	}, nil
}

func (b *Broker) removeSubscriber(instrument string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers[instrument], id)

	if len(b.subscribers[instrument]) == 0 {
		delete(b.subscribers, instrument)
	}
}

// ResolveInstrument looks up a configured instrument by id or ticker.
func (b *Broker) ResolveInstrument(_ context.Context, idOrTicker string) (types.InstrumentMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if meta, ok := b.instruments[idOrTicker]; ok {
		return meta, nil
	}

	if id, ok := b.tickers[strings.ToUpper(idOrTicker)]; ok {
		return b.instruments[id], nil
	}

	return types.InstrumentMeta{}, errors.Newf(errors.ErrCodeInstrumentNotFound, "instrument not found: %s", idOrTicker)
}

var _ broker.Broker = (*Broker)(nil)
