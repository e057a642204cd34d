// Package binancebroker implements the broker capabilities on top of the
// Binance spot REST API and kline WebSocket streams.
package binancebroker

import (
	"context"
	stderrors "errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// historyWindow is the widest time range Binance accepts for allOrders and myTrades.
	historyWindow = 24 * time.Hour

	// apiErrInvalidSymbol is returned by exchangeInfo for unknown symbols.
	apiErrInvalidSymbol = -1121
)

var supportedResolutions = []types.Resolution{
	types.Resolution1Min,
	types.Resolution5Min,
	types.Resolution15Min,
	types.Resolution1Hour,
	types.Resolution1Day,
}

// Broker implements broker.Broker using the Binance API.
// Instrument metadata and order-to-symbol lookups are cached for the life of the process.
type Broker struct {
	client BinanceClient
	ws     WebSocketService
	log    *logger.Logger

	mu           sync.RWMutex
	instruments  map[string]types.InstrumentMeta
	orderSymbols map[string]string
	symbols      map[string]struct{}
}

// New creates a Binance broker.
// If config.Testnet is true, connects to Binance Testnet (https://testnet.binance.vision/).
// If config.BaseURL is set, it takes precedence over Testnet.
func New(config Config, log *logger.Logger) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Testnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.ApiKey, config.SecretKey)

	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return newBrokerWithClient(&realBinanceClient{client: client}, realWebSocketService{}, config.Symbols, log), nil
}

// newBrokerWithClient creates a broker with custom clients.
// This is used for testing with mock clients.
func newBrokerWithClient(client BinanceClient, ws WebSocketService, symbols []string, log *logger.Logger) *Broker {
	watched := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		watched[strings.ToUpper(s)] = struct{}{}
	}

	return &Broker{
		client:       client,
		ws:           ws,
		log:          log.Named("binance"),
		mu:           sync.RWMutex{},
		instruments:  make(map[string]types.InstrumentMeta),
		orderSymbols: make(map[string]string),
		symbols:      watched,
	}
}

// PlaceLimitOrder places a GTC limit order for lots at price.
func (b *Broker) PlaceLimitOrder(ctx context.Context, instrument string, side types.Side, lots int64, price decimal.Decimal) (types.OrderResult, error) {
	if lots <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "lots must be positive, got %d", lots)
	}

	if !price.IsPositive() {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %s", price)
	}

	binanceSide, err := toBinanceSide(side)
	if err != nil {
		return types.OrderResult{}, err
	}

	meta, err := b.ResolveInstrument(ctx, instrument)
	if err != nil {
		return types.OrderResult{}, err
	}

	quantity := quantityForLots(meta, lots)

	resp, err := b.client.NewCreateOrderService().
		Symbol(meta.ID).
		Side(binanceSide).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(quantity.String()).
		Price(roundToTick(price, meta.MinPriceIncrement, side).String()).
		Do(ctx)
	if err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	orderID := strconv.FormatInt(resp.OrderID, 10)
	b.rememberOrder(orderID, meta.ID)

	commission := decimal.Zero
	for _, fill := range resp.Fills {
		commission = commission.Add(parseDecimal(fill.Commission))
	}

	return types.OrderResult{
		BrokerOrderID: orderID,
		Status:        mapLiveStatus(resp.Status),
		RequestedLots: lots,
		ExecutedLots:  lotsForQuantity(meta, parseDecimal(resp.ExecutedQuantity)),
		Commission:    commission,
	}, nil
}

// CancelOrder cancels an order by broker order id.
// Binance needs the symbol, so unknown ids are looked up in the open order list.
func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	id, err := strconv.ParseInt(brokerOrderID, 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order ID format", err)
	}

	symbol, ok := b.symbolForOrder(brokerOrderID)
	if !ok {
		if _, err := b.ListOpenOrders(ctx); err != nil {
			return err
		}

		symbol, ok = b.symbolForOrder(brokerOrderID)
		if !ok {
			return errors.Newf(errors.ErrCodeOrderNotFound, "open order not found: %s", brokerOrderID)
		}
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCancelFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

// ListOpenOrders returns all open orders across symbols.
func (b *Broker) ListOpenOrders(ctx context.Context) ([]types.OrderSummary, error) {
	binanceOrders, err := b.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to get open orders from Binance", err)
	}

	orders := make([]types.OrderSummary, 0, len(binanceOrders))

	for _, bo := range binanceOrders {
		meta, err := b.ResolveInstrument(ctx, bo.Symbol)
		if err != nil {
			b.log.Warn("skipping open order with unknown symbol",
				zap.String("symbol", bo.Symbol), zap.Int64("order_id", bo.OrderID), zap.Error(err))

			continue
		}

		summary, err := convertOrderSummary(bo, meta)
		if err != nil {
			continue
		}

		b.rememberOrder(summary.BrokerOrderID, bo.Symbol)
		orders = append(orders, summary)
	}

	return orders, nil
}

// ListOperations returns historical operations between from and to.
// The range is split into Binance's 24 hour query windows.
func (b *Broker) ListOperations(ctx context.Context, from, to time.Time, instrument string) ([]types.Operation, error) {
	if !from.Before(to) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid operation range %s - %s", from, to)
	}

	var symbols []string

	if instrument != "" {
		meta, err := b.ResolveInstrument(ctx, instrument)
		if err != nil {
			return nil, err
		}

		symbols = []string{meta.ID}
	} else {
		symbols = b.watchedSymbols()
	}

	operations := make([]types.Operation, 0)

	for _, symbol := range symbols {
		ops, err := b.listSymbolOperations(ctx, symbol, from, to)
		if err != nil {
			return nil, err
		}

		operations = append(operations, ops...)
	}

	slices.SortFunc(operations, func(a, c types.Operation) int {
		return a.Date.Compare(c.Date)
	})

	return operations, nil
}

func (b *Broker) listSymbolOperations(ctx context.Context, symbol string, from, to time.Time) ([]types.Operation, error) {
	meta, err := b.ResolveInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}

	orders := make(map[int64]*binance.Order)
	trades := make(map[int64][]*binance.TradeV3)

	for start := from; start.Before(to); start = start.Add(historyWindow) {
		end := start.Add(historyWindow)
		if end.After(to) {
			end = to
		}

		windowOrders, err := b.client.NewListOrdersService().
			Symbol(symbol).
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli()).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to list orders from Binance", err)
		}

		for _, o := range windowOrders {
			orders[o.OrderID] = o
		}

		windowTrades, err := b.client.NewListTradesService().
			Symbol(symbol).
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli()).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to list trades from Binance", err)
		}

		for _, t := range windowTrades {
			trades[t.OrderID] = append(trades[t.OrderID], t)
		}
	}

	operations := make([]types.Operation, 0, len(orders))

	for id, o := range orders {
		op, err := convertOperation(o, dedupeTrades(trades[id]), meta)
		if err != nil {
			continue
		}

		b.rememberOrder(op.ID, symbol)
		operations = append(operations, op)
	}

	return operations, nil
}

// StreamPrice opens a kline stream. Every kline update is forwarded, final or not.
func (b *Broker) StreamPrice(ctx context.Context, instrument string, resolution types.Resolution, onCandle func(types.Candle)) (func(), error) {
	if !slices.Contains(supportedResolutions, resolution) {
		return nil, errors.Newf(errors.ErrCodeInvalidResolution, "unsupported resolution: %s", resolution)
	}

	meta, err := b.ResolveInstrument(ctx, instrument)
	if err != nil {
		return nil, err
	}

	handler := func(event *binance.WsKlineEvent) {
		candle, err := convertKline(instrument, resolution, event)
		if err != nil {
			b.log.Warn("dropping malformed kline", zap.String("symbol", meta.ID), zap.Error(err))

			return
		}

		onCandle(candle)
	}

	errHandler := func(err error) {
		b.log.Warn("kline stream error", zap.String("symbol", meta.ID), zap.Error(err))
	}

	doneC, stopC, err := b.ws.WsKlineServe(meta.ID, string(resolution), handler, errHandler)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStreamOpenFailed, "failed to open Binance kline stream", err)
	}

	go func() {
		<-doneC
		b.log.Debug("kline stream closed", zap.String("symbol", meta.ID), zap.String("resolution", string(resolution)))
	}()

	var once sync.Once

	return func() {
		once.Do(func() { close(stopC) })
	}, nil
}

// ResolveInstrument returns symbol metadata from exchangeInfo.
func (b *Broker) ResolveInstrument(ctx context.Context, idOrTicker string) (types.InstrumentMeta, error) {
	symbol := strings.ToUpper(strings.TrimSpace(idOrTicker))
	if symbol == "" {
		return types.InstrumentMeta{}, errors.New(errors.ErrCodeMissingParameter, "instrument is required")
	}

	b.mu.RLock()
	meta, ok := b.instruments[symbol]
	b.mu.RUnlock()

	if ok {
		return meta, nil
	}

	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) && apiErr.Code == apiErrInvalidSymbol {
			return types.InstrumentMeta{}, errors.Wrapf(errors.ErrCodeInstrumentNotFound, err, "instrument not found: %s", symbol)
		}

		return types.InstrumentMeta{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to get exchange info from Binance", err)
	}

	for i := range info.Symbols {
		if info.Symbols[i].Symbol != symbol {
			continue
		}

		meta = convertSymbol(&info.Symbols[i])

		b.mu.Lock()
		b.instruments[symbol] = meta
		b.symbols[symbol] = struct{}{}
		b.mu.Unlock()

		return meta, nil
	}

	return types.InstrumentMeta{}, errors.Newf(errors.ErrCodeInstrumentNotFound, "instrument not found: %s", symbol)
}

func (b *Broker) rememberOrder(orderID, symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.orderSymbols[orderID] = symbol
	b.symbols[symbol] = struct{}{}
}

func (b *Broker) symbolForOrder(orderID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbol, ok := b.orderSymbols[orderID]

	return symbol, ok
}

func (b *Broker) watchedSymbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbols := make([]string, 0, len(b.symbols))
	for s := range b.symbols {
		symbols = append(symbols, s)
	}

	slices.Sort(symbols)

	return symbols
}

var _ broker.Broker = (*Broker)(nil)
