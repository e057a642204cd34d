package binancebroker

import (
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

// Helper functions

func toBinanceSide(side types.Side) (binance.SideType, error) {
	switch side {
	case types.SideBuy:
		return binance.SideTypeBuy, nil
	case types.SideSell:
		return binance.SideTypeSell, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", side)
	}
}

func fromBinanceSide(side binance.SideType) (types.Side, error) {
	switch side {
	case binance.SideTypeBuy:
		return types.SideBuy, nil
	case binance.SideTypeSell:
		return types.SideSell, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unknown side: %s", side)
	}
}

// mapLiveStatus maps Binance order status to the live order status.
func mapLiveStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew:
		return types.OrderStatusNew
	case binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPartiallyFill
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFill
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypePendingCancel:
		return types.OrderStatusPendingCancel
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusNew
	}
}

// mapOperationStatus maps a historical Binance order to an operation status.
// Cancelled orders with fills settle as Done, without fills they are declined.
func mapOperationStatus(status binance.OrderStatusType, executed decimal.Decimal) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusDone
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		if executed.IsPositive() {
			return types.OrderStatusDone
		}

		return types.OrderStatusDecline
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusDecline
	default:
		return types.OrderStatusProgress
	}
}

func quantityStep(meta types.InstrumentMeta) decimal.Decimal {
	if meta.QuantityStep.IsPositive() {
		return meta.QuantityStep
	}

	return decimal.NewFromInt(1)
}

func lotSize(meta types.InstrumentMeta) int64 {
	if meta.Lot > 0 {
		return meta.Lot
	}

	return 1
}

// quantityForLots converts lots into a Binance quantity.
func quantityForLots(meta types.InstrumentMeta, lots int64) decimal.Decimal {
	return decimal.NewFromInt(lots * lotSize(meta)).Mul(quantityStep(meta))
}

// unitsForQuantity converts a Binance quantity into whole instrument units.
func unitsForQuantity(meta types.InstrumentMeta, quantity decimal.Decimal) int64 {
	return quantity.Div(quantityStep(meta)).Floor().IntPart()
}

// lotsForQuantity converts a Binance quantity into whole lots.
func lotsForQuantity(meta types.InstrumentMeta, quantity decimal.Decimal) int64 {
	return unitsForQuantity(meta, quantity) / lotSize(meta)
}

// roundToTick aligns price to the tick size. Buys round down and sells round up
// so the order never crosses the robot's band.
func roundToTick(price, tick decimal.Decimal, side types.Side) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}

	steps := price.Div(tick)
	if side == types.SideSell {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}

	return steps.Mul(tick)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	return d
}

func convertSymbol(s *binance.Symbol) types.InstrumentMeta {
	meta := types.InstrumentMeta{
		ID:                s.Symbol,
		Ticker:            s.Symbol,
		Name:              s.BaseAsset + "/" + s.QuoteAsset,
		Lot:               1,
		MinPriceIncrement: decimal.Zero,
		QuantityStep:      decimal.NewFromInt(1),
		Currency:          s.QuoteAsset,
	}

	if pf := s.PriceFilter(); pf != nil {
		meta.MinPriceIncrement = parseDecimal(pf.TickSize)
	}

	if lf := s.LotSizeFilter(); lf != nil {
		if step := parseDecimal(lf.StepSize); step.IsPositive() {
			meta.QuantityStep = step
		}
	}

	return meta
}

func convertOrderSummary(bo *binance.Order, meta types.InstrumentMeta) (types.OrderSummary, error) {
	side, err := fromBinanceSide(bo.Side)
	if err != nil {
		return types.OrderSummary{}, err
	}

	return types.OrderSummary{
		BrokerOrderID: strconv.FormatInt(bo.OrderID, 10),
		Instrument:    bo.Symbol,
		Side:          side,
		Status:        mapLiveStatus(bo.Status),
		RequestedLots: lotsForQuantity(meta, parseDecimal(bo.OrigQuantity)),
		ExecutedLots:  lotsForQuantity(meta, parseDecimal(bo.ExecutedQuantity)),
		Price:         parseDecimal(bo.Price),
	}, nil
}

// convertOperation folds a historical order and its trades into an operation.
// Payment is negative for buys, matching the cash flow seen by the account.
func convertOperation(bo *binance.Order, trades []*binance.TradeV3, meta types.InstrumentMeta) (types.Operation, error) {
	side, err := fromBinanceSide(bo.Side)
	if err != nil {
		return types.Operation{}, err
	}

	executed := parseDecimal(bo.ExecutedQuantity)
	quote := parseDecimal(bo.CummulativeQuoteQuantity)

	price := parseDecimal(bo.Price)
	if executed.IsPositive() && quote.IsPositive() {
		price = quote.Div(executed).Round(8)
	}

	payment := quote
	if side == types.SideBuy {
		payment = payment.Neg()
	}

	commission := decimal.Zero
	opTrades := make([]types.Trade, 0, len(trades))

	for _, t := range trades {
		commission = commission.Add(parseDecimal(t.Commission))
		opTrades = append(opTrades, types.Trade{
			TradeID:  strconv.FormatInt(t.ID, 10),
			Date:     time.UnixMilli(t.Time),
			Quantity: unitsForQuantity(meta, parseDecimal(t.Quantity)),
			Price:    parseDecimal(t.Price),
		})
	}

	return types.Operation{
		ID:            strconv.FormatInt(bo.OrderID, 10),
		Instrument:    bo.Symbol,
		Side:          side,
		Status:        mapOperationStatus(bo.Status, executed),
		RequestedLots: lotsForQuantity(meta, parseDecimal(bo.OrigQuantity)),
		ExecutedLots:  lotsForQuantity(meta, executed),
		Price:         price,
		Commission:    commission,
		Payment:       payment,
		Currency:      meta.Currency,
		Trades:        opTrades,
		Date:          time.UnixMilli(bo.Time),
	}, nil
}

func dedupeTrades(trades []*binance.TradeV3) []*binance.TradeV3 {
	seen := make(map[int64]struct{}, len(trades))
	out := make([]*binance.TradeV3, 0, len(trades))

	for _, t := range trades {
		if _, ok := seen[t.ID]; ok {
			continue
		}

		seen[t.ID] = struct{}{}
		out = append(out, t)
	}

	return out
}

func convertKline(instrument string, resolution types.Resolution, event *binance.WsKlineEvent) (types.Candle, error) {
	if event == nil {
		return types.Candle{}, errors.New(errors.ErrCodeMarketDataParseFailed, "empty kline event")
	}

	k := event.Kline

	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "invalid close price", err)
	}

	return types.Candle{
		Instrument: instrument,
		Resolution: resolution,
		Time:       time.UnixMilli(k.StartTime),
		Open:       parseDecimal(k.Open),
		High:       parseDecimal(k.High),
		Low:        parseDecimal(k.Low),
		Close:      closePrice,
		Volume:     parseDecimal(k.Volume),
	}, nil
}
