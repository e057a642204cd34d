// Package broker defines the broker capabilities consumed by the hub, the
// order ledger and the robot engine. Concrete adapters live in sub-packages.
package broker

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/shopspring/decimal"
)

// Trader places and inspects orders on the account.
type Trader interface {
	// PlaceLimitOrder submits a limit order for lots at price.
	PlaceLimitOrder(ctx context.Context, instrument string, side types.Side, lots int64, price decimal.Decimal) (types.OrderResult, error)
	// CancelOrder cancels an open order by broker order id.
	CancelOrder(ctx context.Context, brokerOrderID string) error
	// ListOpenOrders returns every order still working at the broker.
	ListOpenOrders(ctx context.Context) ([]types.OrderSummary, error)
	// ListOperations returns settled and in-progress operations between from and to.
	// An empty instrument means all instruments known to the adapter.
	ListOperations(ctx context.Context, from, to time.Time, instrument string) ([]types.Operation, error)
}

// Streamer opens upstream price streams.
type Streamer interface {
	// StreamPrice pushes candles for instrument to onCandle until the returned
	// stop function is called. Candles for one stream arrive sequentially.
	StreamPrice(ctx context.Context, instrument string, resolution types.Resolution, onCandle func(types.Candle)) (stop func(), err error)
}

// InstrumentResolver looks up instrument metadata.
type InstrumentResolver interface {
	// ResolveInstrument accepts a broker id or a ticker. Unknown instruments
	// return an error coded ErrCodeInstrumentNotFound.
	ResolveInstrument(ctx context.Context, idOrTicker string) (types.InstrumentMeta, error)
}

// Broker is the full capability set of one broker account.
type Broker interface {
	Trader
	Streamer
	InstrumentResolver
}

// Type selects a broker adapter in configuration.
type Type string

const (
	TypeBinance Type = "binance"
	TypePaper   Type = "paper"
)
