package types

import (
	"slices"
	"time"

	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

// Resolution is a candle interval understood by the price stream.
type Resolution string

const (
	Resolution1Min  Resolution = "1m"
	Resolution5Min  Resolution = "5m"
	Resolution15Min Resolution = "15m"
	Resolution1Hour Resolution = "1h"
	Resolution1Day  Resolution = "1d"
)

// Resolutions lists every supported resolution.
var Resolutions = []Resolution{Resolution1Min, Resolution5Min, Resolution15Min, Resolution1Hour, Resolution1Day}

// Validate rejects resolutions the stream does not understand.
func (r Resolution) Validate() error {
	if !slices.Contains(Resolutions, r) {
		return errors.Newf(errors.ErrCodeInvalidResolution, "unsupported resolution: %s", r)
	}

	return nil
}

// Candle is one price tick pushed by the upstream stream.
type Candle struct {
	Instrument string          `json:"instrument"`
	Resolution Resolution      `json:"resolution"`
	Time       time.Time       `json:"time"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
}

// InstrumentMeta describes a tradable instrument as resolved by the broker.
type InstrumentMeta struct {
	// ID is the broker's stable identifier (FIGI, exchange symbol).
	ID     string `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	// Lot is the number of units in one lot.
	Lot               int64           `json:"lot"`
	MinPriceIncrement decimal.Decimal `json:"min_price_increment"`
	// QuantityStep is the size of one unit in broker quantity terms. 1 for share brokers.
	QuantityStep decimal.Decimal `json:"quantity_step"`
	Currency     string          `json:"currency"`
}

// Tradable reports whether the instrument carries enough metadata to stream and trade.
func (m InstrumentMeta) Tradable() bool {
	return m.ID != "" && m.MinPriceIncrement.IsPositive()
}

// RunState is the process-wide start/stop flag.
type RunState struct {
	IsRunning bool      `json:"is_running"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fill describes one fill applied to a robot. It feeds the journal and notifications.
type Fill struct {
	RobotID    string          `json:"robot_id"`
	OrderID    string          `json:"order_id"`
	Instrument string          `json:"instrument"`
	Ticker     string          `json:"ticker"`
	Side       Side            `json:"side"`
	Lots       int64           `json:"lots"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Notional   decimal.Decimal `json:"notional"`
	Commission decimal.Decimal `json:"commission"`
	Sum        decimal.Decimal `json:"sum"`
	Budget     decimal.Decimal `json:"budget"`
	Inventory  int64           `json:"inventory"`
	Time       time.Time       `json:"time"`
}
