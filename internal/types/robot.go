package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

type Strategy string

type Lifecycle string

// RobotState is the derived position of a robot's inventory against one of its bounds.
type RobotState string

const (
	StrategyPlain   Strategy = "plain"
	StrategyStepper Strategy = "stepper"
)

const (
	LifecycleEnabled  Lifecycle = "enabled"
	LifecycleDisabled Lifecycle = "disabled"
	LifecycleRemoved  Lifecycle = "removed"
)

const (
	RobotStateAwaitingBuy  RobotState = "below-max-awaiting-buy"
	RobotStateFull         RobotState = "at-or-above-max"
	RobotStateAwaitingSell RobotState = "above-min-awaiting-sell"
	RobotStateEmpty        RobotState = "at-or-below-min"
)

// Robot is a trading strategy bound to one instrument and a price band.
// Share counts are in instrument units; Lot converts lots to units.
type Robot struct {
	ID         string `yaml:"id" json:"id"`
	Instrument string `yaml:"instrument" json:"instrument" validate:"required"`
	Ticker     string `yaml:"ticker" json:"ticker"`
	Name       string `yaml:"name" json:"name"`
	// Budget is the signed cash reserve. Buys spend it, sells replenish it.
	Budget    decimal.Decimal `yaml:"budget" json:"budget"`
	BuyPrice  decimal.Decimal `yaml:"buy_price" json:"buy_price"`
	SellPrice decimal.Decimal `yaml:"sell_price" json:"sell_price"`
	// PlaceBuyPrice gates the buy path when set. BuyPlacementPrice falls back to BuyPrice.
	PlaceBuyPrice optional.Option[decimal.Decimal] `yaml:"place_buy_price" json:"place_buy_price"`
	// PlaceSellPrice gates the sell path when set. SellPlacementPrice falls back to SellPrice.
	PlaceSellPrice       optional.Option[decimal.Decimal] `yaml:"place_sell_price" json:"place_sell_price"`
	MinShares            int64                            `yaml:"min_shares" json:"min_shares" validate:"gte=0"`
	MaxShares            int64                            `yaml:"max_shares" json:"max_shares" validate:"gte=0"`
	InitialMinShares     int64                            `yaml:"initial_min_shares" json:"initial_min_shares" validate:"gte=0"`
	InitialMaxShares     int64                            `yaml:"initial_max_shares" json:"initial_max_shares" validate:"gte=0"`
	StartShares          int64                            `yaml:"start_shares" json:"start_shares"`
	Lot                  int64                            `yaml:"lot" json:"lot" validate:"gt=0"`
	Shares               int64                            `yaml:"shares" json:"shares"`
	Enabled              bool                             `yaml:"enabled" json:"enabled"`
	Removed              bool                             `yaml:"removed" json:"removed"`
	Strategy             Strategy                         `yaml:"strategy" json:"strategy" validate:"required,oneof=plain stepper"`
	StopAfterSell        bool                             `yaml:"stop_after_sell" json:"stop_after_sell"`
	StopAfterBuy         bool                             `yaml:"stop_after_buy" json:"stop_after_buy"`
	ProfitCapitalization bool                             `yaml:"profit_capitalization" json:"profit_capitalization"`
	Tags                 []string                         `yaml:"tags" json:"tags"`
	CreatedAt            time.Time                        `yaml:"created_at" json:"created_at"`
	UpdatedAt            time.Time                        `yaml:"updated_at" json:"updated_at"`
}

// BuyPlacementPrice returns the price that gates the buy path.
func (r Robot) BuyPlacementPrice() decimal.Decimal {
	if r.PlaceBuyPrice.IsSome() && r.PlaceBuyPrice.Unwrap().IsPositive() {
		return r.PlaceBuyPrice.Unwrap()
	}

	return r.BuyPrice
}

// SellPlacementPrice returns the price that gates the sell path.
func (r Robot) SellPlacementPrice() decimal.Decimal {
	if r.PlaceSellPrice.IsSome() && r.PlaceSellPrice.Unwrap().IsPositive() {
		return r.PlaceSellPrice.Unwrap()
	}

	return r.SellPrice
}

// Lifecycle returns the administrative status of the robot.
func (r Robot) Lifecycle() Lifecycle {
	switch {
	case r.Removed:
		return LifecycleRemoved
	case r.Enabled:
		return LifecycleEnabled
	default:
		return LifecycleDisabled
	}
}

// BuyState derives the buy-side state from inventory and the max bound.
func (r Robot) BuyState() RobotState {
	if r.Shares < r.MaxShares {
		return RobotStateAwaitingBuy
	}

	return RobotStateFull
}

// SellState derives the sell-side state from inventory and the min bound.
func (r Robot) SellState() RobotState {
	if r.Shares > r.MinShares {
		return RobotStateAwaitingSell
	}

	return RobotStateEmpty
}

// WithinBounds reports whether inventory sits inside [MinShares, MaxShares].
func (r Robot) WithinBounds() bool {
	return r.Shares >= r.MinShares && r.Shares <= r.MaxShares
}

// Validate validates the Robot struct and its price band.
func (r *Robot) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRobot, "invalid robot", err)
	}

	if !r.BuyPrice.IsPositive() || !r.SellPrice.IsPositive() {
		return errors.New(errors.ErrCodeInvalidPriceBand, "buy and sell prices must be positive")
	}

	if r.BuyPrice.GreaterThanOrEqual(r.SellPrice) {
		return errors.Newf(errors.ErrCodeInvalidPriceBand,
			"buy price %s must be below sell price %s", r.BuyPrice, r.SellPrice)
	}

	if r.MinShares > r.MaxShares {
		return errors.Newf(errors.ErrCodeInvalidRobot,
			"min shares %d exceed max shares %d", r.MinShares, r.MaxShares)
	}

	return nil
}
