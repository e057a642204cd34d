package robot

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

// Default engine settings.
const (
	DefaultTradeCooldown   = 10 * time.Second
	DefaultFailureCooldown = 60 * time.Second
	DefaultCheckCooldown   = 5 * time.Second
	DefaultStepBatch       = 40
	DefaultTickBuffer      = 16
	DefaultBrokerTimeout   = 15 * time.Second
)

// DefaultCommissionRate is the broker fee charged on every fill notional.
var DefaultCommissionRate = decimal.RequireFromString("0.0005")

// Config tunes the robot engine.
type Config struct {
	// TradeCooldown holds the trade lock after a successful placement.
	TradeCooldown time.Duration `yaml:"trade_cooldown" json:"trade_cooldown" jsonschema:"title=Trade Cooldown,type=string,default=10s"`
	// FailureCooldown holds the trade lock after a failed placement.
	FailureCooldown time.Duration `yaml:"failure_cooldown" json:"failure_cooldown" jsonschema:"title=Failure Cooldown,type=string,default=60s"`
	// CheckCooldown holds the reconciliation lock after every check.
	CheckCooldown  time.Duration   `yaml:"check_cooldown" json:"check_cooldown" jsonschema:"title=Check Cooldown,type=string,default=5s"`
	CommissionRate decimal.Decimal `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,type=string,default=0.0005"`
	// StepBatch is how many filled lots move a stepper bound by one.
	StepBatch  int64            `yaml:"step_batch" json:"step_batch" validate:"gte=0" jsonschema:"title=Step Batch,default=40"`
	Resolution types.Resolution `yaml:"resolution" json:"resolution" validate:"omitempty,oneof=1m 5m 15m 1h 1d" jsonschema:"title=Resolution,enum=1m,enum=5m,enum=15m,enum=1h,enum=1d,default=1m"`
	// TickBuffer is the per-robot queue of pending ticks. Ticks beyond it are dropped.
	TickBuffer    int           `yaml:"tick_buffer" json:"tick_buffer" validate:"gte=0" jsonschema:"title=Tick Buffer,default=16"`
	BrokerTimeout time.Duration `yaml:"broker_timeout" json:"broker_timeout" jsonschema:"title=Broker Timeout,type=string,default=15s"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TradeCooldown:   DefaultTradeCooldown,
		FailureCooldown: DefaultFailureCooldown,
		CheckCooldown:   DefaultCheckCooldown,
		CommissionRate:  DefaultCommissionRate,
		StepBatch:       DefaultStepBatch,
		Resolution:      types.Resolution1Min,
		TickBuffer:      DefaultTickBuffer,
		BrokerTimeout:   DefaultBrokerTimeout,
	}
}

// Validate validates the config.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid robot engine config", err)
	}

	if c.CommissionRate.IsNegative() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "commission rate %s must not be negative", c.CommissionRate)
	}

	return nil
}

// withDefaults fills zero values. Zero cooldowns are kept: they mean release immediately.
func (c Config) withDefaults() Config {
	if c.CommissionRate.IsZero() {
		c.CommissionRate = DefaultCommissionRate
	}

	if c.StepBatch == 0 {
		c.StepBatch = DefaultStepBatch
	}

	if c.Resolution == "" {
		c.Resolution = types.Resolution1Min
	}

	if c.TickBuffer == 0 {
		c.TickBuffer = DefaultTickBuffer
	}

	if c.BrokerTimeout <= 0 {
		c.BrokerTimeout = DefaultBrokerTimeout
	}

	return c
}
