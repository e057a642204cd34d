package paper

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
)

// InstrumentConfig declares one instrument the paper broker can trade.
type InstrumentConfig struct {
	ID                string          `yaml:"id" json:"id" jsonschema:"title=ID,description=Instrument identifier" validate:"required"`
	Ticker            string          `yaml:"ticker" json:"ticker" jsonschema:"title=Ticker"`
	Name              string          `yaml:"name" json:"name" jsonschema:"title=Name"`
	Lot               int64           `yaml:"lot" json:"lot" jsonschema:"title=Lot,description=Units per lot,default=1" validate:"gte=0"`
	MinPriceIncrement decimal.Decimal `yaml:"min_price_increment" json:"min_price_increment" jsonschema:"title=Min Price Increment,type=string"`
	Currency          string          `yaml:"currency" json:"currency" jsonschema:"title=Currency"`
}

// Config represents the configuration for the paper broker.
type Config struct {
	Instruments []InstrumentConfig `yaml:"instruments" json:"instruments" jsonschema:"title=Instruments" validate:"dive"`
	// CommissionRate is charged on the notional of every simulated fill.
	CommissionRate decimal.Decimal `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,type=string"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid paper broker configuration", err)
	}

	if c.CommissionRate.IsNegative() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "commission rate must not be negative")
	}

	return nil
}
