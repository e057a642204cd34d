package binancebroker

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
)

// Config contains configuration for the Binance broker adapter.
type Config struct {
	ApiKey    string `yaml:"api_key" json:"apiKey" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `yaml:"secret_key" json:"secretKey" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	// Testnet routes REST and stream traffic to https://testnet.binance.vision/.
	Testnet bool `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,description=Use the Binance spot testnet"`
	// BaseURL overrides the REST endpoint. It takes precedence over Testnet.
	BaseURL string `yaml:"base_url" json:"baseUrl,omitempty" jsonschema:"title=Base URL"`
	// Symbols are always included when listing operations without an instrument.
	Symbols []string `yaml:"symbols" json:"symbols,omitempty" jsonschema:"title=Symbols,description=Symbols scanned by history imports"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance broker config", err)
	}

	return nil
}
