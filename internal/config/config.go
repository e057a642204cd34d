// Package config loads the process configuration: a YAML file, optionally
// preceded by a .env file, with ROBOTS_* environment overrides on top.
package config

import (
	"encoding/json"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/broker/binancebroker"
	"github.com/rxtech-lab/argo-robots/internal/broker/paper"
	"github.com/rxtech-lab/argo-robots/internal/hub"
	"github.com/rxtech-lab/argo-robots/internal/ledger"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/robot"
	"github.com/rxtech-lab/argo-robots/internal/scheduler"
	"github.com/rxtech-lab/argo-robots/internal/store/redisstate"
	"github.com/rxtech-lab/argo-robots/internal/version"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultHubGrace delays the close of an idle upstream stream.
const DefaultHubGrace = 3 * time.Second

// DefaultStatePoll is the run state polling interval of the serving process.
const DefaultStatePoll = 5 * time.Second

// Config is the whole process configuration.
type Config struct {
	// Version is the binary version the file was written for.
	Version   string                      `yaml:"version" json:"version" jsonschema:"title=Version,description=Binary version this file targets"`
	LogLevel  string                      `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Broker    BrokerConfig                `yaml:"broker" json:"broker" jsonschema:"title=Broker"`
	Store     StoreConfig                 `yaml:"store" json:"store" jsonschema:"title=Store"`
	Redis     redisstate.Config           `yaml:"redis" json:"redis" jsonschema:"title=Redis"`
	Telegram  notification.TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"title=Telegram"`
	Hub       hub.Config                  `yaml:"hub" json:"hub" jsonschema:"title=Hub"`
	Robot     robot.Config                `yaml:"robot" json:"robot" jsonschema:"title=Robot Engine"`
	Ledger    ledger.Config               `yaml:"ledger" json:"ledger" jsonschema:"title=Ledger"`
	Scheduler scheduler.Config            `yaml:"scheduler" json:"scheduler" jsonschema:"title=Scheduler"`
	Journal   JournalConfig               `yaml:"journal" json:"journal" jsonschema:"title=Journal"`
	Server    ServerConfig                `yaml:"server" json:"server" jsonschema:"title=Server"`
}

// BrokerConfig selects the broker adapter. Only the selected section is validated.
type BrokerConfig struct {
	Type    broker.Type          `yaml:"type" json:"type" validate:"required,oneof=binance paper" jsonschema:"title=Type,default=paper"`
	Binance binancebroker.Config `yaml:"binance" json:"binance" validate:"-" jsonschema:"title=Binance"`
	Paper   paper.Config         `yaml:"paper" json:"paper" validate:"-" jsonschema:"title=Paper"`
	// Upstream feeds the paper broker with real prices. Empty keeps prices local.
	Upstream broker.Type `yaml:"upstream" json:"upstream" validate:"omitempty,eq=binance" jsonschema:"title=Upstream,description=Price source of the paper broker"`
}

type StoreConfig struct {
	// Path of the SQLite database. ":memory:" keeps everything in process memory.
	Path string `yaml:"path" json:"path" validate:"required" jsonschema:"title=Path,default=robots.db"`
}

type JournalConfig struct {
	// Path of the DuckDB fills journal. Empty disables the journal.
	Path string `yaml:"path" json:"path" jsonschema:"title=Path,description=Fills journal parquet path; empty disables it"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" jsonschema:"title=Address,default=:8080"`
	// StatePoll is how often the serving process picks up run state changes
	// made by the run and stop commands.
	StatePoll time.Duration `yaml:"state_poll" json:"state_poll" jsonschema:"title=State Poll,type=string,default=5s"`
}

// Default returns the configuration used when a setting is absent.
func Default() Config {
	return Config{
		Version:  "",
		LogLevel: "info",
		Broker: BrokerConfig{
			Type:     broker.TypePaper,
			Binance:  binancebroker.Config{},
			Paper:    paper.Config{},
			Upstream: "",
		},
		Store:     StoreConfig{Path: "robots.db"},
		Redis:     redisstate.Config{},
		Telegram:  notification.TelegramConfig{},
		Hub:       hub.Config{Grace: DefaultHubGrace},
		Robot:     robot.DefaultConfig(),
		Ledger:    ledger.Config{BrokerTimeout: robot.DefaultBrokerTimeout},
		Scheduler: scheduler.Config{},
		Journal:   JournalConfig{},
		Server:    ServerConfig{Addr: ":8080", StatePoll: DefaultStatePoll},
	}
}

// Load reads .env (if present) and the YAML file at path, applies the
// environment overrides and validates the result. An empty path loads
// the defaults with overrides only.
func Load(path string) (*Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	var data []byte

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
		}
	}

	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML over the defaults, applies overrides from lookup and
// validates the result.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	applyEnv(&config, lookup)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the config and its selected broker section.
func (c *Config) Validate() error {
	if err := version.CheckConfigCompatibility(version.GetVersion(), c.Version); err != nil {
		return err
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if c.Server.StatePoll <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "server state poll interval must be positive")
	}

	if err := c.Robot.Validate(); err != nil {
		return err
	}

	switch c.Broker.Type {
	case broker.TypeBinance:
		return c.Broker.Binance.Validate()
	case broker.TypePaper:
		if c.Broker.Upstream == broker.TypeBinance {
			if err := c.Broker.Binance.Validate(); err != nil {
				return err
			}
		}

		return c.Broker.Paper.Validate()
	}

	return nil
}

// GenerateSchema generates a JSON schema for the config file.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(decimal.Decimal{}):
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{Type: "string", Format: "duration"}
			case reflect.TypeOf(broker.Type("")):
				return &jsonschema.Schema{Type: "string", Enum: []any{broker.TypeBinance, broker.TypePaper}}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "robots-config"
	schema.Description = "Configuration schema for the robots service"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders GenerateSchema as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(schemaBytes), nil
}
