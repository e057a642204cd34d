package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]

		return v, ok
	}
}

func (suite *ConfigTestSuite) TestDefaults() {
	config, err := Parse(nil, env(nil))
	suite.Require().NoError(err)

	suite.Equal(broker.TypePaper, config.Broker.Type)
	suite.Equal("robots.db", config.Store.Path)
	suite.Equal(DefaultHubGrace, config.Hub.Grace)
	suite.Equal(10*time.Second, config.Robot.TradeCooldown)
	suite.Equal(60*time.Second, config.Robot.FailureCooldown)
	suite.Equal(5*time.Second, config.Robot.CheckCooldown)
	suite.Equal(int64(40), config.Robot.StepBatch)
	suite.True(config.Robot.CommissionRate.Equal(decimal.RequireFromString("0.0005")))
	suite.Equal(":8080", config.Server.Addr)
	suite.Equal(DefaultStatePoll, config.Server.StatePoll)
}

func (suite *ConfigTestSuite) TestParseYAML() {
	data := []byte(`
log_level: debug
broker:
  type: binance
  binance:
    api_key: key
    secret_key: secret
    testnet: true
store:
  path: /var/lib/robots/robots.db
hub:
  grace: 0s
robot:
  trade_cooldown: 2s
  commission_rate: "0.001"
  step_batch: 10
scheduler:
  location: UTC
journal:
  path: fills.parquet
`)

	config, err := Parse(data, env(nil))
	suite.Require().NoError(err)

	suite.Equal("debug", config.LogLevel)
	suite.Equal(broker.TypeBinance, config.Broker.Type)
	suite.Equal("key", config.Broker.Binance.ApiKey)
	suite.True(config.Broker.Binance.Testnet)
	suite.Equal(time.Duration(0), config.Hub.Grace)
	suite.Equal(2*time.Second, config.Robot.TradeCooldown)
	suite.Equal(60*time.Second, config.Robot.FailureCooldown)
	suite.True(config.Robot.CommissionRate.Equal(decimal.RequireFromString("0.001")))
	suite.Equal(int64(10), config.Robot.StepBatch)
	suite.Equal("UTC", config.Scheduler.Location)
	suite.Equal("fills.parquet", config.Journal.Path)
}

func (suite *ConfigTestSuite) TestEnvOverrides() {
	config, err := Parse([]byte("broker:\n  type: paper\n"), env(map[string]string{
		"ROBOTS_BROKER":             "binance",
		"ROBOTS_BINANCE_API_KEY":    "env-key",
		"ROBOTS_BINANCE_SECRET_KEY": "env-secret",
		"ROBOTS_TELEGRAM_TOKEN":     "token",
		"ROBOTS_TELEGRAM_CHAT_ID":   "42",
		"ROBOTS_REDIS_ADDR":         "localhost:6379",
		"ROBOTS_LOG_LEVEL":          "",
	}))
	suite.Require().NoError(err)

	suite.Equal(broker.TypeBinance, config.Broker.Type)
	suite.Equal("env-key", config.Broker.Binance.ApiKey)
	suite.Equal("token", config.Telegram.Token)
	suite.Equal("42", config.Telegram.ChatID)
	suite.Equal("localhost:6379", config.Redis.Addr)
	suite.Equal("info", config.LogLevel)
}

func (suite *ConfigTestSuite) TestValidation() {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown broker", data: "broker:\n  type: ib\n"},
		{name: "binance without keys", data: "broker:\n  type: binance\n"},
		{name: "bad log level", data: "log_level: loud\n"},
		{name: "empty store path", data: "store:\n  path: \"\"\n"},
		{name: "telegram token without chat", data: "telegram:\n  token: abc\n"},
		{name: "negative step batch", data: "robot:\n  step_batch: -1\n"},
		{name: "zero state poll", data: "server:\n  state_poll: 0s\n"},
		{name: "malformed yaml", data: "broker: [\n"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := Parse([]byte(tt.data), env(nil))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "unexpected error %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestLoadFile() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "robots.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("store:\n  path: ':memory:'\n"), 0o600))

	config, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal(":memory:", config.Store.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestGenerateSchema() {
	config := Default()

	schema, err := config.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schema, `"robots-config"`)
	suite.Contains(schema, `"trade_cooldown"`)
	suite.Contains(schema, `"binance"`)
}
