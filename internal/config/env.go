package config

import (
	"github.com/rxtech-lab/argo-robots/internal/broker"
)

// EnvPrefix prefixes every override variable.
const EnvPrefix = "ROBOTS_"

type envBinding struct {
	name  string
	apply func(c *Config, value string)
}

var envBindings = []envBinding{
	{"LOG_LEVEL", func(c *Config, v string) { c.LogLevel = v }},
	{"BROKER", func(c *Config, v string) { c.Broker.Type = broker.Type(v) }},
	{"BINANCE_API_KEY", func(c *Config, v string) { c.Broker.Binance.ApiKey = v }},
	{"BINANCE_SECRET_KEY", func(c *Config, v string) { c.Broker.Binance.SecretKey = v }},
	{"STORE_PATH", func(c *Config, v string) { c.Store.Path = v }},
	{"REDIS_ADDR", func(c *Config, v string) { c.Redis.Addr = v }},
	{"REDIS_PASSWORD", func(c *Config, v string) { c.Redis.Password = v }},
	{"TELEGRAM_TOKEN", func(c *Config, v string) { c.Telegram.Token = v }},
	{"TELEGRAM_CHAT_ID", func(c *Config, v string) { c.Telegram.ChatID = v }},
	{"JOURNAL_PATH", func(c *Config, v string) { c.Journal.Path = v }},
	{"SERVER_ADDR", func(c *Config, v string) { c.Server.Addr = v }},
}

func applyEnv(c *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}

	for _, binding := range envBindings {
		if value, ok := lookup(EnvPrefix + binding.name); ok && value != "" {
			binding.apply(c, value)
		}
	}
}
