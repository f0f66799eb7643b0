package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Outbound struct {
		WebhookURL     string `yaml:"webhook_url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"outbound"`
	Realtime struct {
		MinReconnectSeconds int64 `yaml:"min_reconnect_seconds"`
		MaxReconnectSeconds int64 `yaml:"max_reconnect_seconds"`
	} `yaml:"realtime"`
	Engine struct {
		FetchTimeoutSeconds int64 `yaml:"fetch_timeout_seconds"`
		ClosedListLimit     int   `yaml:"closed_list_limit"`
		MessageCacheSize    int   `yaml:"message_cache_size"`
	} `yaml:"engine"`
	Notifier struct {
		Enabled          bool   `yaml:"enabled"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		OperatorChatID   int64  `yaml:"operator_chat_id"`
	} `yaml:"notifier"`
	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Outbound.TimeoutSeconds <= 0 {
		c.Outbound.TimeoutSeconds = 15
	}
	if c.Realtime.MinReconnectSeconds <= 0 {
		c.Realtime.MinReconnectSeconds = 1
	}
	if c.Realtime.MaxReconnectSeconds <= 0 {
		c.Realtime.MaxReconnectSeconds = 30
	}
	if c.Engine.FetchTimeoutSeconds <= 0 {
		c.Engine.FetchTimeoutSeconds = 10
	}
	if c.Engine.ClosedListLimit <= 0 {
		c.Engine.ClosedListLimit = 50
	}
	if c.Engine.MessageCacheSize <= 0 {
		c.Engine.MessageCacheSize = 64
	}
}
