// Package config provides configuration parsing and validation for the dashboard.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"apt-detection-app/internal/database"
)

// Config holds all configuration parameters for the dashboard. Values come
// from flags; a YAML file may supply values for flags not set explicitly.
type Config struct {
	HTTPPort       string `yaml:"http_port"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	ChangeChannel  string `yaml:"change_channel"`
	FeedBufferSize int    `yaml:"feed_buffer_size"`
	KafkaBrokers   string `yaml:"kafka_brokers"`
	EventsTopic    string `yaml:"events_topic"`
	MockProducer   bool   `yaml:"mock_producer"`
	RedisAddr      string `yaml:"redis_addr"`
	ServiceName    string `yaml:"service_name"`
	AllowedOrigins string `yaml:"allowed_origins"`
	LogLevel       string `yaml:"log_level"`
}

// Validate checks that all required configuration fields are set and have valid values.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.ChangeChannel == "" {
		return fmt.Errorf("change-channel cannot be empty")
	}
	if !database.ValidChannel(c.ChangeChannel) {
		return fmt.Errorf("change-channel %q must be a lowercase identifier", c.ChangeChannel)
	}
	if c.FeedBufferSize <= 0 {
		return fmt.Errorf("feed-buffer-size must be positive")
	}
	if !c.MockProducer && c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.EventsTopic == "" {
		return fmt.Errorf("events-topic cannot be empty")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service-name cannot be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Origins returns the configured CORS origins, defaulting to all.
func (c *Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return []string{"*"}
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log-level %q is not one of debug, info, warn, error", level)
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Overlay copies every non-zero field of file into c, except fields whose
// flag name is in explicit. Flags given on the command line win over the file.
func (c *Config) Overlay(file *Config, explicit map[string]bool) {
	setString := func(flagName string, dst *string, v string) {
		if v != "" && !explicit[flagName] {
			*dst = v
		}
	}
	setString("http-port", &c.HTTPPort, file.HTTPPort)
	setString("postgres-dsn", &c.PostgresDSN, file.PostgresDSN)
	setString("change-channel", &c.ChangeChannel, file.ChangeChannel)
	setString("kafka-brokers", &c.KafkaBrokers, file.KafkaBrokers)
	setString("events-topic", &c.EventsTopic, file.EventsTopic)
	setString("redis-addr", &c.RedisAddr, file.RedisAddr)
	setString("service-name", &c.ServiceName, file.ServiceName)
	setString("allowed-origins", &c.AllowedOrigins, file.AllowedOrigins)
	setString("log-level", &c.LogLevel, file.LogLevel)

	if file.FeedBufferSize != 0 && !explicit["feed-buffer-size"] {
		c.FeedBufferSize = file.FeedBufferSize
	}
	if file.MockProducer && !explicit["mock-producer"] {
		c.MockProducer = true
	}
}
