package audit

import (
	"os"
	"strconv"
	"strings"
)

// Listener names accepted in Config.Listeners.
const (
	ListenerConsole  = "console"
	ListenerDatabase = "database"
	ListenerKafka    = "kafka"
	ListenerRedis    = "redis"
)

// Config controls the audit sink.
type Config struct {
	Enabled       bool     `mapstructure:"enabled"`
	Listeners     []string `mapstructure:"listeners"`
	QueueSize     int      `mapstructure:"queue-size"`
	RingSize      int      `mapstructure:"ring-size"`
	RetentionDays int      `mapstructure:"retention-days"`

	KafkaBrokers []string `mapstructure:"kafka-brokers"`
	KafkaTopic   string   `mapstructure:"kafka-topic"`

	RedisAddr   string `mapstructure:"redis-addr"`
	RedisStream string `mapstructure:"redis-stream"`
	RedisMaxLen int64  `mapstructure:"redis-max-len"`
}

// DefaultConfig returns the default configuration: console output plus
// the in-memory ring that backs /audit-logs.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Listeners:     []string{ListenerConsole},
		QueueSize:     DefaultQueueSize,
		RingSize:      DefaultRingSize,
		RetentionDays: 90,
		KafkaTopic:    "ns4kafka.audit",
		RedisStream:   "ns4kafka:audit",
		RedisMaxLen:   100000,
	}
}

// ConfigFromEnv loads config from environment variables on top of base.
// NS4KAFKA_AUDIT_ENABLED, NS4KAFKA_AUDIT_LISTENERS (comma separated),
// NS4KAFKA_AUDIT_QUEUE_SIZE, NS4KAFKA_AUDIT_RING_SIZE,
// NS4KAFKA_AUDIT_RETENTION_DAYS, NS4KAFKA_AUDIT_KAFKA_BROKERS,
// NS4KAFKA_AUDIT_KAFKA_TOPIC, NS4KAFKA_AUDIT_REDIS_ADDR,
// NS4KAFKA_AUDIT_REDIS_STREAM
func ConfigFromEnv(base Config) Config {
	cfg := base

	if v := os.Getenv("NS4KAFKA_AUDIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_LISTENERS"); v != "" {
		cfg.Listeners = splitList(v)
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueSize = n
		}
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_RING_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RingSize = n
		}
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("NS4KAFKA_AUDIT_REDIS_STREAM"); v != "" {
		cfg.RedisStream = v
	}

	return cfg
}

// Has reports whether name is among the configured listeners.
func (c Config) Has(name string) bool {
	for _, l := range c.Listeners {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
