// Package ha lets several ns4kafka replicas share one database: a lock
// serializes schema migrations at startup and a Kubernetes Lease elects the
// replica that runs the singleton background loops.
package ha

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the high-availability settings.
type Config struct {
	// LeaderElection turns on Lease-based election. When off, every replica
	// considers itself leader.
	LeaderElection bool          `mapstructure:"leader-election"`
	LeaseName      string        `mapstructure:"lease-name"`
	LeaseNamespace string        `mapstructure:"lease-namespace"`
	LeaseDuration  time.Duration `mapstructure:"lease-duration"`
	RenewDeadline  time.Duration `mapstructure:"renew-deadline"`
	RetryPeriod    time.Duration `mapstructure:"retry-period"`

	MigrationLock bool   `mapstructure:"migration-lock"`
	LockName      string `mapstructure:"lock-name"`

	// Identity names this replica in the Lease and in the lock row.
	Identity string `mapstructure:"identity"`
}

// DefaultConfig returns single-replica defaults.
func DefaultConfig() Config {
	ns := os.Getenv("POD_NAMESPACE")
	if ns == "" {
		ns = "ns4kafka"
	}
	return Config{
		LeaseName:      "ns4kafka-leader",
		LeaseNamespace: ns,
		LeaseDuration:  15 * time.Second,
		RenewDeadline:  10 * time.Second,
		RetryPeriod:    2 * time.Second,
		MigrationLock:  true,
		LockName:       "ns4kafka-migration",
		Identity:       identity(),
	}
}

// ConfigFromEnv overlays NS4KAFKA_LEADER_* and NS4KAFKA_MIGRATION_LOCK
// variables on base. Durations are in seconds.
func ConfigFromEnv(base Config) Config {
	cfg := base
	if v, ok := boolEnv("NS4KAFKA_LEADER_ELECTION_ENABLED"); ok {
		cfg.LeaderElection = v
	}
	if v := os.Getenv("NS4KAFKA_LEADER_LEASE_NAME"); v != "" {
		cfg.LeaseName = v
	}
	if v := os.Getenv("NS4KAFKA_LEADER_LEASE_NAMESPACE"); v != "" {
		cfg.LeaseNamespace = v
	}
	if d, ok := secondsEnv("NS4KAFKA_LEADER_LEASE_DURATION"); ok {
		cfg.LeaseDuration = d
	}
	if d, ok := secondsEnv("NS4KAFKA_LEADER_RENEW_DEADLINE"); ok {
		cfg.RenewDeadline = d
	}
	if d, ok := secondsEnv("NS4KAFKA_LEADER_RETRY_PERIOD"); ok {
		cfg.RetryPeriod = d
	}
	if v, ok := boolEnv("NS4KAFKA_MIGRATION_LOCK_ENABLED"); ok {
		cfg.MigrationLock = v
	}
	if v := os.Getenv("POD_NAME"); v != "" {
		cfg.Identity = v
	}
	return cfg
}

func boolEnv(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true") || v == "1", true
}

func secondsEnv(name string) (time.Duration, bool) {
	secs, err := strconv.Atoi(os.Getenv(name))
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func identity() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
