// Package config loads the server configuration from a YAML file and
// NS4KAFKA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/michelin/ns4kafka-go/pkg/audit"
	"github.com/michelin/ns4kafka-go/pkg/cache"
	"github.com/michelin/ns4kafka-go/pkg/ha"
	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/proxy"
	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// EnvPrefix prefixes every environment override, e.g.
// NS4KAFKA_SERVER_LISTEN for server.listen.
const EnvPrefix = "NS4KAFKA"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Security SecurityConfig        `mapstructure:"security"`
	Clusters []proxy.ClusterConfig `mapstructure:"clusters"`
	Store    store.DBConfig        `mapstructure:"store"`
	Audit    audit.Config          `mapstructure:"audit"`
	Quota    QuotaConfig           `mapstructure:"quota"`
	Cache    cache.Config          `mapstructure:"cache"`
	HA       ha.Config             `mapstructure:"ha"`
}

// ServerConfig holds the listener and logging settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	// SelfURL is how this instance reaches its own proxy prefixes.
	SelfURL     string   `mapstructure:"self-url"`
	LogFormat   string   `mapstructure:"log-format"`
	LogLevel    string   `mapstructure:"log-level"`
	CORSOrigins []string `mapstructure:"cors-origins"`
}

// SecurityConfig selects the authentication strategies. Strategies are
// tried in order: local users, JWT, then OAuth.
type SecurityConfig struct {
	AdminGroups []string              `mapstructure:"admin-groups"`
	LocalUsers  []principal.LocalUser `mapstructure:"local-users"`

	JWTEnabled bool                `mapstructure:"jwt-enabled"`
	JWT        principal.JWTConfig `mapstructure:"jwt"`

	OAuth principal.OAuthConfig `mapstructure:"oauth"`

	// TrustedHeaders accepts X-Remote-User / X-Remote-Group from a
	// fronting proxy. Only enable behind one.
	TrustedHeaders bool `mapstructure:"trusted-headers"`
}

// QuotaConfig holds the quota service settings.
type QuotaConfig struct {
	// Defaults apply to namespaces without a ResourceQuota.
	Defaults resource.ResourceQuotaSpec `mapstructure:"defaults"`
	// DefaultRetentionBytes is the per-partition disk estimate for topics
	// without a finite retention.bytes.
	DefaultRetentionBytes int64 `mapstructure:"default-retention-bytes"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:    ":8080",
			SelfURL:   "http://localhost:8080",
			LogFormat: "text",
			LogLevel:  "info",
		},
		Security: SecurityConfig{
			AdminGroups: []string{"_"},
		},
		Store: store.DefaultDBConfig(),
		Audit: audit.DefaultConfig(),
		Quota: QuotaConfig{DefaultRetentionBytes: quota.DefaultRetentionBytes},
		Cache: cache.DefaultConfig(),
		HA:    ha.DefaultConfig(),
	}
}

// Load reads path (optional) and the environment on top of Default.
// Subsystem variables (NS4KAFKA_AUDIT_*, NS4KAFKA_CACHE_*, NS4KAFKA_LEADER_*)
// are applied last.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Audit = audit.ConfigFromEnv(cfg.Audit)
	cfg.Cache = cache.ConfigFromEnv(cfg.Cache)
	cfg.HA = ha.ConfigFromEnv(cfg.HA)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers the scalar keys so AutomaticEnv can override them
// without a config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.self-url", cfg.Server.SelfURL)
	v.SetDefault("server.log-format", cfg.Server.LogFormat)
	v.SetDefault("server.log-level", cfg.Server.LogLevel)
	v.SetDefault("server.cors-origins", cfg.Server.CORSOrigins)

	v.SetDefault("security.admin-groups", cfg.Security.AdminGroups)
	v.SetDefault("security.jwt-enabled", false)
	v.SetDefault("security.jwt.publicKeyPath", "")
	v.SetDefault("security.jwt.issuer", "")
	v.SetDefault("security.jwt.audience", "")
	v.SetDefault("security.oauth.baseUrl", "")
	v.SetDefault("security.trusted-headers", false)

	v.SetDefault("store.backend", string(cfg.Store.Backend))
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("store.logLevel", cfg.Store.LogLevel)

	v.SetDefault("quota.default-retention-bytes", cfg.Quota.DefaultRetentionBytes)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	switch c.Server.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("server.log-format %q must be text or json", c.Server.LogFormat))
	}
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendSQLite, store.BackendPostgres, store.BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not supported", c.Store.Backend))
	}
	if len(c.Security.AdminGroups) == 0 {
		errs = append(errs, errors.New("security.admin-groups must name at least one group"))
	}
	for _, msg := range quota.ValidateLimits(c.Quota.Defaults) {
		errs = append(errs, fmt.Errorf("quota.defaults: %s", msg))
	}
	if _, err := proxy.NewRegistry(c.Clusters); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
