package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend selects where resources are kept.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
)

// DBConfig configures the database connection.
type DBConfig struct {
	Backend Backend `mapstructure:"backend"`
	DSN     string  `mapstructure:"dsn"`
	// LogLevel is one of silent, error, warn, info.
	LogLevel string `mapstructure:"logLevel"`
}

// DefaultDBConfig keeps everything in process memory.
func DefaultDBConfig() DBConfig {
	return DBConfig{Backend: BackendMemory, LogLevel: "warn"}
}

// Open connects to the configured SQL backend. It must not be called for
// BackendMemory.
func Open(cfg DBConfig) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}

	var dialector gorm.Dialector
	switch cfg.Backend {
	case BackendSQLite:
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case BackendPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for %s", cfg.Backend)
		}
		dialector = postgres.Open(dsn)
	case BackendMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for %s", cfg.Backend)
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database backend %q (expected sqlite, postgres or mysql)", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Backend, err)
	}
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
