package ha

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes schema migrations across replicas.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a lock for the database dialect: a Postgres
// advisory lock, or a lock row for SQLite and MySQL. A nil db or a disabled
// lock runs fn directly.
func NewMigrationLocker(db *gorm.DB, cfg Config) (MigrationLocker, error) {
	if db == nil || !cfg.MigrationLock {
		return unlocked{}, nil
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{db: db, key: int64(crc32.ChecksumIEEE([]byte(cfg.LockName)))}, nil
	}
	if err := db.AutoMigrate(&lockRow{}); err != nil {
		return nil, fmt.Errorf("create migration lock table: %w", err)
	}
	return &rowLock{
		db:       db,
		name:     cfg.LockName,
		owner:    cfg.Identity,
		attempts: 30,
		interval: time.Second,
		staleAge: 5 * time.Minute,
	}, nil
}

type unlocked struct{}

func (unlocked) WithLock(_ context.Context, fn func() error) error { return fn() }

type advisoryLock struct {
	db  *gorm.DB
	key int64
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	defer l.db.Exec("SELECT pg_advisory_unlock(?)", l.key)
	return fn()
}

type lockRow struct {
	Name     string    `gorm:"primaryKey;column:name"`
	Owner    string    `gorm:"column:owner"`
	LockedAt time.Time `gorm:"column:locked_at"`
}

func (lockRow) TableName() string { return "ns4kafka_migration_lock" }

// rowLock holds the lock while its row exists. Rows older than staleAge are
// assumed to belong to a crashed replica and are removed.
type rowLock struct {
	db       *gorm.DB
	name     string
	owner    string
	attempts int
	interval time.Duration
	staleAge time.Duration
}

func (l *rowLock) WithLock(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		l.db.WithContext(ctx).
			Where("name = ? AND locked_at < ?", l.name, time.Now().Add(-l.staleAge)).
			Delete(&lockRow{})

		lastErr = l.db.WithContext(ctx).Create(&lockRow{Name: l.name, Owner: l.owner, LockedAt: time.Now()}).Error
		if lastErr == nil {
			defer l.db.Where("name = ?", l.name).Delete(&lockRow{})
			return fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
	return fmt.Errorf("acquire migration lock %s after %d attempts: %w", l.name, l.attempts, lastErr)
}
