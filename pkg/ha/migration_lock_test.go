package ha

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return db
}

func lockCfg() Config {
	return Config{MigrationLock: true, LockName: "ns4kafka-migration", Identity: "test"}
}

func TestMigrationLocker_Unlocked(t *testing.T) {
	for name, build := range map[string]func() (MigrationLocker, error){
		"nil db":   func() (MigrationLocker, error) { return NewMigrationLocker(nil, lockCfg()) },
		"disabled": func() (MigrationLocker, error) { return NewMigrationLocker(newTestDB(t), Config{}) },
	} {
		t.Run(name, func(t *testing.T) {
			l, err := build()
			if err != nil {
				t.Fatal(err)
			}
			called := false
			if err := l.WithLock(context.Background(), func() error { called = true; return nil }); err != nil {
				t.Fatal(err)
			}
			if !called {
				t.Error("fn was not called")
			}
		})
	}
}

func TestRowLock_ReleasesOnError(t *testing.T) {
	db := newTestDB(t)
	l, err := NewMigrationLocker(db, lockCfg())
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("migration failed")
	if err := l.WithLock(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	var count int64
	db.Model(&lockRow{}).Count(&count)
	if count != 0 {
		t.Errorf("lock row not released, %d rows left", count)
	}
}

func TestRowLock_Serializes(t *testing.T) {
	db := newTestDB(t)
	l, err := NewMigrationLocker(db, lockCfg())
	if err != nil {
		t.Fatal(err)
	}
	l.(*rowLock).interval = 10 * time.Millisecond
	l.(*rowLock).attempts = 500

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), func() error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if maxInside.Load() != 1 {
		t.Errorf("%d holders at once", maxInside.Load())
	}
}

func TestRowLock_ClearsStaleLock(t *testing.T) {
	db := newTestDB(t)
	l, err := NewMigrationLocker(db, lockCfg())
	if err != nil {
		t.Fatal(err)
	}
	stale := lockRow{Name: "ns4kafka-migration", Owner: "crashed", LockedAt: time.Now().Add(-time.Hour)}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatal(err)
	}

	called := false
	if err := l.WithLock(context.Background(), func() error { called = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("stale lock was not cleared")
	}
}

func TestRowLock_GivesUp(t *testing.T) {
	db := newTestDB(t)
	l, err := NewMigrationLocker(db, lockCfg())
	if err != nil {
		t.Fatal(err)
	}
	rl := l.(*rowLock)
	rl.attempts = 2
	rl.interval = time.Millisecond
	if err := db.Create(&lockRow{Name: rl.name, Owner: "other", LockedAt: time.Now()}).Error; err != nil {
		t.Fatal(err)
	}

	err = l.WithLock(context.Background(), func() error {
		t.Error("fn must not run without the lock")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rl.attempts = 10
	rl.interval = time.Hour
	if err := l.WithLock(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
