//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

func TestGormRepository_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ns4kafka"),
		tcpostgres.WithUsername("ns4kafka"),
		tcpostgres.WithPassword("ns4kafka"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(DBConfig{Backend: BackendPostgres, DSN: dsn, LogLevel: "silent"})
	require.NoError(t, err)

	repo := NewGormRepository(db)
	require.NoError(t, repo.AutoMigrate())

	r, err := resource.New(resource.KindTopic, "team-a", "team-a.orders", resource.TopicSpec{Partitions: 3, ReplicationFactor: 3})
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, r))
	require.NoError(t, repo.Put(ctx, r))

	got, err := repo.Get(ctx, r.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, resource.SpecEqual(r.Spec, got.Spec))

	deleted, err := repo.Delete(ctx, r.Key())
	require.NoError(t, err)
	assert.True(t, deleted)
}
