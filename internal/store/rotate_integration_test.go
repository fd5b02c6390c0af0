//go:build integration
// +build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMongoSessionsConcurrentRotate(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI must be set")
	}
	ctx := context.Background()

	client, err := NewMongoClient(ctx, uri)
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("watertracker_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	require.NoError(t, EnsureIndexes(ctx, db))

	assertSingleRotation(t, NewMongoSessionStore(db))
}

func TestPostgresSessionsConcurrentRotate(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN must be set")
	}
	ctx := context.Background()

	pool, err := NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	assertSingleRotation(t, NewPostgresSessionStore(pool))
}

func TestRedisSessionsConcurrentRotate(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR must be set")
	}

	rdb, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	assertSingleRotation(t, NewRedisSessionStore(rdb))
}
