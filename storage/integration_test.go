package storage

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-ingest/models"
)

// These tests need live services and skip when they are not reachable.

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client, err := NewRedisClient(context.Background(), "localhost:6379", 0)
	if err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLocker(t *testing.T) {
	client := redisClient(t)
	locker := NewRedisLocker(client, "test:catalog:lock", 5*time.Second)
	key := uuid.NewString()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, key)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var acquired int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock2, err := locker.Lock(ctx, key)
		if assert.NoError(t, err) {
			atomic.StoreInt32(&acquired, 1)
			unlock2()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&acquired))
	unlock()

	select {
	case <-done:
		assert.Equal(t, int32(1), atomic.LoadInt32(&acquired))
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestRedisReportPublisher(t *testing.T) {
	client := redisClient(t)
	stream := "test:catalog:reports:" + uuid.NewString()
	ctx := context.Background()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	pub := NewRedisReportPublisher(client, stream, 100)
	report := models.VendorReport{
		Vendor: "Acme",
		Items:  3,
		Result: models.IngestResult{Succeeded: 3, Created: 3},
	}
	require.NoError(t, pub.Publish(ctx, report))

	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Acme", msgs[0].Values["vendor"])

	var decoded models.VendorReport
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["report"].(string)), &decoded))
	assert.Equal(t, 3, decoded.Result.Succeeded)
}

func TestMemcacheBlocklist(t *testing.T) {
	probe := memcache.New("localhost:11211")
	if _, err := probe.Get("probe"); err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	bl := NewMemcacheBlocklist("localhost:11211", "test_catalog_block")
	vendor := "Acme Appliances " + uuid.NewString()[:8]

	blocked, err := bl.IsBlocked(vendor)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, bl.Block(vendor, time.Minute))
	blocked, err = bl.IsBlocked(vendor)
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, bl.Unblock(vendor))
	require.NoError(t, bl.Unblock(vendor))
	blocked, err = bl.IsBlocked(vendor)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlocklistKeyIsMemcacheSafe(t *testing.T) {
	bl := NewMemcacheBlocklist("localhost:11211", "block")
	assert.Equal(t, "block:acme_appliances_gmbh", bl.key("  Acme  Appliances\tGmbH "))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set, skipping test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	vendor, err := store.CreateVendor(ctx, models.Vendor{Name: "Acme " + uuid.NewString()})
	require.NoError(t, err)

	found, err := store.FindVendor(ctx, vendor.Name)
	require.NoError(t, err)
	assert.Equal(t, vendor.ID, found.ID)

	_, err = store.FindVendor(ctx, "missing "+uuid.NewString())
	assert.ErrorIs(t, err, ErrVendorNotFound)

	first, err := store.CreateProduct(ctx, vendor.ID, models.ProductFields{
		Title: "Kettle", Price: decimal.RequireFromString("19.99"),
	})
	require.NoError(t, err)
	second, err := store.CreateProduct(ctx, vendor.ID, models.ProductFields{
		Title: "Kettle", Price: decimal.RequireFromString("18.99"), Category: "Kitchen",
	})
	require.NoError(t, err)

	_, err = store.UpdateProduct(ctx, first.ID, models.ProductFields{
		Title: "Kettle", Price: decimal.RequireFromString("17.00"),
	})
	require.NoError(t, err)

	rows, err := store.FindProducts(ctx, "Kettle", vendor.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID, "most recently updated first")
	assert.True(t, rows[0].Price.Equal(decimal.RequireFromString("17")))

	require.NoError(t, store.DeleteProducts(ctx, []string{second.ID}))
	n, err := store.CountProducts(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
