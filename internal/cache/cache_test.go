package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/intelliparse/console/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc
}

// --- Redis ---

func TestRedis_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestRedis_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.JobSnapshotKey("job_" + uuid.NewString()[:8])

	require.NoError(t, rc.Set(ctx, key, []byte(`{"status":"completed"}`), 10*time.Second))

	val, found, err := rc.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"status":"completed"}`), val)

	require.NoError(t, rc.Delete(ctx, key))
	_, found, err = rc.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestRedis_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second))

	_, found, err := rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.True(t, found)

	time.Sleep(1500 * time.Millisecond)

	_, found, err = rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_IncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("ana-" + uuid.NewString()[:8])

	for want := int64(1); want <= 3; want++ {
		val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

func TestRedis_IncrWithExpiry_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("expiry-" + uuid.NewString()[:8])

	_, err := rc.IncrWithExpiry(ctx, key, 1*time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	// After expiry, should start from 1 again
	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

// --- Memory ---

func TestMemory_SetGetDelete(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))

	val, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, mc.Delete(ctx, "k"))
	_, found, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, mc.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, _, _ := mc.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), out)
	out[0] = 'y'

	again, _, _ := mc.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_TTLExpiry(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_IncrWithExpiry(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		val, err := mc.IncrWithExpiry(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

func TestMemory_IncrWithExpiry_Expires(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	_, err := mc.IncrWithExpiry(ctx, "counter", 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	val, err := mc.IncrWithExpiry(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

func TestMemory_JanitorEvictsExpiredEntries(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, mc.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Millisecond))
	}
	require.NoError(t, mc.Set(ctx, "kept", []byte("v"), time.Minute))

	require.Eventually(t, func() bool { return mc.Len() == 1 }, 2*time.Second, 10*time.Millisecond,
		"expired entries should be evicted without being read")

	_, found, err := mc.Get(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemory_IncrWithExpiry_KeepsWindow(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	ctx := context.Background()

	_, err := mc.IncrWithExpiry(ctx, "counter", 50*time.Millisecond)
	require.NoError(t, err)
	val, err := mc.IncrWithExpiry(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	require.Eventually(t, func() bool {
		_, found, _ := mc.Get(ctx, "counter")
		return !found
	}, 2*time.Second, 10*time.Millisecond, "second increment must not extend the window")
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	mc := cache.NewMemoryCache()
	require.NoError(t, mc.Close())
	require.NoError(t, mc.Close())
}

// --- Cache Key Builders ---

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "console:session", cache.SessionKey())
	assert.Equal(t, "job:job_abc", cache.JobSnapshotKey("job_abc"))
	assert.Equal(t, "ratelimit:ana@example.com", cache.RateLimitKey("ana@example.com"))
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	keys := map[string]bool{
		cache.SessionKey():             true,
		cache.JobSnapshotKey("x"):      true,
		cache.RateLimitKey("x"):        true,
	}
	assert.Len(t, keys, 3, "all keys should be unique")
}
