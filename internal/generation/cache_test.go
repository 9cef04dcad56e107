// internal/generation/cache_test.go
package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeforge/internal/common/database"
	"routeforge/internal/common/logger"
	"routeforge/internal/export"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestCache(t *testing.T) (*ExportCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewExportCache(&database.RedisClient{Client: client}, time.Minute, logger.NewNoOpLogger())
	return cache, s
}

// ==========================
// Round Trips
// ==========================

func TestExportCache_RoundTrip(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()

	assert.Nil(t, cache.Get(ctx, "gen-1", export.FormatGPX))

	artifact := []byte("<gpx>cached</gpx>")
	cache.Put(ctx, "gen-1", export.FormatGPX, artifact)

	assert.Equal(t, artifact, cache.Get(ctx, "gen-1", export.FormatGPX))
	assert.True(t, s.Exists("routeforge:export:gen-1:gpx"))

	// Formats are cached independently.
	assert.Nil(t, cache.Get(ctx, "gen-1", export.FormatKML))
}

func TestExportCache_AppliesTTL(t *testing.T) {
	cache, s := newTestCache(t)

	cache.Put(context.Background(), "gen-1", export.FormatKML, []byte("<kml/>"))

	assert.Equal(t, time.Minute, s.TTL("routeforge:export:gen-1:kml"))
}

func TestExportCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "gen-1", export.FormatGPX, []byte("a"))
	cache.Put(ctx, "gen-1", export.FormatKML, []byte("b"))
	cache.Put(ctx, "gen-2", export.FormatGPX, []byte("c"))

	cache.Invalidate(ctx, "gen-1")

	assert.Nil(t, cache.Get(ctx, "gen-1", export.FormatGPX))
	assert.Nil(t, cache.Get(ctx, "gen-1", export.FormatKML))
	assert.Equal(t, []byte("c"), cache.Get(ctx, "gen-2", export.FormatGPX))
}

// ==========================
// Failure Degradation
// ==========================

func TestExportCache_DegradesOnRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewExportCache(&database.RedisClient{Client: client}, time.Minute, logger.NewNoOpLogger())
	ctx := context.Background()

	down := errors.New("connection refused")
	mock.ExpectGet("routeforge:export:gen-1:gpx").SetErr(down)
	mock.ExpectSet("routeforge:export:gen-1:gpx", []byte("artifact"), time.Minute).SetErr(down)
	mock.ExpectDel("routeforge:export:gen-1:gpx", "routeforge:export:gen-1:kml").SetErr(down)

	// Every operation swallows the failure; callers just re-render.
	assert.Nil(t, cache.Get(ctx, "gen-1", export.FormatGPX))
	cache.Put(ctx, "gen-1", export.FormatGPX, []byte("artifact"))
	cache.Invalidate(ctx, "gen-1")

	require.NoError(t, mock.ExpectationsWereMet())
}
