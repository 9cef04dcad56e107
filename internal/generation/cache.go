// internal/generation/cache.go
package generation

import (
	"context"
	"fmt"
	"time"

	"routeforge/internal/common/database"
	"routeforge/internal/common/logger"
	"routeforge/internal/export"

	"github.com/redis/go-redis/v9"
)

// ExportCache keeps rendered artifacts keyed by record and format so repeat
// downloads skip regeneration. Cache failures degrade to rendering again;
// they are logged, never returned.
type ExportCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewExportCache(rdb *database.RedisClient, ttl time.Duration, log logger.Logger) *ExportCache {
	return &ExportCache{
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "export-cache"}),
	}
}

func exportKey(recordID string, format export.Format) string {
	return fmt.Sprintf("routeforge:export:%s:%s", recordID, format)
}

// Get returns the cached artifact, or nil on a miss or cache failure.
func (c *ExportCache) Get(ctx context.Context, recordID string, format export.Format) []byte {
	val, err := c.redis.Get(ctx, exportKey(recordID, format))
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("export cache read failed", map[string]interface{}{
				"recordId": recordID,
				"format":   string(format),
				"error":    err.Error(),
			})
		}
		return nil
	}
	return []byte(val)
}

// Put stores the artifact under the configured TTL.
func (c *ExportCache) Put(ctx context.Context, recordID string, format export.Format, artifact []byte) {
	if err := c.redis.Set(ctx, exportKey(recordID, format), artifact, c.ttl); err != nil {
		c.logger.Warn("export cache write failed", map[string]interface{}{
			"recordId": recordID,
			"format":   string(format),
			"error":    err.Error(),
		})
	}
}

// Invalidate drops every cached artifact for the record.
func (c *ExportCache) Invalidate(ctx context.Context, recordID string) {
	formats := export.Formats()
	keys := make([]string, len(formats))
	for i, f := range formats {
		keys[i] = exportKey(recordID, f)
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		c.logger.WithError(err).Warn("export cache invalidation failed", map[string]interface{}{
			"recordId": recordID,
		})
	}
}
