package mapping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/factwise/schema-mapper/internal/pkg/logger"
	"github.com/factwise/schema-mapper/internal/transform"
)

// PreviewCache keeps fully transformed datasets in Redis so paging through
// a preview does not rerun the pipeline on every request. A nil cache (or
// nil client) is a valid no-op cache, so the service works without Redis.
type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreviewCache wraps a Redis client. client may be nil.
func NewPreviewCache(client *redis.Client, ttl time.Duration) *PreviewCache {
	return &PreviewCache{client: client, ttl: ttl}
}

func previewKey(sessionID string) string {
	return "preview:" + sessionID
}

// Get returns the cached dataset for a session, or ok=false on any miss
// or cache error. Cache failures are never surfaced to callers.
func (c *PreviewCache) Get(ctx context.Context, sessionID string) (*transform.Dataset, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, previewKey(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("preview cache get failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}

	var dataset transform.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		logger.Warn("preview cache entry corrupt", "session_id", sessionID, "error", err)
		return nil, false
	}
	return &dataset, true
}

// Set stores a dataset for a session. Failures are logged and dropped.
func (c *PreviewCache) Set(ctx context.Context, sessionID string, dataset *transform.Dataset) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(dataset)
	if err != nil {
		logger.Warn("preview cache marshal failed", "session_id", sessionID, "error", err)
		return
	}
	if err := c.client.Set(ctx, previewKey(sessionID), data, c.ttl).Err(); err != nil {
		logger.Warn("preview cache set failed", "session_id", sessionID, "error", err)
	}
}

// Invalidate drops the cached dataset for a session. Called on every
// session mutation so previews never show stale state.
func (c *PreviewCache) Invalidate(ctx context.Context, sessionID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, previewKey(sessionID)).Err(); err != nil {
		logger.Warn("preview cache invalidate failed", "session_id", sessionID, "error", err)
	}
}
