package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/recruit-pipeline-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	startedAtKey    = "response_started_at"
)

// ResponseMeta starts the clock for processing_time_ms and seeds the meta
// map that handlers attach to their envelope.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	Meta(c)["cache_hit"] = hit
}

// Meta returns the request's metadata with request_id and the elapsed
// processing time filled in. It never returns nil.
func Meta(c *gin.Context) map[string]interface{} {
	meta, _ := c.Value(responseMetaKey).(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	if started, ok := c.Value(startedAtKey).(time.Time); ok {
		meta["processing_time_ms"] = time.Since(started).Milliseconds()
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}
