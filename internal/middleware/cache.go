package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHeader     = "X-Cache"
)

// SetCacheHit records whether the response body came from the timetable cache,
// both as an X-Cache header and in the response meta.
func SetCacheHit(c *gin.Context, hit bool) {
	status := "MISS"
	if hit {
		status = "HIT"
	}
	c.Header(cacheHeader, status)
	meta := ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta["cache_hit"] = hit
}

// ExtractMeta returns the metadata collected for the current response.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}
