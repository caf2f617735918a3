package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/recruit-pipeline-api/internal/middleware"
)

// actorOrCaller keeps an explicit actor and otherwise falls back to the
// authenticated caller.
func actorOrCaller(c *gin.Context, actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	if claims := middleware.Claims(c); claims != nil {
		return claims.UserID
	}
	return ""
}
