package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizePath strips markup from the request path before routing. Path
// parameters (medicine ids, reset tokens) are read downstream via ctx.Param,
// so they pass through the same policy as body fields.
func SanitizePath() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()
	return func(ctx *gin.Context) {
		ctx.Request.URL.Path = policy.Sanitize(ctx.Request.URL.Path)
		ctx.Next()
	}
}
