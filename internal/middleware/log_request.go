package middleware

import (
	"github.com/gin-gonic/gin"

	"medicare-server/internal/utils"
)

func LogRequest() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		utils.LogMessageWithFields(ctx, "info", "Request received: "+ctx.Request.Method+" "+ctx.Request.URL.Path)
		ctx.Next()
	}
}
