package middleware

import (
	"github.com/gin-gonic/gin"

	"reel/internal/pkg/ctxutil"
	"reel/internal/pkg/id"
)

// RequestIDHeader 请求 ID 的传递头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求 ID 中间件
// 透传上游的 X-Request-ID，没有就生成一个；写回响应头并注入 context 供日志串联
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
