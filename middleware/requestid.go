package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"
	// ContextRequestID gin 上下文中请求 ID 的键
	ContextRequestID = "requestID"
)

// RequestID 为每个请求分配 ID；客户端传入合法 UUID 时沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID 获取当前请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}

// Logger 请求日志，带上请求 ID 与用户 ID
func Logger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		requestID, _ := p.Keys[ContextRequestID].(string)
		userID, _ := p.Keys[ContextUserID].(uint)
		return fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %s | req=%s uid=%d %s\n",
			p.TimeStamp.Format(time.RFC3339),
			p.StatusCode,
			p.Latency,
			p.ClientIP,
			p.Method,
			p.Path,
			requestID,
			userID,
			p.ErrorMessage,
		)
	})
}
