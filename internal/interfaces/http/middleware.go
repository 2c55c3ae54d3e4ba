package http

import (
	"strings"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/monitoring"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/http/handlers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ginLogger Gin日志中间件, 同时记录请求指标
func ginLogger(logger *zap.Logger, monitor *monitoring.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		action := c.Query("action")

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if monitor != nil {
			monitor.IncRequestTotal()
			monitor.RecordRequestLatency(latency)
			if statusCode >= 500 {
				monitor.IncRequestFailed()
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if action != "" {
			fields = append(fields, zap.String("action", action))
		}
		if p := handlers.PrincipalFrom(c); !p.IsAnonymous() {
			fields = append(fields, zap.Uint("user_id", p.ID()))
		}
		logger.Info("HTTP request", fields...)
	}
}

// authenticate resolves the session cookie or bearer token. Requests
// without a valid token continue anonymously; handlers decide whether
// that is allowed.
func authenticate(accounts *usecase.AccountService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if accounts == nil {
			c.Next()
			return
		}
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}
		if token != "" {
			if p, err := accounts.Authenticate(token); err == nil {
				handlers.SetPrincipal(c, p)
			}
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
