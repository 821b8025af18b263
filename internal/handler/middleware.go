package handler

import (
	"strings"
	"time"

	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/service"
	"cardstock/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const principalKey = "principal"

// LoggerMiddleware 访问日志
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		entry := logger.WithModule("http").WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
			"method":  c.Request.Method,
			"path":    path,
		})
		if p := principal(c); p != nil {
			entry = entry.WithField("user_id", p.User.ID)
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("请求完成")
			return
		}
		entry.Info("请求完成")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithModule("http").WithFields(logrus.Fields{
					"panic":  err,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				}).Error("请求处理 panic")
				c.Abort()
				response.ServerError(c, "服务器内部错误")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件，前端通过 Authorization 头携带会话 token
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          12 * time.Hour,
	})
}

// bearerToken 支持 "Authorization: Bearer <token>" 和 X-Session-Token
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return strings.TrimSpace(h)
	}
	return strings.TrimSpace(c.GetHeader("X-Session-Token"))
}

// AuthMiddleware 校验会话 token，通过后把当前用户放进上下文
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			c.Abort()
			fail(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequirePermission 当前用户角色必须包含该权限，admin 角色全部放行
func RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		if p == nil {
			c.Abort()
			fail(c, service.ErrUnauthenticated)
			return
		}
		if !p.User.HasPermission(name) {
			c.Abort()
			fail(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) *service.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*service.Principal)
	return p
}
