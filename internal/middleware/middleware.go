package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/model"
	"forum_go/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

const (
	viewerKey       = "viewer"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// LoggerMiddleware 请求日志中间件，同时记录请求耗时指标
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(latency.Seconds())

		logger.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.String("query", query),
			logger.Int("status", status),
			logger.Duration("latency", latency),
			logger.String("client_ip", c.ClientIP()),
			logger.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// RequestIDMiddleware 透传或生成 X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RecoveryMiddleware 异常恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					logger.String("error", fmt.Sprintf("%v", err)),
					logger.String("path", c.Request.URL.Path))
				response.InternalError(c, "internal server error")
			}
		}()
		c.Next()
	}
}

// TimeoutMiddleware 为请求上下文设置截止时间，下游查询随之取消
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, response.Response{
				Code: http.StatusGatewayTimeout,
				Msg:  "request timeout",
			})
		}
	}
}

// CORSMiddleware 跨域中间件 (从配置文件读取)
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	// 如果未启用 CORS，直接跳过
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return func(c *gin.Context) {
		handler.HandlerFunc(c.Writer, c.Request)

		// 预检请求到此为止
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// UserClaims 自定义 JWT Claims
type UserClaims struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Role     int    `json:"role"`
	jwt.RegisteredClaims
}

// Viewer 转换为访问者，role >= 1 为版主
func (c *UserClaims) Viewer() *model.Viewer {
	return &model.Viewer{
		ID:          c.UID,
		Username:    c.Username,
		CanModerate: c.Role >= 1,
	}
}

// ParseJWT 解析并校验 HS256 token
func ParseJWT(tokenString, secret string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UID == 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", true, fmt.Errorf("invalid token format: missing 'Bearer ' prefix")
	}
	return strings.TrimPrefix(header, "Bearer "), true, nil
}

// JWTMW 必须登录
func JWTMW(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, err := bearerToken(c)
		if !present {
			response.Unauthorized(c, "unauthorized")
			return
		}
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}

		claims, err := ParseJWT(token, cfg.Secret)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(viewerKey, claims.Viewer())
		c.Next()
	}
}

// OptionalJWTMW 无 token 按匿名处理；携带了无效 token 返回 401
func OptionalJWTMW(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, err := bearerToken(c)
		if !present {
			c.Next()
			return
		}
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}

		claims, err := ParseJWT(token, cfg.Secret)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(viewerKey, claims.Viewer())
		c.Next()
	}
}

// ViewerFrom 当前访问者，匿名返回 nil
func ViewerFrom(c *gin.Context) *model.Viewer {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	viewer, _ := v.(*model.Viewer)
	return viewer
}

// RequireModerator 需在 JWTMW 之后使用
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := ViewerFrom(c)
		if viewer == nil || !viewer.CanModerate {
			response.Forbidden(c, "moderator role required")
			return
		}
		c.Next()
	}
}
