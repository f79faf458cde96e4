package middleware

import (
	"context"
	"fmt"
	"time"

	"forum_go/internal/core/logger"
	"forum_go/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter Redis 固定窗口计数器，多实例共享配额
type RateLimiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter limit 为每个窗口内的请求数，limit <= 0 表示不限流
func NewRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *RateLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *RateLimiter) key(ip string) string {
	bucket := l.now().Unix() / int64(l.window/time.Second)
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, ip, bucket)
}

// Allow INCR + EXPIRE 在同一事务中执行
func (l *RateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	key := l.key(ip)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// RateLimitMW 频率限制中间件；Redis 不可用时放行
func RateLimitMW(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		ok, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn("rate limiter unavailable", logger.String("ip", ip), logger.ErrorField(err))
			c.Next()
			return
		}
		if !ok {
			logger.Warn("rate limit exceeded",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path))
			response.TooManyRequests(c)
			return
		}

		c.Next()
	}
}
