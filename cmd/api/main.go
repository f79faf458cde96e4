package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"forum_go/internal/api/mgt"
	v1 "forum_go/internal/api/v1"
	"forum_go/internal/core/config"
	"forum_go/internal/core/database"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/core/mq"
	"forum_go/internal/core/runtime"
	"forum_go/internal/core/snowflake"
	"forum_go/internal/middleware"
	"forum_go/internal/pkg/pool"
	"forum_go/internal/repository"
	"forum_go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// L2 回填进程内缓存的上限，多实例下 L1 最多滞后这么久
const l1BackfillTTL = 10 * time.Second

func main() {
	// 1. 加载配置 (Viper)
	if err := config.Init("."); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 2. 初始化 Logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting forum_go...")

	// 3. 初始化 MySQL
	if err := database.Init(&cfg.Database); err != nil {
		logger.Error("Failed to init database", logger.ErrorField(err))
		os.Exit(1)
	}
	db := database.Get()

	// 4. 初始化 Redis (L2 Cache + 限流计数)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 5. 初始化 Snowflake
	if err := snowflake.Init(&cfg.Snowflake); err != nil {
		logger.Error("Failed to init snowflake", logger.ErrorField(err))
		os.Exit(1)
	}

	// 6. 缓存：BigCache (L1) + Redis (L2)
	l1, err := pool.NewBigCache(cfg.Cache.L1Cap, time.Duration(cfg.Cache.L2TTL)*time.Second)
	if err != nil {
		logger.Error("Failed to init bigcache", logger.ErrorField(err))
		os.Exit(1)
	}
	store := pool.NewTiered(l1, pool.NewRedisStore(redisClient), l1BackfillTTL)

	// 7. 事件发送：RabbitMQ 不可用时退化为 Noop
	var emitter mq.Emitter = mq.NewNoop()
	if cfg.MQ.URL != "" {
		rabbit, err := mq.NewRabbitEmitter(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, events disabled", logger.ErrorField(err))
		} else {
			emitter = rabbit
		}
	}

	// 8. 初始化 Repository
	threadRepo := repository.NewThreadRepository(db)
	postRepo := repository.NewPostRepository(db)
	forumRepo := repository.NewForumRepository(db)
	userRepo := repository.NewUserRepository(db)
	tagRepo := repository.NewTagRepository(db)
	threadTagRepo := repository.NewThreadTagRepository(db)

	// 9. 初始化 Service
	zones := service.NewZoneResolver(forumRepo, store, &cfg.Cache, &cfg.Hierarchy)
	tabs := service.NewTabCache(store, &cfg.Cache)
	forumSvc := service.NewForumService(forumRepo, store, zones, tabs, cfg)
	threadSvc := service.NewThreadService(service.ThreadDeps{
		Threads:  threadRepo,
		Posts:    postRepo,
		Forums:   forumSvc,
		Zones:    zones,
		Enricher: service.NewEnricher(userRepo, forumRepo, postRepo, zones, cfg.Thread.ExcerptLen),
		Tabs:     tabs,
		Tags:     service.NewTagService(tagRepo, threadTagRepo),
		Mentions: service.NewUserMentionProcessor(userRepo, emitter),
		Emitter:  emitter,
		Config:   &cfg.Thread,
	})

	// 10. Runtime 预热：版块树 + zone memo
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := runtime.Init(rootCtx, &runtime.RuntimeConfig{ForumSvc: forumSvc}); err != nil {
		logger.Error("Failed to init runtime", logger.ErrorField(err))
	}
	logger.Info("Runtime warmup: " + runtime.WarmUpLog())

	// 11. 后台任务
	var workers sync.WaitGroup

	hotJob := service.NewHotScoreJob(threadRepo, &cfg.HotScore)
	workers.Add(1)
	go func() {
		defer workers.Done()
		hotJob.Run(rootCtx)
	}()

	var consumer *mq.Consumer
	if cfg.MQ.URL != "" {
		consumer, err = mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.HierarchyQueue, cfg.MQ.HierarchyKey)
		if err != nil {
			logger.Warn("Hierarchy consumer unavailable, relying on cache TTLs", logger.ErrorField(err))
		} else {
			workers.Add(1)
			go func() {
				defer workers.Done()
				err := consumer.Consume(rootCtx, cfg.MQ.Workers, func(ctx context.Context, key string, body []byte) error {
					if err := forumSvc.HandleHierarchyEvent(ctx, key, body); err != nil {
						return err
					}
					if rt := runtime.Get(); rt != nil {
						return rt.Reload(ctx)
					}
					return nil
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Hierarchy consumer stopped", logger.ErrorField(err))
				}
			}()
		}
	}

	// 12. Metrics
	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 13. 初始化 Handler
	threadV1Handler := v1.NewThreadHandler(threadSvc)
	forumV1Handler := v1.NewForumHandler(forumSvc)
	threadMgtHandler := mgt.NewThreadHandler(threadSvc)
	cacheMgtHandler := mgt.NewCacheHandler(threadSvc, runtime.Get())

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.Security.RateLimit, time.Minute)

	// 14. 注册路由
	gin.SetMode(cfg.App.Mode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.Security.CORS))
	router.Use(middleware.TimeoutMiddleware(time.Duration(cfg.App.RequestTimeout) * time.Second))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"runtime":   runtime.Get().Status(),
			"timestamp": time.Now().Unix(),
		})
	})

	// Health Check (详细版 - 用于负载均衡)
	router.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		checks := make(map[string]string)

		if err := database.Ping(); err != nil {
			status = http.StatusServiceUnavailable
			checks["mysql"] = err.Error()
		} else {
			checks["mysql"] = "ok"
		}

		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}

		c.JSON(status, gin.H{
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
	})

	router.GET("/runtime", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": runtime.Get().Status(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public API (v1)
	v1Group := router.Group("/api/v1")
	v1Group.Use(middleware.RateLimitMW(rateLimiter), middleware.OptionalJWTMW(&cfg.JWT))
	{
		v1Group.GET("/threads", threadV1Handler.List)
		v1Group.GET("/threads/search", threadV1Handler.Search)
		v1Group.GET("/thread/:tid", threadV1Handler.Get)
		v1Group.GET("/thread/slug/:slug", threadV1Handler.GetBySlug)
		v1Group.POST("/thread/:tid/view", threadV1Handler.View)

		v1Group.GET("/forums/tree", forumV1Handler.Tree)
		v1Group.GET("/forum/:fid/zone", forumV1Handler.Zone)
		v1Group.GET("/forum/:fid/descendants", forumV1Handler.Descendants)
	}

	// Management API (mgt) - 强制 IP 白名单 + JWT
	mgtGroup := router.Group("/api/mgt")
	mgtGroup.Use(middleware.AdminWhitelistMW(&cfg.Security), middleware.JWTMW(&cfg.JWT))
	{
		mgtGroup.POST("/thread", threadMgtHandler.Create)
		mgtGroup.PUT("/thread/:tid/solved", threadMgtHandler.Solved)
		mgtGroup.POST("/thread/:tid/post-count", middleware.RequireModerator(), threadMgtHandler.PostCount)

		mgtGroup.POST("/cache/flush", middleware.RequireModerator(), cacheMgtHandler.Flush)
		mgtGroup.POST("/cache/prewarm", middleware.RequireModerator(), cacheMgtHandler.Prewarm)
	}

	// 15. 启动 HTTP Server
	srv := &http.Server{
		Addr:              cfg.App.GetServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", logger.ErrorField(err))
		}
	}()

	// Graceful shutdown (优雅关闭)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. 停止接收新请求
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	// 2. 停止后台任务和消费者
	stop()
	workers.Wait()
	if consumer != nil {
		consumer.Close()
	}
	if err := emitter.Close(); err != nil {
		logger.Warn("Emitter close failed", logger.ErrorField(err))
	}

	// 3. 关闭数据库、Redis、本地缓存
	if err := database.Close(); err != nil {
		logger.Warn("Database close failed", logger.ErrorField(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("Redis close failed", logger.ErrorField(err))
	}
	_ = l1.Close()

	logger.Info("Server exited gracefully")
}
