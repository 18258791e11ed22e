package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/quillbin/quillbin/handlers"
	"github.com/quillbin/quillbin/internal/config"
	"github.com/quillbin/quillbin/internal/document"
	"github.com/quillbin/quillbin/internal/kv"
	"github.com/quillbin/quillbin/pkg/logger"
	"github.com/quillbin/quillbin/pkg/metrics"
	"github.com/quillbin/quillbin/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: redis=%v maxContentBytes=%d", cfg.Redis.Host != "", cfg.Store.MaxContentBytes)

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Backing store: Redis when configured, otherwise an in-memory map so
	// the service still runs for local development.
	var backing kv.Store
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatalf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
		logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		backing = kv.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
	} else {
		logger.Warnf("REDIS_HOST not set; using in-memory backing store (data is lost on restart)")
		backing = kv.NewMemoryStore()
	}

	// Optional global rate limiter (per client IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	shareSecret := cfg.Share.Secret
	if shareSecret == "" {
		// random per-process secret: share links stop working on restart,
		// but the service stays usable without configuration
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatalf("failed to generate share secret: %v", err)
		}
		shareSecret = hex.EncodeToString(b)
		logger.Warnf("SHARE_SECRET not set; generated an ephemeral secret")
	}

	store := document.New(backing, cfg.Store.MaxContentBytes)
	h := &handlers.DocumentHandler{
		Store:          store,
		ShareSecret:    shareSecret,
		ShareBaseURL:   cfg.Share.BaseURL,
		MaxShareExpiry: cfg.Share.MaxExpiryMinutes,
	}
	handlers.RegisterDocumentRoutes(r, h)

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the backing store answers
	r.GET("/ready", func(c *gin.Context) {
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ready": true, "uptime": time.Since(startTime).String()})
	})

	// Prometheus metrics on a dedicated registry
	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}
