package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/handlers"
	"github.com/mmdatafocus/pos_backend/metrics"
	"github.com/mmdatafocus/pos_backend/middlewares"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// readinessGate answers the startup probe while dependencies connect and
// hands every request to the app router once it is installed.
type readinessGate struct {
	app atomic.Value
}

func (g *readinessGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := g.app.Load().(http.Handler); ok {
		h.ServeHTTP(w, r)
		return
	}
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// PORT is what most container platforms inject.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// SIGTERM drains in-flight checkouts before the process exits.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start listening immediately so the startup probe passes while DB/Redis connect.
	gate := &readinessGate{}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: gate,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry(sigCtx)
	if sigCtx.Err() != nil {
		return
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; allow running it as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	rdb := config.GetRedisDB()
	store := models.NewStore(db)
	m := metrics.New(prometheus.DefaultRegisterer)
	ttl := config.CacheLifespan()

	cartCache := workflow.NewRedisCartCache(rdb, ttl)
	catalog := workflow.NewCachedCatalog(store, rdb, ttl)
	notifier, closeNotifier := newNotifier(sigCtx, rdb, logger)
	defer closeNotifier()

	carts := workflow.NewCartManager(store, cartCache, catalog, m)
	transactions := workflow.NewTransactionManager(
		store,
		catalog,
		cartCache,
		workflow.NewRedisLocker(config.GetRedisLock()),
		notifier,
		workflow.TransactionManagerOptions{
			LockTTL:     config.SettlementLockTTL(),
			StrictStock: config.StrictStockCheck(),
			Location:    config.ReceiptLocation(),
			Metrics:     m,
		},
	)

	r := gin.New()
	r.Use(middlewares.CorrelationIdMiddleware())
	r.Use(cors.New(corsConfig()))
	if limiter := rateLimiter(rdb); limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	handlers.Register(r, handlers.RouterOptions{
		Carts:        carts,
		Transactions: transactions,
		Store:        store,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
	})
	gate.app.Store(http.Handler(r))

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
		"port": port,
	}).Info("pos backend ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	// In-flight completion events still need redis or pubsub.
	transactions.WaitNotifications()

	if rdb != nil {
		_ = rdb.Close()
	}
}

// newNotifier picks the completion event backend from NOTIFY_BACKEND. A
// backend that cannot be set up degrades to no notifications.
func newNotifier(ctx context.Context, rdb *redis.Client, logger *logrus.Logger) (workflow.Notifier, func()) {
	channel := config.NotifyChannel()
	var next workflow.Notifier
	closeFn := func() {}

	switch config.NotifyBackend() {
	case "none":
		return workflow.NopNotifier{}, closeFn
	case "pubsub":
		client, err := config.GetPubSubClient(ctx)
		if err != nil {
			config.LogError(logger, "server.go", "newNotifier", "GetPubSubClient", nil, err)
			return workflow.NopNotifier{}, closeFn
		}
		topic, err := config.CreateTopicIfNotExists(ctx, client, channel)
		if err != nil {
			config.LogError(logger, "server.go", "newNotifier", "CreateTopicIfNotExists", channel, err)
			return workflow.NopNotifier{}, closeFn
		}
		next = workflow.NewPubSubNotifier(topic)
		closeFn = topic.Stop
	default:
		next = workflow.NewRedisNotifier(rdb, channel)
	}
	return workflow.NewBreakerNotifier("transaction-notifier", next), closeFn
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			// deny all when unconfigured
			corsConfig.AllowOrigins = []string{}
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationIdHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return corsConfig
}

// rateLimiter is enabled with RATE_LIMIT_ENABLED=true, tuned by
// RATE_LIMIT_MAX_REQUESTS (default 600) and RATE_LIMIT_WINDOW_SECONDS (default 60).
func rateLimiter(rdb *redis.Client) *middlewares.RateLimiter {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		return nil
	}
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return middlewares.NewRateLimiter(rdb, limit, time.Duration(windowSec)*time.Second)
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.WithFields(logrus.Fields{
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}).Debug(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
