package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/metrics"
	"github.com/mmdatafocus/pos_backend/middlewares"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	Carts        CartService
	Transactions TransactionService
	Store        Pinger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
}

// Register mounts the ops endpoints at the root and the POS API under /api.
// Global middleware (cors, recovery, correlation ids) is installed by the caller.
func Register(r *gin.Engine, opts RouterOptions) {
	r.Use(middlewares.MetricsMiddleware(opts.Metrics))
	r.Use(middlewares.IdentityMiddleware())

	r.GET("/healthz", healthz(opts.Store))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	api := r.Group("/api", middlewares.RequireIdentity())
	NewCartHandler(opts.Carts).Register(api)
	NewTransactionHandler(opts.Transactions).Register(api)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "route not found"})
	})
}

func healthz(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.Status(http.StatusNoContent)
			return
		}
		if err := store.Ping(c.Request.Context()); err != nil {
			respondError(c, "healthz", utils.Infrastructure(err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
