// abandon-stale-carts closes active carts nobody touched for a while and
// evicts them from the cart cache. Meant to run as a scheduled job.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... REDIS_ADDRESS=... go run ./cmd/abandon-stale-carts -older-than 24h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	olderThan := flag.Duration("older-than", 24*time.Hour, "abandon carts not updated within this duration")
	batch := flag.Int("batch", 500, "carts per batch")
	flag.Parse()
	if *olderThan <= 0 || *batch <= 0 {
		fmt.Fprintln(os.Stderr, "-older-than and -batch must be positive")
		os.Exit(2)
	}

	logger := config.GetLogger()
	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry(ctx)
	rdb := config.GetRedisDB()
	defer rdb.Close()

	store := models.NewStore(db)
	carts := workflow.NewCartManager(store, workflow.NewRedisCartCache(rdb, config.CacheLifespan()), store, nil)

	before := time.Now().UTC().Add(-*olderThan)
	var total int
	for {
		n, err := carts.AbandonStale(ctx, before, *batch)
		total += n
		if err != nil {
			config.LogError(logger, "abandon-stale-carts", "main", "AbandonStale", before, err)
			fmt.Fprintf(os.Stderr, "stopped after %d carts: %v\n", total, err)
			os.Exit(1)
		}
		if n < *batch {
			break
		}
	}

	logger.WithFields(logrus.Fields{"abandoned": total, "before": before}).Info("stale carts abandoned")
	fmt.Printf("abandoned %d carts last updated before %s\n", total, before.Format(time.RFC3339))
}
