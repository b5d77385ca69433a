// seed-catalog upserts products from a JSON file into the catalog.
// Stock is only set for products that do not exist yet.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-catalog -file products.json
//
// The file holds an array of products:
//
//	[{"sku":"COF-001","name":"Coffee","unit_price":"3.50","tax_rate":"0.07","stock_quantity":100,"is_active":true}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/workflow"
)

func main() {
	file := flag.String("file", "", "path to a JSON array of products")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", *file, err)
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}
	store := models.NewStore(db)

	// Drop cached copies so tills see the new prices right away.
	config.ConnectRedisWithRetry(ctx)
	rdb := config.GetRedisDB()
	catalog := workflow.NewCachedCatalog(store, rdb, config.CacheLifespan())
	defer rdb.Close()

	var failed int
	for i := range products {
		p := &products[i]
		if err := store.UpsertProduct(ctx, p); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "sku=%q: %v\n", p.Sku, err)
			continue
		}
		if err := catalog.Invalidate(ctx, p.ID); err != nil {
			fmt.Fprintf(os.Stderr, "sku=%q: cache invalidation failed: %v\n", p.Sku, err)
		}
		fmt.Printf("upserted sku=%q id=%s price=%s\n", p.Sku, p.ID, p.UnitPrice.StringFixed(2))
	}

	fmt.Printf("done: %d upserted, %d failed\n", len(products)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
