package config

import (
	"os"
	"strings"
	"time"
)

// StrictStockCheck rejects settlements that would drive a product's stock below zero.
// The transaction is then moved to failed instead of completed.
//
// Set via env:
// - STRICT_STOCK_CHECK=true
func StrictStockCheck() bool {
	return boolFromEnv("STRICT_STOCK_CHECK")
}

// SettlementLockTTL is the expiry of the per-transaction settlement lock.
// A crashed holder frees the lock after this long.
func SettlementLockTTL() time.Duration {
	secs := intFromEnv("SETTLEMENT_LOCK_TTL_SECONDS", 30)
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// CacheLifespan is the TTL of cached carts and catalog products (CACHE_LIFESPAN, hours).
func CacheLifespan() time.Duration {
	hours := intFromEnv("CACHE_LIFESPAN", 1)
	if hours <= 0 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// NotifyBackend selects where completion events go: "redis" (default), "pubsub" or "none".
func NotifyBackend() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_BACKEND")))
	if v == "" {
		return "redis"
	}
	return v
}

func NotifyChannel() string {
	v := strings.TrimSpace(os.Getenv("NOTIFY_CHANNEL"))
	if v == "" {
		return "pos:transactions:completed"
	}
	return v
}

// ReceiptLocation is the timezone whose calendar day prefixes receipt numbers.
func ReceiptLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("RECEIPT_TIMEZONE"))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
