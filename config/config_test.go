package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DB_USER", "pos")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "pos")

	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3306")
	assert.Contains(t, DatabaseDSN(), "pos:secret@tcp(10.0.0.5:3306)/pos?")

	t.Setenv("DB_HOST", "/cloudsql/proj:region:inst")
	assert.Contains(t, DatabaseDSN(), "pos:secret@unix(/cloudsql/proj:region:inst)/pos?")
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("STRICT_STOCK_CHECK", "")
	t.Setenv("SETTLEMENT_LOCK_TTL_SECONDS", "")
	t.Setenv("CACHE_LIFESPAN", "")
	t.Setenv("NOTIFY_BACKEND", "")
	t.Setenv("NOTIFY_CHANNEL", "")
	t.Setenv("RECEIPT_TIMEZONE", "")

	assert.False(t, StrictStockCheck())
	assert.Equal(t, 30*time.Second, SettlementLockTTL())
	assert.Equal(t, time.Hour, CacheLifespan())
	assert.Equal(t, "redis", NotifyBackend())
	assert.Equal(t, "pos:transactions:completed", NotifyChannel())
	assert.Equal(t, time.UTC, ReceiptLocation())

	t.Setenv("STRICT_STOCK_CHECK", "TRUE")
	t.Setenv("SETTLEMENT_LOCK_TTL_SECONDS", "-4")
	t.Setenv("CACHE_LIFESPAN", "6")
	t.Setenv("NOTIFY_BACKEND", " PubSub ")
	t.Setenv("RECEIPT_TIMEZONE", "Not/AZone")

	assert.True(t, StrictStockCheck())
	assert.Equal(t, 30*time.Second, SettlementLockTTL())
	assert.Equal(t, 6*time.Hour, CacheLifespan())
	assert.Equal(t, "pubsub", NotifyBackend())
	assert.Equal(t, time.UTC, ReceiptLocation())
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, "error", logLevelFromEnv().String())
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, "debug", logLevelFromEnv().String())
	t.Setenv("LOG_LEVEL", "chatty")
	assert.Equal(t, "error", logLevelFromEnv().String())
}
