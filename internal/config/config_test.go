package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.08, cfg.Engine.BaseCommissionRate)
	assert.Equal(t, 5, cfg.Engine.StatementDueDay)
	assert.Equal(t, 2*time.Minute, cfg.Engine.SweepLockTTL)
	assert.Equal(t, "offers.accepted", cfg.Kafka.OffersTopic)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ENGINE_BASE_COMMISSION_RATE", "0.1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ENGINE_SWEEP_LOCK_WAIT", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 0.1, cfg.Engine.BaseCommissionRate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Engine.SweepLockWait)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("due day", func(t *testing.T) {
		t.Setenv("ENGINE_STATEMENT_DUE_DAY", "31")
		_, err := Load()
		assert.Error(t, err)
	})
}
