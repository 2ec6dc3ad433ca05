package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Registry.RegistrationCost)
	assert.Equal(t, 10, cfg.Registry.VerificationBond)
	assert.Equal(t, 30*24*time.Hour, cfg.Registry.BondLockPeriod())
	assert.True(t, cfg.Registry.PurchaseEnabled, "purchases are open in development")
	assert.Equal(t, "demo", cfg.Anchor.Mode)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("VERIFICATION_BOND", "25")
	t.Setenv("ANCHOR_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_PUBLIC_RPS", "2.5")
	t.Setenv("CREDIT_PURCHASE_ENABLED", "TRUE")
	t.Setenv("BOND_LOCK_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Registry.VerificationBond)
	assert.Equal(t, 3*time.Second, cfg.Anchor.Timeout)
	assert.Equal(t, 2.5, cfg.RateLimit.PublicRPS)
	assert.True(t, cfg.Registry.PurchaseEnabled)
	assert.Equal(t, 30, cfg.Registry.BondLockDays, "unparsable values keep the default")
}

func TestValidate(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT secret")

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load()
	assert.ErrorContains(t, err, "database password")

	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("ANCHOR_MODE", "ethereum")
	_, err = Load()
	assert.ErrorContains(t, err, "unsupported anchor mode")

	t.Setenv("ANCHOR_MODE", "demo")
	t.Setenv("REGISTRATION_COST", "-1")
	_, err = Load()
	assert.ErrorContains(t, err, "must be positive")

	t.Setenv("REGISTRATION_COST", "1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.Registry.PurchaseEnabled)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "idsee", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=idsee sslmode=disable TimeZone=UTC", d.DSN())
}
