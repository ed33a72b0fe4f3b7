package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LEDGER_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "mysql", cfg.Mirror.Driver)
	assert.Equal(t, "event", cfg.Ledger.IdentifierScheme)
	assert.Equal(t, 2*time.Minute, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, uint64(12), cfg.ReconcileLag)
	assert.Zero(t, cfg.ReconcileInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MIRROR_DRIVER", "memory")
	t.Setenv("IDENTIFIER_SCHEME", "block")
	t.Setenv("LEDGER_CONFIRM_TIMEOUT", "30s")
	t.Setenv("LEDGER_CHAIN_ID", "1337")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RECONCILE_INTERVAL", "1m")
	t.Setenv("RECONCILE_START_BLOCK", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Mirror.Driver)
	assert.Equal(t, "block", cfg.Ledger.IdentifierScheme)
	assert.Equal(t, 30*time.Second, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, int64(1337), cfg.Ledger.ChainID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, uint64(42), cfg.ReconcileStartBlock)
}

func TestLoad_FileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
public_origin: https://verify.example.com
mirror:
  driver: postgres
  postgres_dsn: postgres://localhost/provenance
redis:
  addr: redis:6379
ledger:
  confirm_timeout: 45s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "override:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://verify.example.com", cfg.PublicOrigin)
	assert.Equal(t, "postgres", cfg.Mirror.Driver)
	assert.Equal(t, 45*time.Second, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, "override:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_CONFIRM_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "LEDGER_CONFIRM_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Mirror.Driver = "sqlite" }, wantErr: "unknown mirror driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Mirror.Driver = "postgres" }, wantErr: "POSTGRES_DSN"},
		{name: "unknown scheme", mutate: func(c *Config) { c.Ledger.IdentifierScheme = "hash" }, wantErr: "unknown identifier scheme"},
		{name: "missing contract", mutate: func(c *Config) { c.Ledger.ContractAddress = "" }, wantErr: "LEDGER_CONTRACT_ADDRESS"},
		{name: "zero confirm timeout", mutate: func(c *Config) { c.Ledger.ConfirmTimeout = 0 }, wantErr: "LEDGER_CONFIRM_TIMEOUT"},
		{name: "short jwt secret", mutate: func(c *Config) { c.Operator.JWTSecret = "short" }, wantErr: "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Ledger.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
			cfg.Operator.JWTSecret = testSecret
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
