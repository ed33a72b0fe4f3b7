package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Values come from defaults, then
// the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	// PublicOrigin prefixes every verification URL embedded in a token.
	PublicOrigin string `yaml:"public_origin"`
	QRSize       int    `yaml:"qr_size"`

	Mirror   MirrorConfig   `yaml:"mirror"`
	Redis    RedisConfig    `yaml:"redis"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Operator OperatorConfig `yaml:"operator"`
	Kafka    KafkaConfig    `yaml:"kafka"`

	ReconcileInterval   time.Duration `yaml:"reconcile_interval"`
	ReconcileStartBlock uint64        `yaml:"reconcile_start_block"`
	ReconcileLag        uint64        `yaml:"reconcile_lag"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type MirrorConfig struct {
	// Driver is one of mysql, postgres or memory.
	Driver      string `yaml:"driver"`
	MySQLDSN    string `yaml:"mysql_dsn"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	PoolSize int           `yaml:"pool_size"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LedgerConfig struct {
	RPCURL           string        `yaml:"rpc_url"`
	ContractAddress  string        `yaml:"contract_address"`
	WalletPrivateKey string        `yaml:"wallet_private_key"`
	ChainID          int64         `yaml:"chain_id"`
	ConfirmTimeout   time.Duration `yaml:"confirm_timeout"`
	IdentifierScheme string        `yaml:"identifier_scheme"`
}

type OperatorConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func defaults() Config {
	return Config{
		HTTPAddr:     ":8080",
		GRPCAddr:     ":50051",
		PublicOrigin: "http://localhost:8080",
		QRSize:       256,
		Mirror: MirrorConfig{
			Driver:   "mysql",
			MySQLDSN: "root:root@tcp(localhost:3306)/provenance?parseTime=true",
		},
		Redis: RedisConfig{
			PoolSize: 100,
			CacheTTL: time.Hour,
		},
		Ledger: LedgerConfig{
			RPCURL:           "http://localhost:8545",
			ConfirmTimeout:   2 * time.Minute,
			IdentifierScheme: "event",
		},
		Operator: OperatorConfig{
			Username: "admin",
			TokenTTL: 12 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "product.registered",
		},
		ReconcileLag: 12,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getEnv("GRPC_ADDR", cfg.GRPCAddr)
	cfg.PublicOrigin = getEnv("PUBLIC_ORIGIN", cfg.PublicOrigin)

	cfg.Mirror.Driver = getEnv("MIRROR_DRIVER", cfg.Mirror.Driver)
	cfg.Mirror.MySQLDSN = getEnv("MYSQL_DSN", cfg.Mirror.MySQLDSN)
	cfg.Mirror.PostgresDSN = getEnv("POSTGRES_DSN", cfg.Mirror.PostgresDSN)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)

	cfg.Ledger.RPCURL = getEnv("LEDGER_RPC_URL", cfg.Ledger.RPCURL)
	cfg.Ledger.ContractAddress = getEnv("LEDGER_CONTRACT_ADDRESS", cfg.Ledger.ContractAddress)
	cfg.Ledger.WalletPrivateKey = getEnv("WALLET_PRIVATE_KEY", cfg.Ledger.WalletPrivateKey)
	cfg.Ledger.IdentifierScheme = getEnv("IDENTIFIER_SCHEME", cfg.Ledger.IdentifierScheme)

	cfg.Operator.Username = getEnv("OPERATOR_USERNAME", cfg.Operator.Username)
	cfg.Operator.PasswordHash = getEnv("OPERATOR_PASSWORD_HASH", cfg.Operator.PasswordHash)
	cfg.Operator.JWTSecret = getEnv("JWT_SECRET", cfg.Operator.JWTSecret)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.QRSize, err = getEnvInt("QR_SIZE", cfg.QRSize); err != nil {
		return err
	}
	if cfg.Redis.PoolSize, err = getEnvInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return err
	}
	if cfg.Redis.CacheTTL, err = getEnvDuration("REDIS_CACHE_TTL", cfg.Redis.CacheTTL); err != nil {
		return err
	}
	if cfg.Ledger.ConfirmTimeout, err = getEnvDuration("LEDGER_CONFIRM_TIMEOUT", cfg.Ledger.ConfirmTimeout); err != nil {
		return err
	}
	if cfg.Operator.TokenTTL, err = getEnvDuration("OPERATOR_TOKEN_TTL", cfg.Operator.TokenTTL); err != nil {
		return err
	}
	if cfg.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return err
	}
	if v := os.Getenv("LEDGER_CHAIN_ID"); v != "" {
		if cfg.Ledger.ChainID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("LEDGER_CHAIN_ID: %w", err)
		}
	}
	if v := os.Getenv("RECONCILE_START_BLOCK"); v != "" {
		if cfg.ReconcileStartBlock, err = strconv.ParseUint(v, 10, 64); err != nil {
			return fmt.Errorf("RECONCILE_START_BLOCK: %w", err)
		}
	}
	if v := os.Getenv("RECONCILE_LAG"); v != "" {
		if cfg.ReconcileLag, err = strconv.ParseUint(v, 10, 64); err != nil {
			return fmt.Errorf("RECONCILE_LAG: %w", err)
		}
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.Mirror.Driver {
	case "mysql", "memory":
	case "postgres":
		if c.Mirror.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres mirror"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mirror driver %q", c.Mirror.Driver))
	}

	switch c.Ledger.IdentifierScheme {
	case "event", "block":
	default:
		errs = append(errs, fmt.Errorf("unknown identifier scheme %q", c.Ledger.IdentifierScheme))
	}

	if c.Ledger.ContractAddress == "" {
		errs = append(errs, errors.New("LEDGER_CONTRACT_ADDRESS is required"))
	}
	if c.Ledger.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_CONFIRM_TIMEOUT must be positive"))
	}
	if c.PublicOrigin == "" {
		errs = append(errs, errors.New("PUBLIC_ORIGIN is required"))
	}
	if len(c.Operator.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
