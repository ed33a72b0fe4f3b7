package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/med-provenance/internal/adapter/handler"
	"github.com/rl1809/med-provenance/internal/adapter/ledger"
	"github.com/rl1809/med-provenance/internal/adapter/publisher"
	"github.com/rl1809/med-provenance/internal/adapter/storage"
	"github.com/rl1809/med-provenance/internal/adapter/token"
	"github.com/rl1809/med-provenance/internal/auth"
	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/core/service"
	"github.com/rl1809/med-provenance/internal/platform/config"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/platform/metrics"
	"github.com/rl1809/med-provenance/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize mirror store
	mirror, closeMirror, err := openMirror(ctx, cfg.Mirror)
	if err != nil {
		return err
	}
	defer closeMirror()
	log.Info("mirror store ready", "driver", cfg.Mirror.Driver)

	// Initialize Redis
	var cache *storage.RedisAdapter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cache = storage.NewRedisAdapter(rdb, cfg.Redis.CacheTTL)
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	// Initialize ledger
	eth, err := ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return fmt.Errorf("dial ledger: %w", err)
	}
	defer eth.Close()

	chainID := big.NewInt(cfg.Ledger.ChainID)
	if cfg.Ledger.ChainID == 0 {
		if chainID, err = eth.ChainID(ctx); err != nil {
			return fmt.Errorf("read chain id: %w", err)
		}
	}
	if !common.IsHexAddress(cfg.Ledger.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", cfg.Ledger.ContractAddress)
	}
	scheme := domain.IdentifierScheme(cfg.Ledger.IdentifierScheme)
	ledgerClient, err := ledger.NewClient(eth, ledger.Config{
		Address:        common.HexToAddress(cfg.Ledger.ContractAddress),
		Scheme:         scheme,
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	wallet, err := ledger.NewKeyWallet(cfg.Ledger.WalletPrivateKey, chainID)
	if err != nil {
		return err
	}
	log.Info("connected to ledger", "chain_id", chainID, "contract", cfg.Ledger.ContractAddress, "scheme", scheme)

	// Initialize services
	codec := token.NewQRCodec(cfg.QRSize)
	regOpts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer pub.Close()
		regOpts = append(regOpts, service.WithPublisher(pub))
		log.Info("publishing registrations", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	registration := service.NewRegistrationService(wallet, ledgerClient, mirror, codec, cfg.PublicOrigin, regOpts...)

	queryOpts := []service.QueryOption{service.WithQueryLogger(log), service.WithQueryMetrics(m)}
	if cache != nil {
		queryOpts = append(queryOpts, service.WithCache(cache))
	}
	query := service.NewQueryService(mirror, codec, cfg.PublicOrigin, queryOpts...)

	issuer := auth.NewTokenIssuer(cfg.Operator.JWTSecret, cfg.Operator.TokenTTL)
	credentials := auth.NewStaticVerifier(cfg.Operator.Username, cfg.Operator.PasswordHash)
	httpHandler := handler.NewHTTPHandler(registration, query, service.NewMirrorService(mirror, log), credentials, issuer, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, issuer.RequireOperator, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	handler.RegisterVerificationServer(grpcServer, handler.NewGRPCHandler(query))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.ReconcileInterval > 0 {
		var reconcilerCache port.CacheRepository
		if cache != nil {
			reconcilerCache = cache
		}
		reconciler := service.NewReconciler(ledgerClient, mirror, service.ReconcilerConfig{
			Scheme:     scheme,
			StartBlock: cfg.ReconcileStartBlock,
			Lag:        cfg.ReconcileLag,
			Logger:     log,
			Metrics:    m,
			Cache:      reconcilerCache,
		})
		g.Go(func() error {
			log.Info("reconciler started", "interval", cfg.ReconcileInterval, "from_block", cfg.ReconcileStartBlock)
			return reconciler.Run(gctx, cfg.ReconcileInterval)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown", "error", err)
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

// openMirror connects the configured mirror driver and ensures its schema.
func openMirror(ctx context.Context, cfg config.MirrorConfig) (port.MirrorRepository, func(), error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryAdapter(), func() {}, nil
	case "postgres":
		db, err := openDB(ctx, "postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		adapter := storage.NewPostgresAdapter(db, nil)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return adapter, func() { db.Close() }, nil
	default:
		db, err := openDB(ctx, "mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return adapter, func() { db.Close() }, nil
	}
}

func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
