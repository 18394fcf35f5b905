// Package main provides the rules server binary. An authority hosts the
// encounters of its scenarios and replicates their snapshots through Redis; a
// replica mirrors them read-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/observability"
	"github.com/cory-johannsen/tactics/internal/server"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with TACTICS_ overrides")
	flag.Parse()

	envLoaded := godotenv.Load(*envFile) == nil

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	enforcer := observability.NewEnforcer(cfg.Encounter, logger)

	logger.Info("starting rules server",
		zap.String("mode", cfg.Server.Mode),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.Bool("env_file", envLoaded),
	)

	ctx := context.Background()

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("connecting to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))

	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func(context.Context) error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GRPC.Addr(), err)
			}
			logger.Info("gRPC health endpoint listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
		},
	})
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			return watch(ctx, 30*time.Second, func() {
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			})
		},
		StopFn: pool.Close,
	})
	lifecycle.Add("redis", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			return watch(ctx, 30*time.Second, func() {
				if err := rdb.Ping(ctx).Err(); err != nil {
					logger.Warn("redis health check failed", zap.Error(err))
				}
			})
		},
		StopFn: func() { _ = rdb.Close() },
	})

	switch cfg.Server.Mode {
	case "authority":
		err = addAuthority(ctx, lifecycle, cfg, pool, rdb, healthSrv, enforcer, logger)
	case "replica":
		err = addReplica(ctx, lifecycle, cfg, pool, rdb, healthSrv, enforcer, logger)
	}
	if err != nil {
		logger.Fatal("initializing "+cfg.Server.Mode, zap.Error(err))
	}

	logger.Info("rules server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// watch runs fn every interval until ctx is cancelled.
func watch(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}
