package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/tactics/internal/authority"
	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/replication"
	"github.com/cory-johannsen/tactics/internal/scenario"
	"github.com/cory-johannsen/tactics/internal/server"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

// addAuthority loads content, opens every scenario and registers the services
// that play them.
func addAuthority(
	ctx context.Context,
	lifecycle *server.Lifecycle,
	cfg config.Config,
	pool *postgres.Pool,
	rdb redis.UniversalClient,
	healthSrv *health.Server,
	enforcer contract.Enforcer,
	logger *zap.Logger,
) error {
	roller := dice.NewRoller(dice.CryptoSource(), logger)
	bundle, err := content.Load(cfg.Content, roller, enforcer, logger)
	if err != nil {
		return err
	}
	scenarios, err := scenario.LoadDirectory(cfg.Content.ScenariosDir)
	if err != nil {
		bundle.Close()
		return err
	}

	engine := encounter.NewEngine(cfg.Encounter.Settings(), roller, enforcer, logger)
	publisher := replication.NewPublisher(rdb, cfg.Redis.Prefix, cfg.Redis.SnapshotTTL, logger)
	store := postgres.NewEncounterRepository(pool.DB())
	ticks := authority.NewTickManager(cfg.Server.TickInterval)
	host := authority.NewHost(engine, bundle, publisher, store, ticks, logger)

	host.Events.Finished.Subscribe(func(r authority.Result) {
		logger.Info("encounter result",
			zap.String("encounter", r.EncounterID),
			zap.String("winner", string(r.Winner)),
			zap.Bool("decided", r.Decided),
			zap.Int("rounds", r.Rounds),
		)
	})
	engine.Events.TurnTimedOut.Subscribe(func(t encounter.Turn) {
		logger.Warn("turn timed out", zap.String("encounter", t.EncounterID), zap.String("character", t.Character.ID()))
	})

	for _, s := range scenarios {
		if err := host.Open(ctx, s); err != nil {
			_ = host.Close(ctx)
			engine.Close()
			bundle.Close()
			return err
		}
	}
	logger.Info("authority hosting", zap.Strings("encounters", host.IDs()))

	lifecycle.Add("encounters", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticks.Start(ctx)
			if engine.Ready() {
				healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			}
			<-ctx.Done()
			return nil
		},
		StopFn: func() {
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := host.Close(stopCtx); err != nil {
				logger.Error("storing final snapshots", zap.Error(err))
			}
			engine.Close()
			bundle.Close()
		},
	})
	return nil
}
