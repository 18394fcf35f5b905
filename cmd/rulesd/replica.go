package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/replication"
	"github.com/cory-johannsen/tactics/internal/server"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

// addReplica mirrors every encounter stored by an authority.
func addReplica(
	ctx context.Context,
	lifecycle *server.Lifecycle,
	cfg config.Config,
	pool *postgres.Pool,
	rdb redis.UniversalClient,
	healthSrv *health.Server,
	enforcer contract.Enforcer,
	logger *zap.Logger,
) error {
	ids, err := postgres.NewEncounterRepository(pool.DB()).IDs(ctx)
	if err != nil {
		return fmt.Errorf("listing stored encounters: %w", err)
	}
	if len(ids) == 0 {
		logger.Warn("no stored encounters to mirror")
	}

	subscribers := make([]*replication.Subscriber, 0, len(ids))
	for _, id := range ids {
		replica := replication.NewReplica(id, enforcer, logger)
		replica.Events.Applied.Subscribe(func(s encounter.Snapshot) {
			logger.Info("snapshot applied",
				zap.String("encounter", s.EncounterID),
				zap.Uint64("sequence", s.Sequence),
				zap.String("state", s.State),
				zap.String("active_character", s.ActiveCharacter),
			)
		})
		subscribers = append(subscribers, replication.NewSubscriber(rdb, cfg.Redis.Prefix, replica, logger))
	}

	lifecycle.Add("replication", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				errs []error
			)
			for _, sub := range subscribers {
				wg.Add(1)
				go func(sub *replication.Subscriber) {
					defer wg.Done()
					if err := sub.Run(ctx); err != nil {
						mu.Lock()
						errs = append(errs, err)
						mu.Unlock()
					}
				}(sub)
			}
			wg.Wait()
			return errors.Join(errs...)
		},
		StopFn: func() {
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		},
	})
	logger.Info("replica mirroring", zap.Strings("encounters", ids))
	return nil
}
