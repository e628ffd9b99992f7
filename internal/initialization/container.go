// Package initialization builds the scheduling service's dependency graph
// from configuration.
package initialization

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/controllers"
	"github.com/loomhq/loom/internal/dispatch"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/managers"
	"github.com/loomhq/loom/internal/storage/postgres"
	"github.com/loomhq/loom/pkg/clients/loom"
)

// SchedulerDependencies is the fully wired service.
type SchedulerDependencies struct {
	Pool               *pgxpool.Pool
	ScheduleStore      domain.ScheduleStore
	ScheduleService    *managers.ScheduleService
	Credentials        domain.CredentialLifecycle
	Sync               domain.ExecutionBackendSync
	Reconciler         domain.Reconciler
	Dispatcher         domain.Dispatcher
	ScheduleController *controllers.ScheduleController
}

// BuildSchedulerDependencies connects to the database, ensures the schema and
// wires every manager of the scheduling subsystem.
func BuildSchedulerDependencies(ctx context.Context, cfg config.Config) (*SchedulerDependencies, error) {
	log.Info().Msg("Building scheduler dependencies")

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	cipher, err := managers.NewSecretCipher(cfg.ServiceKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	graphClient := loom.NewClient(
		loom.WithBaseURL(cfg.GraphAPIBaseURL),
		loom.WithAPIKey(cfg.GraphAPIKey),
	)
	graphs := managers.NewGraphManager(managers.GraphManagerDependencies{
		Client: graphClient,
	})

	scheduleStore := postgres.NewScheduleStore(pool)
	credentialStore := postgres.NewCredentialStore(pool)
	beatStore := postgres.NewBeatStore(pool)

	credentials := managers.NewCredentialManager(managers.CredentialManagerDependencies{
		Store:    credentialStore,
		Projects: graphs,
		Cipher:   cipher,
	})

	backendSync := managers.NewBeatSyncManager(managers.BeatSyncManagerDependencies{
		Store: beatStore,
		Queue: cfg.TaskQueue,
	})

	scheduleService := managers.NewScheduleService(managers.ScheduleServiceDependencies{
		Schedules: scheduleStore,
		Projects:  graphs,
		Sync:      backendSync,
	})

	reconciler := managers.NewScheduleReconciler(managers.ScheduleReconcilerDependencies{
		Scanner:     graphs,
		Projects:    graphs,
		Schedules:   scheduleStore,
		Sync:        backendSync,
		Credentials: credentials,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherDependencies{
		Credentials:      credentials,
		ExecutionBaseURL: cfg.ExecutionBaseURL,
		Timeout:          cfg.DispatchTimeout,
	})

	scheduleController := controllers.NewScheduleController(controllers.ScheduleControllerDependencies{
		ScheduleService: scheduleService,
		Reconciler:      reconciler,
		Dispatcher:      dispatcher,
	})

	return &SchedulerDependencies{
		Pool:               pool,
		ScheduleStore:      scheduleStore,
		ScheduleService:    scheduleService,
		Credentials:        credentials,
		Sync:               backendSync,
		Reconciler:         reconciler,
		Dispatcher:         dispatcher,
		ScheduleController: scheduleController,
	}, nil
}

// Close releases the container's resources.
func (d *SchedulerDependencies) Close() {
	d.Pool.Close()
}
