package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/gradereport"
	jobrt "github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/runtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/sweeper"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/worker"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/temporalx/temporalworker"
)

// Background holds the job executors for a worker process. Exactly one of
// Worker and Temporal is set.
type Background struct {
	Registry *jobrt.Registry
	Worker   *worker.Worker
	Temporal *temporalworker.Runner
	Sweeper  *sweeper.Sweeper
}

func wireBackground(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, serviceset Services) (Background, error) {
	log.Info("Wiring job runtime...", "dispatch", cfg.JobDispatch)

	registry := jobrt.NewRegistry()
	if err := registry.Register(gradereport.New(log, serviceset.Grading)); err != nil {
		return Background{}, err
	}

	wcfg := worker.LoadConfig()
	out := Background{
		Registry: registry,
		Sweeper:  sweeper.New(log, reposet.Report, reposet.JobRun, serviceset.Jobs, serviceset.ReportNotifier, sweeper.LoadConfig()),
	}

	if cfg.JobDispatch == DispatchTemporal && clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(
			log,
			cfg.Temporal,
			clients.Temporal,
			db,
			reposet.JobRun,
			registry,
			serviceset.JobNotifier,
			wcfg.Concurrency,
			wcfg.MaxAttempts,
		)
		if err != nil {
			return Background{}, err
		}
		out.Temporal = runner
		return out, nil
	}

	out.Worker = worker.NewWorker(db, log, reposet.JobRun, registry, serviceset.JobNotifier, wcfg)
	return out, nil
}

func (b *Background) Start(ctx context.Context, log *logger.Logger) {
	if b.Worker != nil {
		b.Worker.Start(ctx)
	}
	if b.Temporal != nil {
		go func() {
			if err := b.Temporal.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("Temporal worker stopped", "error", err)
			}
		}()
	}
	if b.Sweeper != nil {
		b.Sweeper.Start(ctx)
	}
}

func (b *Background) Wait() {
	if b.Worker != nil {
		b.Worker.Wait()
	}
}
