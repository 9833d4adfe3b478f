package di

import (
	"fmt"
	"time"

	"github.com/aristath/divtrack/internal/clientdata"
	"github.com/aristath/divtrack/internal/config"
	"github.com/aristath/divtrack/internal/reliability"
	"github.com/aristath/divtrack/internal/scheduler"
	"github.com/rs/zerolog"
)

// JobInstances holds the registered jobs so they can be triggered by hand
type JobInstances struct {
	FXWarmup          *scheduler.FXWarmupJob
	ExpectedDividends *scheduler.ExpectedDividendsRefreshJob
	ClientDataCleanup *clientdata.CleanupJob
	CheckDatabases    *scheduler.CheckDatabasesJob
	Maintenance       *reliability.DailyMaintenanceJob
	Backup            *reliability.BackupJob // nil when backups are not configured
}

// RegisterJobs creates the scheduler and registers every background job.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	container.Scheduler = sched

	instances := &JobInstances{
		FXWarmup:          scheduler.NewFXWarmupJob(container.HoldingRepo, container.RateCache, 30*time.Second, log),
		ExpectedDividends: scheduler.NewExpectedDividendsRefreshJob(container.DividendService, 5*time.Minute, log),
		ClientDataCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, log),
		CheckDatabases:    scheduler.NewCheckDatabasesJob(container.Databases(), log),
		Maintenance:       reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log),
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.FXWarmup, instances.FXWarmup},
		{cfg.Schedules.ExpectedDividends, instances.ExpectedDividends},
		{cfg.Schedules.ClientDataCleanup, instances.ClientDataCleanup},
		{cfg.Schedules.DatabaseCheck, instances.CheckDatabases},
		{cfg.Schedules.Maintenance, instances.Maintenance},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		registrations = append(registrations, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Backup.Schedule, instances.Backup})
	}

	for _, reg := range registrations {
		if err := sched.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	return instances, nil
}
