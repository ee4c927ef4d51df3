package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	dig_container "github.com/NaveenRoman/AI-TUTor/apps/api/di/dig"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tasks"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
)

func main() {
	c := dig_container.New("WORKER")

	err := c.Invoke(func(conf *core.Config, logger core.Logger, repos *database.Repositories, runner *tasks.Runner) {
		core.ParseEmailTemplates(logger)
		defer func() {
			if err := repos.Close(); err != nil {
				logger.Error("closing database", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if len(os.Args) > 1 {
			// run one job now: `worker weekly_quizzes`
			runOnce(ctx, runner, os.Args[1], logger)
			return
		}

		sched, err := schedule(ctx, runner, logger)
		if err != nil {
			logger.Fatal("scheduling jobs", err)
		}
		sched.Start()
		logger.Info(fmt.Sprintf("Worker started : version %q", conf.Build), "jobs", len(sched.Entries()))

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		cancel()
		<-sched.Stop().Done() // wait for the running jobs
		logger.Info("Worker stopped")
	})
	if err != nil {
		log.Fatal(err)
	}
}

// schedule registers every job of the runner with its cron spec. Jobs with an empty spec are disabled.
func schedule(ctx context.Context, runner *tasks.Runner, logger core.Logger) (*cron.Cron, error) {
	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, job := range runner.Jobs() {
		if job.Spec == "" {
			logger.Info("job disabled", "job", job.Name)
			continue
		}
		job := job
		if _, err := sched.AddFunc(job.Spec, func() { runner.Run(ctx, job, tasks.ScheduledTick(core.Now())) }); err != nil {
			return nil, errors.Wrapf(err, "job %s", job.Name)
		}
	}
	return sched, nil
}

func runOnce(ctx context.Context, runner *tasks.Runner, name string, logger core.Logger) {
	for _, job := range runner.Jobs() {
		if job.Name == name {
			// a manual run gets a slot of its own
			runner.Run(ctx, job, core.Now())
			return
		}
	}
	logger.Error("unknown job", "job", name)
}
