package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/emrgen/canvas/internal/config"
	"github.com/emrgen/canvas/internal/jobs"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func workerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "worker",
		Short: "run the background worker",
		Run: func(cmd *cobra.Command, args []string) {
			cnf := config.Load()
			shares, st, kq, err := buildService(cnf)
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			executor := jobs.NewTaskExecutor(nil, []jobs.CronJob{
				jobs.NewUsageResyncTask(cnf.UsageResyncCron, shares, st),
				jobs.NewShareRefreshTask(cnf.ShareRefreshCron, cnf.ShareMaxAge, shares, st),
			})
			executor.Run()
			defer executor.Stop()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if kq == nil {
				logrus.Info("no queue configured, running cron jobs only")
				<-ctx.Done()
				return
			}

			worker := jobs.NewWorker(kq, shares)
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				logrus.Errorf("worker stopped: %v", err)
			}
		},
	}

	return command
}
