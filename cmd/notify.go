package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/config"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/envexpand"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
)

type notifyCmd struct {
	Hook           string `help:"which hook is running" enum:"pre,post" required:""`
	JobName        string `help:"name of the job" env:"JOB_NAME" required:""`
	JobURL         string `help:"URL of the job, relative to ROOT_URL" env:"JOB_URL"`
	Number         int    `help:"build number" env:"BUILD_NUMBER" required:""`
	BuildURL       string `help:"URL of the build, relative to ROOT_URL" env:"BUILD_URL"`
	Status         string `help:"result of this build, if known" env:"BUILD_STATUS"`
	PreviousStatus string `help:"result of the previous build, if any" env:"PREVIOUS_BUILD_STATUS"`
}

// Run never fails because of the notification itself; the pipeline must go on.
func (c *notifyCmd) Run(logger *slog.Logger) error {
	cfg, err := config.LoadNotification()
	if err != nil {
		return err
	}

	hook, err := notifier.ParseHook(c.Hook)
	if err != nil {
		return err
	}
	result, err := build.ParseResult(c.Status)
	if err != nil {
		return err
	}
	previous, err := build.ParseResult(c.PreviousStatus)
	if err != nil {
		return err
	}

	buildNotifier, err := newNotifier(*cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := build.Run{
		JobName:        c.JobName,
		JobURL:         c.JobURL,
		Number:         c.Number,
		URL:            c.BuildURL,
		Result:         result,
		PreviousResult: previous,
		Env:            envexpand.Environ(),
		Output:         os.Stdout,
	}
	if err := buildNotifier.NotifyBuild(ctx, hook, run); err != nil {
		logger.Warn("build notification failed, continuing", "error", err)
	}
	return nil
}
