package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/config"
)

var cli struct {
	Watch          watchCmd          `cmd:"" default:"1" help:"watch Kubernetes Jobs and notify the endpoint about their builds"`
	Notify         notifyCmd         `cmd:"" help:"send one build notification, for use as a pipeline step"`
	CheckURL       checkURLCmd       `cmd:"" name:"check-url" help:"validate a websocket URL"`
	CheckHeaders   checkHeadersCmd   `cmd:"" name:"check-headers" help:"validate an additional HTTP headers block"`
	TestConnection testConnectionCmd `cmd:"" name:"test-connection" help:"open and close one connection to a websocket endpoint"`
}

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Error("failed to load .env", "error", err)
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}

func run() error {
	level, err := config.LogLevel()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)
	klog.SetSlogLogger(logger.With("component", "klog"))

	ctx := kong.Parse(
		&cli,
		kong.Name("k8s-job-ws-notify"),
		kong.Description("notify a websocket endpoint about build lifecycle events"),
		kong.UsageOnError(),
	)
	return ctx.Run(logger)
}
