package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wsclient"
)

type checkURLCmd struct {
	URL string `arg:"" help:"websocket URL to check"`
}

func (c *checkURLCmd) Run() error {
	return printValidation(notifier.CheckURL(c.URL))
}

type checkHeadersCmd struct {
	Headers string `arg:"" help:"header block, one key=value per line"`
}

func (c *checkHeadersCmd) Run() error {
	return printValidation(notifier.CheckAdditionalHTTPHeaders(c.Headers))
}

type testConnectionCmd struct {
	URL           string        `arg:"" help:"websocket URL to connect to"`
	StartMessage  string        `help:"message to send once connected"`
	Headers       string        `help:"header block, one key=value per line"`
	SkipTLSVerify bool          `help:"do not verify the server certificate" name:"skip-tls-verify"`
	Timeout       time.Duration `help:"overall time limit" default:"30s"`
}

func (c *testConnectionCmd) Run(logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	return printValidation(notifier.TestConnection(ctx, c.URL, c.StartMessage, c.Headers,
		wsclient.WithInsecureSkipVerify(c.SkipTLSVerify),
		wsclient.WithLogger(logger),
	))
}

func printValidation(v notifier.Validation) error {
	fmt.Println(v.String())
	return v.Err()
}
