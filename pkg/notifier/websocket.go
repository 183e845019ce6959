package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/envexpand"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/properties"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wsclient"
)

// Compile-time check that WebsocketNotifier implements Notifier
var _ Notifier = (*WebsocketNotifier)(nil)

// Config holds the notification settings of a build step. URL, StartMessage and
// AdditionalHTTPHeaders are templates expanded against the run environment.
type Config struct {
	URL                   string
	StartMessage          string
	AdditionalHTTPHeaders string

	// RootURL prefixes build URLs to form the full_url field.
	RootURL string
	Hooks   Hooks

	CloseTimeout  time.Duration
	SkipTLSVerify bool
}

// ClientOptions returns the websocket client options implied by the config.
func (c Config) ClientOptions(logger *slog.Logger) []wsclient.Option {
	return []wsclient.Option{
		wsclient.WithCloseTimeout(c.CloseTimeout),
		wsclient.WithInsecureSkipVerify(c.SkipTLSVerify),
		wsclient.WithLogger(logger),
	}
}

// WebsocketNotifier pushes the build status as JSON to a websocket endpoint,
// one short-lived connection per notification.
type WebsocketNotifier struct {
	config Config
	logger *slog.Logger
}

func NewWebsocketNotifier(config Config, logger *slog.Logger) *WebsocketNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketNotifier{
		config: config,
		logger: logger,
	}
}

func (n *WebsocketNotifier) NotifyBuild(ctx context.Context, hook Hook, run build.Run) error {
	out := run.Out()
	event := n.config.Hooks.Event(hook, run, n.config.RootURL)
	logger := n.logger.With(
		"job", run.JobName,
		"number", run.Number,
		"hook", hook.String(),
		"phase", event.Phase,
	)

	payload, err := event.Payload()
	if err != nil {
		return report(out, logger, err)
	}

	fmt.Fprintf(out, "Websocket connection to: %s\n", n.config.URL)

	url := envexpand.Expand(n.config.URL, run.Env)
	startMessage := envexpand.Expand(n.config.StartMessage, run.Env)
	headers := properties.ParseLenient(envexpand.Expand(n.config.AdditionalHTTPHeaders, run.Env))

	client, err := wsclient.New(url, startMessage, headers, n.config.ClientOptions(logger)...)
	if err != nil {
		return report(out, logger, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("websocket close handshake did not complete", "error", err)
		}
	}()

	outcome := client.Connect(ctx)
	fmt.Fprintf(out, "Connected: %t\n", outcome.Opened)
	if !outcome.Opened {
		return report(out, logger, outcome.Err)
	}
	if outcome.Err != nil {
		return report(out, logger, outcome.Err)
	}

	if err := client.Send(payload); err != nil {
		return report(out, logger, err)
	}

	logger.Info("sent build notification", "status", event.Status)
	return nil
}

func report(out io.Writer, logger *slog.Logger, err error) error {
	fmt.Fprintln(out, err.Error())
	logger.Error("failed to send build notification", "error", err)
	return err
}
