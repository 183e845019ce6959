package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/envexpand"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Compile-time check that SlackNotifier implements Notifier
var _ Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts the build status to a Slack incoming webhook. It shares
// Config with the websocket notifier; URL is the webhook URL.
type SlackNotifier struct {
	config     Config
	logger     *slog.Logger
	httpClient *http.Client
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string        `json:"type"`
	Text *slackTextObj `json:"text,omitempty"`
}

type slackTextObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewSlackNotifier(config Config, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) NotifyBuild(ctx context.Context, hook Hook, run build.Run) error {
	event := s.config.Hooks.Event(hook, run, s.config.RootURL)
	logger := s.logger.With("job", run.JobName, "number", run.Number, "hook", hook.String())

	webhookURL := envexpand.Expand(s.config.URL, run.Env)
	if err := s.send(ctx, webhookURL, slackText(event)); err != nil {
		return report(run.Out(), logger, err)
	}
	logger.Info("sent build notification to slack", "phase", event.Phase, "status", event.Status)
	return nil
}

func slackText(event build.Event) string {
	emoji, title := ":hourglass_flowing_sand:", "Build Started"
	if event.Phase == build.PhaseCompleted {
		switch event.Status {
		case build.ResultSuccess:
			emoji, title = ":tada:", "Build Completed Successfully"
		case build.ResultUnstable:
			emoji, title = ":warning:", "Build Unstable"
		case build.ResultAborted, build.ResultNotBuilt:
			emoji, title = ":no_entry_sign:", "Build Aborted"
		default:
			emoji, title = ":x:", "Build Failed"
		}
	}

	status := string(event.Status)
	if status == "" {
		status = "-"
	}
	link := event.BuildURL
	if event.FullURL != "" {
		link = event.FullURL
	}

	return fmt.Sprintf(`%s *%s*
━━━━━━━━━━━━━━━━━━━━━━━━━━
• *Job:* %s
• *Build:* #%d
• *Status:* %s
• *URL:* %s`,
		emoji,
		title,
		event.JobName,
		event.Number,
		status,
		link,
	)
}

func (s *SlackNotifier) send(ctx context.Context, webhookURL, text string) error {
	msg := slackMessage{
		Text: text,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackTextObj{
					Type: "mrkdwn",
					Text: text,
				},
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned non-OK status: %d", resp.StatusCode)
	}

	return nil
}
