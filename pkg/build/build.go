package build

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Phase marks where in its lifecycle a build was when a notification was sent.
type Phase string

const (
	PhaseStarted   Phase = "STARTED"
	PhaseCompleted Phase = "COMPLETED"
)

// Result is a build result code.
type Result string

const (
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultNotBuilt Result = "NOT_BUILT"
	ResultAborted  Result = "ABORTED"
)

// ParseResult parses a result code. The empty string parses to the empty Result,
// meaning "no result yet".
func ParseResult(value string) (Result, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch Result(value) {
	case "", ResultSuccess, ResultUnstable, ResultFailure, ResultNotBuilt, ResultAborted:
		return Result(value), nil
	default:
		return "", fmt.Errorf("unknown build result: %s", value)
	}
}

// Run is the live state of a build handed to a notification hook.
type Run struct {
	JobName string
	JobURL  string
	Number  int
	URL     string

	// Result is empty while the build is still running.
	Result Result
	// PreviousResult is empty when there is no previous build or it has no result.
	PreviousResult Result

	// Env is used to expand templated notification settings.
	Env map[string]string

	// Output receives the human readable notification log of this build.
	Output io.Writer
}

// Out returns the run's output, discarding writes when none is set.
func (r Run) Out() io.Writer {
	if r.Output == nil {
		return io.Discard
	}
	return r.Output
}

// Event is the status of a build at one notification.
type Event struct {
	JobName  string
	JobURL   string
	Number   int
	BuildURL string
	// FullURL is RootURL + BuildURL, empty when no root URL is configured.
	FullURL string
	Phase   Phase
	Status  Result
}

// NewEvent builds the event for run in the given phase. rootURL may be empty.
func NewEvent(run Run, phase Phase, status Result, rootURL string) Event {
	return Event{
		JobName:  run.JobName,
		JobURL:   run.JobURL,
		Number:   run.Number,
		BuildURL: run.URL,
		FullURL:  FullURL(rootURL, run.URL),
		Phase:    phase,
		Status:   status,
	}
}

// FullURL joins the root URL and a relative build URL.
func FullURL(rootURL, buildURL string) string {
	if rootURL == "" {
		return ""
	}
	if !strings.HasSuffix(rootURL, "/") {
		rootURL += "/"
	}
	return rootURL + strings.TrimPrefix(buildURL, "/")
}

type payload struct {
	Name  string       `json:"name"`
	URL   string       `json:"url"`
	Build payloadBuild `json:"build"`
}

type payloadBuild struct {
	FullURL *string `json:"full_url"`
	Number  int     `json:"number"`
	Phase   Phase   `json:"phase"`
	Status  *string `json:"status"`
	URL     string  `json:"url"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	p := payload{
		Name: e.JobName,
		URL:  e.JobURL,
		Build: payloadBuild{
			FullURL: nullable(e.FullURL),
			Number:  e.Number,
			Phase:   e.Phase,
			Status:  nullable(string(e.Status)),
			URL:     e.BuildURL,
		},
	}
	return json.Marshal(p)
}

// Payload renders the event as the JSON text frame sent to the endpoint.
func (e Event) Payload() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal build event: %w", err)
	}
	return string(data), nil
}

// ParsePayload decodes a payload produced by Event.Payload.
func ParsePayload(data []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal build event: %w", err)
	}
	e := Event{
		JobName:  p.Name,
		JobURL:   p.URL,
		Number:   p.Build.Number,
		BuildURL: p.Build.URL,
		Phase:    p.Build.Phase,
	}
	if p.Build.FullURL != nil {
		e.FullURL = *p.Build.FullURL
	}
	if p.Build.Status != nil {
		e.Status = Result(*p.Build.Status)
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
