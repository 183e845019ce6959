package notifier_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wstest"
)

func testRun(out *bytes.Buffer) build.Run {
	return build.Run{
		JobName:        "nightly",
		JobURL:         "job/nightly/",
		Number:         8,
		URL:            "job/nightly/8/",
		Result:         build.ResultSuccess,
		PreviousResult: build.ResultFailure,
		Env: map[string]string{
			"JOB_NAME": "nightly",
			"TOKEN":    "abc",
		},
		Output: out,
	}
}

func lastEvent(t *testing.T, server *wstest.Server) build.Event {
	t.Helper()
	messages := server.Messages()
	require.NotEmpty(t, messages)
	event, err := build.ParsePayload([]byte(messages[len(messages)-1]))
	require.NoError(t, err)
	return event
}

func TestPreAndPostBuildPhases(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	n := notifier.NewWebsocketNotifier(notifier.Config{URL: server.URL()}, nil)
	var out bytes.Buffer
	run := testRun(&out)

	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPreBuild, run))
	pre := lastEvent(t, server)
	assert.Equal(t, build.PhaseStarted, pre.Phase)
	assert.Equal(t, build.ResultFailure, pre.Status)

	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPostBuild, run))
	post := lastEvent(t, server)
	assert.Equal(t, build.PhaseCompleted, post.Phase)
	assert.Equal(t, build.ResultSuccess, post.Status)
	assert.Equal(t, 8, post.Number)
	assert.Equal(t, "job/nightly/8/", post.BuildURL)
	assert.Empty(t, post.FullURL)

	assert.Contains(t, out.String(), "Websocket connection to: "+server.URL())
	assert.Contains(t, out.String(), "Connected: true")
}

func TestPreBuildWithoutPreviousBuild(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	n := notifier.NewWebsocketNotifier(notifier.Config{URL: server.URL(), RootURL: "https://ci.example.com/"}, nil)
	run := testRun(nil)
	run.PreviousResult = ""

	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPreBuild, run))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.JSONEq(t,
		`{"name":"nightly","url":"job/nightly/","build":{"full_url":"https://ci.example.com/job/nightly/8/","number":8,"phase":"STARTED","status":null,"url":"job/nightly/8/"}}`,
		messages[0],
	)
}

func TestStartMessageAndHeadersAreExpanded(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	n := notifier.NewWebsocketNotifier(notifier.Config{
		URL:                   server.URL() + "/builds/${JOB_NAME}",
		StartMessage:          `{"subscribe":"${JOB_NAME}"}`,
		AdditionalHTTPHeaders: "X-Token=${TOKEN}\nX-Env=prod\nX-Broken=\\uZZZZ",
	}, nil)

	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPostBuild, testRun(nil)))

	messages := server.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, `{"subscribe":"nightly"}`, messages[0])

	headers := server.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, "abc", headers[0].Get("X-Token"))
	assert.Equal(t, "prod", headers[0].Get("X-Env"))
	assert.Empty(t, headers[0].Get("X-Broken"))
}

func TestEmptyStartMessageSendsOnlyPayload(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	n := notifier.NewWebsocketNotifier(notifier.Config{URL: server.URL(), StartMessage: ""}, nil)
	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPostBuild, testRun(nil)))

	assert.Len(t, server.Messages(), 1)
	assert.True(t, server.WaitClosed(time.Second))
}

func TestUnreachableHostIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	n := notifier.NewWebsocketNotifier(notifier.Config{URL: wstest.UnreachableURL(t)}, nil)
	var out bytes.Buffer

	var err error
	assert.NotPanics(t, func() {
		err = n.NotifyBuild(context.Background(), notifier.HookPostBuild, testRun(&out))
	})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Connected: false")
	assert.Contains(t, out.String(), err.Error())
}

func TestInvalidURLIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	n := notifier.NewWebsocketNotifier(notifier.Config{URL: "http://${JOB_NAME}.example.com"}, nil)
	var out bytes.Buffer

	err := n.NotifyBuild(context.Background(), notifier.HookPreBuild, testRun(&out))
	require.Error(t, err)
	assert.Contains(t, out.String(), "needs to start with ws:// or wss://")
}

func TestInvertedPhaseMode(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	n := notifier.NewWebsocketNotifier(notifier.Config{
		URL:   server.URL(),
		Hooks: notifier.Hooks{PhaseMode: notifier.PhaseModeInverted, PreBuildStatus: notifier.StatusCurrent},
	}, nil)
	run := testRun(nil)
	run.Result = ""

	require.NoError(t, n.NotifyBuild(context.Background(), notifier.HookPreBuild, run))
	pre := lastEvent(t, server)
	assert.Equal(t, build.PhaseCompleted, pre.Phase)
	assert.Equal(t, build.Result(""), pre.Status)
}
