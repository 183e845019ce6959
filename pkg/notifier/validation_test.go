package notifier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wsclient"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wstest"
)

func TestCheckURL(t *testing.T) {
	t.Parallel()

	valid := []string{
		"ws://example.com",
		"wss://example.com/socket",
		"ws://127.0.0.1:8080/builds?token=abc",
		"WS://example.com",
		"Wss://example.com",
	}
	for _, url := range valid {
		v := notifier.CheckURL(url)
		assert.Equal(t, notifier.KindOK, v.Kind, url)
		assert.NoError(t, v.Err())
	}

	invalid := map[string]string{
		"http://example.com":  "http://example.com needs to start with ws:// or wss://",
		"example.com":         "example.com needs to start with ws:// or wss://",
		"wsx://example.com":   "wsx://example.com needs to start with ws:// or wss://",
		"":                    " needs to start with ws:// or wss://",
		"ws://":               "'ws://' is not a valid URL.",
		"ws://exa mple.com/x": "'ws://exa mple.com/x' is not a valid URL.",
	}
	for url, message := range invalid {
		v := notifier.CheckURL(url)
		assert.Equal(t, notifier.KindError, v.Kind, url)
		assert.Equal(t, message, v.Message)
		assert.Error(t, v.Err())
	}
}

func TestCheckAdditionalHTTPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text    string
		kind    notifier.Kind
		message string
	}{
		{"", notifier.KindOK, ""},
		{"X-Token=abc", notifier.KindOK, "1 additional http header found."},
		{"X-Token=abc\nX-Env=prod", notifier.KindOK, "2 additional http headers found."},
		{"# nothing here", notifier.KindWarning, "No headers detected"},
		{"X-Token=\\uZZZZ", notifier.KindError, "Not a valid property format"},
	}
	for _, tt := range tests {
		v := notifier.CheckAdditionalHTTPHeaders(tt.text)
		assert.Equal(t, tt.kind, v.Kind, tt.text)
		assert.Equal(t, tt.message, v.Message, tt.text)
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()
	server := wstest.NewServer(t)

	v := notifier.TestConnection(context.Background(), server.URL(), "hello", "X-Token=abc")
	assert.Equal(t, notifier.KindOK, v.Kind)
	assert.Equal(t, "Connection was successful.", v.Message)
	assert.Equal(t, []string{"hello"}, server.Messages())
	assert.Equal(t, "abc", server.Headers()[0].Get("X-Token"))
}

func TestTestConnectionFailures(t *testing.T) {
	t.Parallel()

	v := notifier.TestConnection(context.Background(), wstest.UnreachableURL(t), "", "")
	assert.Equal(t, notifier.KindError, v.Kind)
	assert.Contains(t, v.Message, "Error connecting: ")

	v = notifier.TestConnection(context.Background(), "http://example.com", "", "")
	assert.Equal(t, notifier.KindError, v.Kind)
	assert.Contains(t, v.Message, "Client error :  ")

	v = notifier.TestConnection(context.Background(), "ws://example.com", "", "X=\\u1")
	assert.Equal(t, notifier.KindError, v.Kind)
	assert.Contains(t, v.Message, "Client error :  ")
}

func TestValidationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", notifier.CheckURL("ws://a").String())
	assert.Equal(t, "warning: No headers detected", notifier.CheckAdditionalHTTPHeaders("#").String())
}

func TestCheckURLAgreesWithClient(t *testing.T) {
	t.Parallel()

	for _, url := range []string{"WS://example.com", "ws://example.com", "WSS://", "wsx://example.com", "http://example.com"} {
		_, err := wsclient.ParseURI(url)
		assert.Equal(t, err == nil, notifier.CheckURL(url).Kind == notifier.KindOK, url)
	}
}
