package notifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
)

func TestHooksEvent(t *testing.T) {
	t.Parallel()

	run := build.Run{
		JobName:        "nightly",
		Number:         3,
		Result:         build.ResultSuccess,
		PreviousResult: build.ResultFailure,
	}

	tests := []struct {
		name   string
		hooks  notifier.Hooks
		hook   notifier.Hook
		phase  build.Phase
		status build.Result
	}{
		{"zero value pre", notifier.Hooks{}, notifier.HookPreBuild, build.PhaseStarted, build.ResultFailure},
		{"zero value post", notifier.Hooks{}, notifier.HookPostBuild, build.PhaseCompleted, build.ResultSuccess},
		{"inverted pre", notifier.Hooks{PhaseMode: notifier.PhaseModeInverted}, notifier.HookPreBuild, build.PhaseCompleted, build.ResultFailure},
		{"inverted post", notifier.Hooks{PhaseMode: notifier.PhaseModeInverted}, notifier.HookPostBuild, build.PhaseStarted, build.ResultSuccess},
		{"current status pre", notifier.Hooks{PreBuildStatus: notifier.StatusCurrent}, notifier.HookPreBuild, build.PhaseStarted, build.ResultSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := tt.hooks.Event(tt.hook, run, "")
			assert.Equal(t, tt.phase, event.Phase)
			assert.Equal(t, tt.status, event.Status)
		})
	}
}

func TestParseHooksSettings(t *testing.T) {
	t.Parallel()

	mode, err := notifier.ParsePhaseMode("")
	require.NoError(t, err)
	assert.Equal(t, notifier.PhaseModeStandard, mode)

	_, err = notifier.ParsePhaseMode("sideways")
	assert.Error(t, err)

	source, err := notifier.ParseStatusSource("current")
	require.NoError(t, err)
	assert.Equal(t, notifier.StatusCurrent, source)

	_, err = notifier.ParseStatusSource("next")
	assert.Error(t, err)

	hook, err := notifier.ParseHook("post-build")
	require.NoError(t, err)
	assert.Equal(t, notifier.HookPostBuild, hook)
	assert.Equal(t, "post-build", hook.String())

	_, err = notifier.ParseHook("during")
	assert.Error(t, err)
}
