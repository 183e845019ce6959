package notifier

import (
	"fmt"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
)

// PhaseMode selects which phase each hook reports.
type PhaseMode string

const (
	// PhaseModeStandard reports STARTED before and COMPLETED after the build.
	PhaseModeStandard PhaseMode = "standard"
	// PhaseModeInverted reports COMPLETED before and STARTED after the build,
	// as older releases of the notifier did.
	PhaseModeInverted PhaseMode = "inverted"
)

// StatusSource selects whose result a pre-build notification carries.
type StatusSource string

const (
	StatusPrevious StatusSource = "previous"
	StatusCurrent  StatusSource = "current"
)

func ParsePhaseMode(value string) (PhaseMode, error) {
	switch PhaseMode(value) {
	case "":
		return PhaseModeStandard, nil
	case PhaseModeStandard, PhaseModeInverted:
		return PhaseMode(value), nil
	default:
		return "", fmt.Errorf("phase mode must be 'standard' or 'inverted', got: %s", value)
	}
}

func ParseStatusSource(value string) (StatusSource, error) {
	switch StatusSource(value) {
	case "":
		return StatusPrevious, nil
	case StatusPrevious, StatusCurrent:
		return StatusSource(value), nil
	default:
		return "", fmt.Errorf("status source must be 'previous' or 'current', got: %s", value)
	}
}

// Hooks maps a hook and a run onto the reported phase and status.
// The zero value behaves as PhaseModeStandard with StatusPrevious.
type Hooks struct {
	PhaseMode      PhaseMode
	PreBuildStatus StatusSource
}

func (h Hooks) Phase(hook Hook) build.Phase {
	pre := hook == HookPreBuild
	if h.PhaseMode == PhaseModeInverted {
		pre = !pre
	}
	if pre {
		return build.PhaseStarted
	}
	return build.PhaseCompleted
}

// Status is the previous build's result at pre-build (unless PreBuildStatus is
// StatusCurrent) and the run's own result at post-build.
func (h Hooks) Status(hook Hook, run build.Run) build.Result {
	if hook == HookPreBuild && h.PreBuildStatus != StatusCurrent {
		return run.PreviousResult
	}
	return run.Result
}

func (h Hooks) Event(hook Hook, run build.Run, rootURL string) build.Event {
	return build.NewEvent(run, h.Phase(hook), h.Status(hook, run), rootURL)
}
