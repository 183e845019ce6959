package notifier

import (
	"context"
	"fmt"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
)

// Hook is the point in a build at which a notification is sent.
type Hook int

const (
	// HookPreBuild runs before the build does any work.
	HookPreBuild Hook = iota
	// HookPostBuild runs once the build has a result.
	HookPostBuild
)

func (h Hook) String() string {
	switch h {
	case HookPreBuild:
		return "pre-build"
	case HookPostBuild:
		return "post-build"
	default:
		return fmt.Sprintf("Hook(%d)", int(h))
	}
}

// ParseHook accepts "pre", "pre-build", "post" and "post-build".
func ParseHook(value string) (Hook, error) {
	switch value {
	case "pre", "pre-build":
		return HookPreBuild, nil
	case "post", "post-build":
		return HookPostBuild, nil
	default:
		return 0, fmt.Errorf("hook must be 'pre' or 'post', got: %s", value)
	}
}

// Notifier is the interface for sending build notifications.
// Implement this interface to add new notification destinations.
type Notifier interface {
	// NotifyBuild reports run at the given hook. Implementations log failures to
	// the run output and return them, but a returned error must never fail the
	// build itself.
	NotifyBuild(ctx context.Context, hook Hook, run build.Run) error
}
