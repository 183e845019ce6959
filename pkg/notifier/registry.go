package notifier

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
)

const (
	SymbolWebsocket = "websocketin"
	SymbolSlack     = "slack"
)

// Descriptor describes a notification destination that can be attached to a job.
type Descriptor struct {
	Symbol      string
	DisplayName string
	// IsApplicable reports whether the destination can serve jobs of the given kind.
	IsApplicable func(kind string) bool
	// Validators check individual configuration fields by name.
	Validators map[string]func(string) Validation
	New        func(config Config, logger *slog.Logger) Notifier
}

// Validate runs the validator registered for field. Fields without one are OK.
func (d Descriptor) Validate(field, value string) Validation {
	check, found := d.Validators[field]
	if !found {
		return ok("")
	}
	return check(value)
}

// Registry holds the known notification destinations by symbol.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

func (r *Registry) Register(d Descriptor) error {
	if d.Symbol == "" || d.New == nil {
		return fmt.Errorf("descriptor needs a symbol and a constructor")
	}
	if d.IsApplicable == nil {
		d.IsApplicable = func(string) bool { return true }
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Symbol]; exists {
		return fmt.Errorf("notifier %q is already registered", d.Symbol)
	}
	r.descriptors[d.Symbol] = d
	return nil
}

func (r *Registry) Lookup(symbol string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[symbol]
	return d, ok
}

// Symbols returns the registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.descriptors))
}

// DefaultRegistry holds the built-in destinations.
var DefaultRegistry = NewRegistry()

func init() {
	for _, d := range []Descriptor{websocketDescriptor(), slackDescriptor()} {
		if err := DefaultRegistry.Register(d); err != nil {
			panic(err)
		}
	}
}

func websocketDescriptor() Descriptor {
	return Descriptor{
		Symbol:      SymbolWebsocket,
		DisplayName: "Websocket.in Notifier",
		Validators: map[string]func(string) Validation{
			"url":                   CheckURL,
			"additionalHttpHeaders": CheckAdditionalHTTPHeaders,
		},
		New: func(config Config, logger *slog.Logger) Notifier {
			return NewWebsocketNotifier(config, logger)
		},
	}
}

func slackDescriptor() Descriptor {
	return Descriptor{
		Symbol:      SymbolSlack,
		DisplayName: "Slack Notifier",
		Validators: map[string]func(string) Validation{
			"url": checkWebhookURL,
		},
		New: func(config Config, logger *slog.Logger) Notifier {
			return NewSlackNotifier(config, logger)
		},
	}
}

func checkWebhookURL(raw string) Validation {
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		return errorf("%s needs to start with http:// or https://", raw)
	}
	if parsed, err := url.Parse(raw); err != nil || parsed.Host == "" {
		return errorf("'%s' is not a valid URL.", raw)
	}
	return ok("")
}
