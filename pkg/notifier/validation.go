package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/properties"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/wsclient"
)

// Kind is the severity of a Validation.
type Kind int

const (
	KindOK Kind = iota
	KindWarning
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Validation is the verdict on a configuration value.
type Validation struct {
	Kind    Kind
	Message string
}

func ok(message string) Validation {
	return Validation{Kind: KindOK, Message: message}
}

func warning(message string) Validation {
	return Validation{Kind: KindWarning, Message: message}
}

func errorf(format string, args ...any) Validation {
	return Validation{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// Err returns the validation as an error when its kind is KindError.
func (v Validation) Err() error {
	if v.Kind != KindError {
		return nil
	}
	return errors.New(v.Message)
}

func (v Validation) String() string {
	if v.Message == "" {
		return v.Kind.String()
	}
	return v.Kind.String() + ": " + v.Message
}

// CheckURL requires a ws:// or wss:// URL with a host. The scheme is matched
// case-insensitively, as wsclient.ParseURI does.
func CheckURL(raw string) Validation {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "ws://") && !strings.HasPrefix(lower, "wss://") {
		return errorf("%s needs to start with ws:// or wss://", raw)
	}
	if _, err := wsclient.ParseURI(raw); err != nil {
		return errorf("'%s' is not a valid URL.", raw)
	}
	return ok("")
}

// CheckAdditionalHTTPHeaders requires a well-formed header block.
func CheckAdditionalHTTPHeaders(text string) Validation {
	if text == "" {
		return ok("")
	}
	headers, err := properties.ToMap(text)
	if err != nil {
		return errorf("Not a valid property format")
	}
	if len(headers) == 0 {
		return warning("No headers detected")
	}
	word := "headers"
	if len(headers) == 1 {
		word = "header"
	}
	return ok(fmt.Sprintf("%d additional http %s found.", len(headers), word))
}

// TestConnection opens and closes one connection to rawURL and reports the outcome.
func TestConnection(ctx context.Context, rawURL, startMessage, headersText string, opts ...wsclient.Option) Validation {
	headers, err := properties.ToMap(headersText)
	if err != nil {
		return errorf("Client error :  %s", err.Error())
	}
	client, err := wsclient.New(rawURL, startMessage, headers, opts...)
	if err != nil {
		return errorf("Client error :  %s", err.Error())
	}

	outcome := client.Connect(ctx)
	opened := client.IsOpen()
	_ = client.Close()

	if opened {
		return ok("Connection was successful.")
	}
	return errorf("Error connecting: %s", outcome.Err.Error())
}
