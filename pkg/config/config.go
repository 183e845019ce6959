package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
)

var validate = validator.New()

// NotificationLevel determines which job events trigger notifications.
type NotificationLevel string

const (
	// NotificationLevelAll sends notifications for both succeeded and failed jobs.
	NotificationLevelAll NotificationLevel = "all"
	// NotificationLevelFailed sends notifications only for failed jobs.
	NotificationLevelFailed NotificationLevel = "failed"
)

// ShouldNotifySuccess returns true if success notifications should be sent.
func (l NotificationLevel) ShouldNotifySuccess() bool {
	return l == NotificationLevelAll
}

// ShouldNotifyFailure returns true if failure notifications should be sent.
func (l NotificationLevel) ShouldNotifyFailure() bool {
	return true // Always notify on failure
}

// Notification is the destination side of the configuration.
type Notification struct {
	Notifier              string        `validate:"required"`
	URL                   string        `validate:"required"`
	StartMessage          string
	AdditionalHTTPHeaders string
	RootURL               string        `validate:"omitempty,url"`
	PhaseMode             string        `validate:"oneof=standard inverted"`
	PreBuildStatus        string        `validate:"oneof=previous current"`
	CloseTimeout          time.Duration `validate:"gt=0"`
	SkipTLSVerify         bool
}

// NotifierConfig converts the settings for the notifier package.
func (n Notification) NotifierConfig() notifier.Config {
	return notifier.Config{
		URL:                   n.URL,
		StartMessage:          n.StartMessage,
		AdditionalHTTPHeaders: n.AdditionalHTTPHeaders,
		RootURL:               n.RootURL,
		Hooks: notifier.Hooks{
			PhaseMode:      notifier.PhaseMode(n.PhaseMode),
			PreBuildStatus: notifier.StatusSource(n.PreBuildStatus),
		},
		CloseTimeout:  n.CloseTimeout,
		SkipTLSVerify: n.SkipTLSVerify,
	}
}

type Config struct {
	Notification Notification

	Namespace         string
	InCluster         bool
	ResyncPeriod      time.Duration     `validate:"gt=0"`
	NotificationLevel NotificationLevel `validate:"oneof=all failed"`
	NotifyOnStart     bool
	HistoryTTL        time.Duration `validate:"gt=0"`
	LogLevel          slog.Level
}

// Load reads the full configuration used by the job watcher.
func Load() (*Config, error) {
	notification, err := LoadNotification()
	if err != nil {
		return nil, err
	}

	inCluster, err := boolEnv("IN_CLUSTER", true)
	if err != nil {
		return nil, err
	}

	resyncPeriod, err := secondsEnv("RESYNC_PERIOD", 30*time.Second)
	if err != nil {
		return nil, err
	}

	notificationLevel, err := parseNotificationLevel(os.Getenv("NOTIFICATION_LEVEL"))
	if err != nil {
		return nil, err
	}

	notifyOnStart, err := boolEnv("NOTIFY_ON_START", true)
	if err != nil {
		return nil, err
	}

	historyTTL := 24 * time.Hour
	if v := os.Getenv("HISTORY_TTL"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("HISTORY_TTL must be an integer (hours)")
		}
		historyTTL = time.Duration(hours) * time.Hour
	}

	logLevel, err := LogLevel()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Notification:      *notification,
		Namespace:         os.Getenv("NAMESPACE"),
		InCluster:         inCluster,
		ResyncPeriod:      resyncPeriod,
		NotificationLevel: notificationLevel,
		NotifyOnStart:     notifyOnStart,
		HistoryTTL:        historyTTL,
		LogLevel:          logLevel,
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadNotification reads only the destination settings, for one-shot commands.
func LoadNotification() (*Notification, error) {
	url := os.Getenv("WS_URL")
	if url == "" {
		return nil, errors.New("WS_URL is required")
	}

	closeTimeout, err := secondsEnv("WS_CLOSE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	skipTLSVerify, err := boolEnv("WS_SKIP_TLS_VERIFY", false)
	if err != nil {
		return nil, err
	}

	phaseMode, err := notifier.ParsePhaseMode(os.Getenv("PHASE_MODE"))
	if err != nil {
		return nil, err
	}

	preBuildStatus, err := notifier.ParseStatusSource(os.Getenv("PRE_BUILD_STATUS"))
	if err != nil {
		return nil, err
	}

	symbol := os.Getenv("NOTIFIER")
	if symbol == "" {
		symbol = notifier.SymbolWebsocket
	}

	n := &Notification{
		Notifier:              symbol,
		URL:                   url,
		StartMessage:          os.Getenv("WS_START_MESSAGE"),
		AdditionalHTTPHeaders: os.Getenv("WS_ADDITIONAL_HTTP_HEADERS"),
		RootURL:               os.Getenv("ROOT_URL"),
		PhaseMode:             string(phaseMode),
		PreBuildStatus:        string(preBuildStatus),
		CloseTimeout:          closeTimeout,
		SkipTLSVerify:         skipTLSVerify,
	}
	if err := validate.Struct(n); err != nil {
		return nil, fmt.Errorf("invalid notification configuration: %w", err)
	}
	return n, nil
}

// LogLevel reads LOG_LEVEL, defaulting to info.
func LogLevel() (slog.Level, error) {
	var level slog.Level
	v := os.Getenv("LOG_LEVEL")
	if v == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got: %s", v)
	}
	return level, nil
}

func parseNotificationLevel(value string) (NotificationLevel, error) {
	if value == "" {
		return NotificationLevelAll, nil // default
	}

	switch NotificationLevel(value) {
	case NotificationLevelAll, NotificationLevelFailed:
		return NotificationLevel(value), nil
	default:
		return "", fmt.Errorf("NOTIFICATION_LEVEL must be 'all' or 'failed', got: %s", value)
	}
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean value", key)
	}
	return parsed, nil
}

func secondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (seconds)", key)
	}
	return time.Duration(seconds) * time.Second, nil
}
