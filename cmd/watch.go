package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/config"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/envexpand"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/history"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/informer"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
)

type watchCmd struct{}

func (c *watchCmd) Run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Info("loaded configuration",
		"notifier", cfg.Notification.Notifier,
		"namespace", namespaceLogValue(cfg.Namespace),
		"in_cluster", cfg.InCluster,
		"resync_period", cfg.ResyncPeriod,
		"notification_level", cfg.NotificationLevel,
		"phase_mode", cfg.Notification.PhaseMode,
		"pre_build_status", cfg.Notification.PreBuildStatus,
	)

	buildNotifier, err := newNotifier(cfg.Notification, logger)
	if err != nil {
		return err
	}

	k8sConfig, err := buildK8sConfig(cfg.InCluster)
	if err != nil {
		return err
	}

	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return err
	}

	jobInformer := informer.NewJobInformer(
		clientset,
		buildNotifier,
		history.New(cfg.HistoryTTL),
		informer.Options{
			Namespace:         cfg.Namespace,
			ResyncPeriod:      cfg.ResyncPeriod,
			NotificationLevel: cfg.NotificationLevel,
			NotifyOnStart:     cfg.NotifyOnStart,
			BaseEnv:           envexpand.Environ(),
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	return jobInformer.Run(ctx)
}

// newNotifier resolves the configured destination and reports questionable
// settings as warnings; templated values may only become valid once expanded.
func newNotifier(cfg config.Notification, logger *slog.Logger) (notifier.Notifier, error) {
	descriptor, found := notifier.DefaultRegistry.Lookup(cfg.Notifier)
	if !found {
		return nil, fmt.Errorf("unknown notifier %q, known: %v", cfg.Notifier, notifier.DefaultRegistry.Symbols())
	}

	for field, value := range map[string]string{
		"url":                   cfg.URL,
		"startMessage":          cfg.StartMessage,
		"additionalHttpHeaders": cfg.AdditionalHTTPHeaders,
	} {
		if v := descriptor.Validate(field, value); v.Kind != notifier.KindOK {
			logger.Warn("configuration check", "field", field, "result", v.String())
		}
	}

	return descriptor.New(cfg.NotifierConfig(), logger), nil
}

func buildK8sConfig(inCluster bool) (*rest.Config, error) {
	if inCluster {
		return rest.InClusterConfig()
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		kubeconfig = home + "/.kube/config"
	}

	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

func namespaceLogValue(namespace string) string {
	if namespace == "" {
		return "all"
	}
	return namespace
}
