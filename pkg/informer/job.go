package informer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/build"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/config"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/envexpand"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/history"
	"github.com/schnell3526/k8s-job-ws-notify/pkg/notifier"
)

const notifyTimeout = 30 * time.Second

type Options struct {
	Namespace         string
	ResyncPeriod      time.Duration
	NotificationLevel config.NotificationLevel
	NotifyOnStart     bool
	// BaseEnv seeds the environment of every run, usually the process environment.
	BaseEnv map[string]string
}

// JobInformer turns Kubernetes Job lifecycle changes into build notifications:
// a new Job is a build starting, a Job reaching success or failure is a build
// completing.
type JobInformer struct {
	clientset kubernetes.Interface
	notifier  notifier.Notifier
	history   *history.Store
	opts      Options
	logger    *slog.Logger

	notifiedJobs map[string]struct{}
	mu           sync.Mutex
}

func NewJobInformer(
	clientset kubernetes.Interface,
	notifier notifier.Notifier,
	history *history.Store,
	opts Options,
	logger *slog.Logger,
) *JobInformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobInformer{
		clientset:    clientset,
		notifier:     notifier,
		history:      history,
		opts:         opts,
		logger:       logger,
		notifiedJobs: make(map[string]struct{}),
	}
}

func (j *JobInformer) Run(ctx context.Context) error {
	var factory informers.SharedInformerFactory
	if j.opts.Namespace == "" {
		factory = informers.NewSharedInformerFactory(j.clientset, j.opts.ResyncPeriod)
	} else {
		factory = informers.NewSharedInformerFactoryWithOptions(
			j.clientset,
			j.opts.ResyncPeriod,
			informers.WithNamespace(j.opts.Namespace),
		)
	}

	jobInformer := factory.Batch().V1().Jobs().Informer()

	_, err := jobInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    j.handleJobAdd,
		UpdateFunc: j.handleJobUpdate,
		DeleteFunc: j.handleJobDelete,
	})
	if err != nil {
		return err
	}

	j.logger.Info("starting job informer",
		"namespace", j.namespaceLogValue(),
		"resync_period", j.opts.ResyncPeriod,
		"notify_on_start", j.opts.NotifyOnStart,
	)

	factory.Start(ctx.Done())
	factory.WaitForCacheSync(ctx.Done())

	<-ctx.Done()
	factory.Shutdown()
	j.logger.Info("job informer stopped")
	return nil
}

func (j *JobInformer) handleJobAdd(obj interface{}) {
	job, ok := obj.(*batchv1.Job)
	if !ok {
		return
	}

	jobName := jobNameOf(job)
	if result, finished := jobResult(job); finished {
		// finished before we saw it; only its result is of interest
		j.history.Complete(jobName, string(job.UID), result)
		return
	}

	run := j.runFor(job, "")
	if !j.opts.NotifyOnStart || !j.markAsNotified(jobKeyFunc(job), notifier.HookPreBuild) {
		return
	}

	j.logger.Info("job started, sending notification",
		"job", job.Name,
		"namespace", job.Namespace,
		"build", run.Number,
	)
	j.notify(notifier.HookPreBuild, job, run)
}

func (j *JobInformer) handleJobUpdate(oldObj, newObj interface{}) {
	oldJob, ok := oldObj.(*batchv1.Job)
	if !ok {
		return
	}
	newJob, ok := newObj.(*batchv1.Job)
	if !ok {
		return
	}

	if _, wasFinished := jobResult(oldJob); wasFinished {
		return
	}
	result, finished := jobResult(newJob)
	if !finished {
		return
	}

	run := j.runFor(newJob, result)
	j.history.Complete(jobNameOf(newJob), string(newJob.UID), result)

	succeeded := result == build.ResultSuccess
	if succeeded && !j.opts.NotificationLevel.ShouldNotifySuccess() {
		return
	}
	if !succeeded && !j.opts.NotificationLevel.ShouldNotifyFailure() {
		return
	}
	if !j.markAsNotified(jobKeyFunc(newJob), notifier.HookPostBuild) {
		return
	}

	j.logger.Info("job finished, sending notification",
		"job", newJob.Name,
		"namespace", newJob.Namespace,
		"build", run.Number,
		"result", result,
	)
	j.notify(notifier.HookPostBuild, newJob, run)
}

// handleJobDelete releases what was kept for the Job. Its job's numbering and
// latest result stay in history.
func (j *JobInformer) handleJobDelete(obj interface{}) {
	if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	job, ok := obj.(*batchv1.Job)
	if !ok {
		return
	}

	key := jobKeyFunc(job)
	j.mu.Lock()
	delete(j.notifiedJobs, notifiedKey(key, notifier.HookPreBuild))
	delete(j.notifiedJobs, notifiedKey(key, notifier.HookPostBuild))
	j.mu.Unlock()

	j.history.Forget(jobNameOf(job), string(job.UID))
}

func (j *JobInformer) notify(hook notifier.Hook, job *batchv1.Job, run build.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := j.notifier.NotifyBuild(ctx, hook, run); err != nil {
		j.logger.Error("failed to send build notification",
			"job", job.Name,
			"namespace", job.Namespace,
			"hook", hook.String(),
			"error", err,
		)
	}
}

// runFor describes job as a build. The build number and previous result come from
// the history of its job name.
func (j *JobInformer) runFor(job *batchv1.Job, result build.Result) build.Run {
	jobName := jobNameOf(job)
	number, previous := j.history.Assign(jobName, string(job.UID))

	jobURL := fmt.Sprintf("job/%s/%s/", job.Namespace, jobName)
	buildURL := fmt.Sprintf("%s%d/", jobURL, number)

	env := envexpand.Merge(j.opts.BaseEnv, containerEnv(job), map[string]string{
		"JOB_NAME":     jobName,
		"JOB_URL":      jobURL,
		"BUILD_NUMBER": strconv.Itoa(number),
		"BUILD_ID":     job.Name,
		"BUILD_URL":    buildURL,
		"NAMESPACE":    job.Namespace,
	})

	return build.Run{
		JobName:        jobName,
		JobURL:         jobURL,
		Number:         number,
		URL:            buildURL,
		Result:         result,
		PreviousResult: previous,
		Env:            env,
	}
}

// jobResult maps the Job status onto a build result. The bool is false while the
// Job is still running.
func jobResult(job *batchv1.Job) (build.Result, bool) {
	for _, condition := range job.Status.Conditions {
		if condition.Status != corev1.ConditionTrue {
			continue
		}
		switch condition.Type {
		case batchv1.JobComplete:
			return build.ResultSuccess, true
		case batchv1.JobFailed:
			if condition.Reason == "DeadlineExceeded" {
				return build.ResultAborted, true
			}
			return build.ResultFailure, true
		}
	}
	if job.Status.Succeeded > 0 && job.Status.Active == 0 {
		return build.ResultSuccess, true
	}
	return "", false
}

// jobNameOf groups Jobs created by the same CronJob under the CronJob's name.
func jobNameOf(job *batchv1.Job) string {
	for _, owner := range job.OwnerReferences {
		if owner.Kind == "CronJob" {
			return owner.Name
		}
	}
	return job.Name
}

// containerEnv collects literal env values of the Job's containers.
func containerEnv(job *batchv1.Job) map[string]string {
	env := make(map[string]string)
	for _, container := range job.Spec.Template.Spec.Containers {
		for _, e := range container.Env {
			if e.ValueFrom == nil {
				env[e.Name] = e.Value
			}
		}
	}
	return env
}

// markAsNotified records the hook for key and reports whether it was new.
func (j *JobInformer) markAsNotified(key string, hook notifier.Hook) bool {
	k := notifiedKey(key, hook)

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.notifiedJobs[k]; exists {
		return false
	}
	j.notifiedJobs[k] = struct{}{}
	return true
}

func notifiedKey(key string, hook notifier.Hook) string {
	return key + "#" + hook.String()
}

func (j *JobInformer) namespaceLogValue() string {
	if j.opts.Namespace == "" {
		return "all"
	}
	return j.opts.Namespace
}

// jobKeyFunc includes the UID so a recreated Job with the same name is a new build.
func jobKeyFunc(job *batchv1.Job) string {
	return job.Namespace + "/" + job.Name + "/" + string(job.UID)
}
