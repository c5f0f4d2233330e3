// Package k8spodexec implements the Kubernetes Pod-Exec Transport (C7):
// locates a pod by selector, waits for readiness, stages deps, execs the
// command. Grounded on bahub/transports/kubernetes_podexec.py and
// bahub/transports/kubernetes.py (find_pod_name, wait_for_pod_to_be_ready,
// pod_exec, KubernetesPodFilesystem), with client construction following
// orchestra/k8s.K8s.NewK8s's in-cluster-then-kubeconfig fallback.
package k8spodexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/binarycache"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

const (
	// TargetBinPath and TargetVersionsPath are the fixed PATH locations
	// inside the pod, shared with k8ssidecar which composes this package.
	TargetBinPath      = "/opt/br/bin"
	TargetVersionsPath = TargetBinPath + "/.versions"
	localCachePath     = "/var/cache/br-backup-controller/bin"

	defaultTimeoutSeconds = 120
)

// Options is the decoded TransportSpec for k8s-pod-exec: §6 lists
// {namespace=default, selector (required), timeout=120}.
type Options struct {
	Namespace string `validate:"required"`
	Selector  string `validate:"required"`
	Timeout   int
}

// Transport execs into an existing, running pod located by label selector.
type Transport struct {
	Logger    *slog.Logger
	Clientset kubernetes.Interface
	Config    *rest.Config

	Namespace string
	Selector  string
	Timeout   time.Duration

	cache *binarycache.Cache
}

// New constructs the k8s-pod-exec transport.
func New(spec transport.Spec, logger *slog.Logger) (transport.Transport, error) {
	timeout, err := spec.GetInt("timeout", defaultTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	options := Options{
		Namespace: spec.Get("namespace", "default"),
		Selector:  spec.Get("selector", ""),
		Timeout:   timeout,
	}

	if err := transport.ValidateOptions(options); err != nil {
		return nil, err
	}

	clientset, config, err := newClientset(spec)
	if err != nil {
		return nil, err
	}

	transportLogger := logger.With("transport", "k8s-pod-exec", "namespace", options.Namespace, "selector", options.Selector)

	return &Transport{
		Logger:    transportLogger,
		Clientset: clientset,
		Config:    config,
		Namespace: options.Namespace,
		Selector:  options.Selector,
		Timeout:   time.Duration(options.Timeout) * time.Second,
		cache:     binarycache.New(fs.NewLocal(transportLogger), localCachePath, localCachePath+"/.versions"),
	}, nil
}

// newClientset tries in-cluster config first, falling back to a kubeconfig
// — optionally at the path given by the "kubeconfig" spec key — mirroring
// orchestra/k8s.NewK8s.
func newClientset(spec transport.Spec) (*kubernetes.Clientset, *rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()

		if kubeconfigPath := spec.Get("kubeconfig", ""); kubeconfigPath != "" {
			loadingRules.ExplicitPath = kubeconfigPath
		}

		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})

		config, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("loading kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("creating kubernetes client: %w", err)
	}

	return clientset, config, nil
}

func (t *Transport) Name() string { return "k8s-pod-exec" }

// FindPodName returns the first pod matching selector in namespace
// (bahub/transports/kubernetes.py: find_pod_name).
func (t *Transport) FindPodName(ctx context.Context, selector, namespace string) (string, error) {
	pods, err := t.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
		Limit:         1,
	})
	if err != nil {
		return "", fmt.Errorf("listing pods: %w", err)
	}

	if len(pods.Items) == 0 {
		return "", &transport.PodNotFoundError{Selector: selector, Namespace: namespace}
	}

	name := pods.Items[0].Name
	t.Logger.Debug("pod.found", "name", name, "namespace", namespace)

	return name, nil
}

// WaitForPodReady polls the pod every second up to t.Timeout, requiring
// phase-readiness followed by every container reporting running (§4.7).
func (t *Transport) WaitForPodReady(ctx context.Context, name, namespace string) error {
	deadline := time.Now().Add(t.Timeout)

	for time.Now().Before(deadline) {
		pod, err := t.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("reading pod %q: %w", name, err)
		}

		if isPhaseReady(pod.Status.Phase) {
			if err := t.waitForContainersReady(ctx, name, namespace, deadline); err != nil {
				return err
			}

			t.Logger.Info("pod.ready", "name", name, "phase", pod.Status.Phase)

			return nil
		}

		t.Logger.Debug("pod.not.ready", "name", name, "phase", pod.Status.Phase)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pod %q: %w", name, ctx.Err())
		case <-time.After(time.Second):
		}
	}

	return &transport.PodReadinessTimeoutError{Name: name, Namespace: namespace}
}

func isPhaseReady(phase corev1.PodPhase) bool {
	switch phase {
	case corev1.PodRunning, "Ready", "Healthy", "True":
		return true
	default:
		return false
	}
}

func (t *Transport) waitForContainersReady(ctx context.Context, name, namespace string, deadline time.Time) error {
	for time.Now().Before(deadline) {
		pod, err := t.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("reading pod %q: %w", name, err)
		}

		allReady := len(pod.Status.ContainerStatuses) > 0

		for _, status := range pod.Status.ContainerStatuses {
			if status.State.Running == nil || status.State.Waiting != nil || status.State.Terminated != nil {
				allReady = false

				break
			}
		}

		if allReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pod %q containers: %w", name, ctx.Err())
		case <-time.After(time.Second):
		}
	}

	return &transport.PodReadinessTimeoutError{Name: name, Namespace: namespace}
}

// PrepareEnvironment finds the pod, waits for readiness, then stages keys
// and binaries (§4.7). It records no pod identity on Transport — k8spodexec
// targets an existing, long-lived pod, so Schedule and Release each
// re-locate it by selector.
func (t *Transport) PrepareEnvironment(ctx context.Context, binaries []transport.RequiredBinary, definition transport.BackupDefinition) error {
	podName, err := t.FindPodName(ctx, t.Selector, t.Namespace)
	if err != nil {
		return err
	}

	return t.stage(ctx, podName, t.Namespace, binaries, definition)
}

// PrepareExisting runs the same readiness-wait-then-stage sequence as
// PrepareEnvironment against a caller-supplied pod name and namespace,
// rather than one found by selector. k8ssidecar composes this to stage its
// freshly created temporary pod (§9 composition-by-delegation).
func (t *Transport) PrepareExisting(ctx context.Context, podName, namespace string, binaries []transport.RequiredBinary, definition transport.BackupDefinition) error {
	return t.stage(ctx, podName, namespace, binaries, definition)
}

// stage waits for podName's readiness and copies keys/binaries into it. It
// is reused by k8ssidecar for its own temporary pod (§9
// composition-by-delegation).
func (t *Transport) stage(ctx context.Context, podName, namespace string, binaries []transport.RequiredBinary, definition transport.BackupDefinition) error {
	if err := t.WaitForPodReady(ctx, podName, namespace); err != nil {
		return err
	}

	runner := &execRunner{clientset: t.Clientset, config: t.Config, pod: podName, namespace: namespace, logger: t.Logger}
	remoteFS := fs.NewRemote(runner, t.Logger)

	if err := t.cache.DownloadRequiredTools(ctx, binaries); err != nil {
		return err
	}

	local := fs.NewLocal(t.Logger)

	if enc := definition.Encryption(); enc != nil {
		if err := binarycache.CopyEncryptionKeys(ctx, local, remoteFS, enc.PublicKeyPath(), enc.PrivateKeyPath()); err != nil {
			return err
		}
	}

	return t.cache.TransferToTarget(ctx, remoteFS, TargetBinPath, TargetVersionsPath, binaries)
}

// Schedule execs the assembled argv in the first pod currently matching the
// selector, looked up again rather than remembered from PrepareEnvironment.
func (t *Transport) Schedule(
	ctx context.Context, command string, definition transport.BackupDefinition, isBackup bool, version string,
) (transport.ExecSession, error) {
	podName, err := t.FindPodName(ctx, t.Selector, t.Namespace)
	if err != nil {
		return nil, err
	}

	return t.ScheduleInPod(ctx, podName, command, definition, isBackup, version)
}

// ScheduleInPod is the shared "assemble command, exec in pod" step k8ssidecar
// reuses against its own temporary pod name.
func (t *Transport) ScheduleInPod(
	ctx context.Context, podName, command string, definition transport.BackupDefinition, isBackup bool, version string,
) (transport.ExecSession, error) {
	publicKey, privateKey := "", ""

	if enc := definition.Encryption(); enc != nil {
		if enc.PublicKeyPath() != "" {
			publicKey = "/tmp/.gpg.pub"
		}

		if enc.PrivateKeyPath() != "" {
			privateKey = "/tmp/.gpg.key"
		}
	}

	argv := transport.AssembleCommand(command, definition, isBackup, version, TargetBinPath, publicKey, privateKey)

	runner := &execRunner{clientset: t.Clientset, config: t.Config, pod: podName, namespace: t.Namespace, logger: t.Logger}

	return runner.ExecStream(ctx, argv)
}

// Release attempts to wipe the staged encryption key material from the pod
// (§4.7's documented gap in the source: the Python transport never did this
// at all). The pod is re-located by selector since Transport keeps no
// per-Schedule state; if that lookup fails the pod is assumed gone already
// and cleanup is skipped. Every failure here is logged, not fatal — key
// wipe is best-effort, not a precondition for Release succeeding.
func (t *Transport) Release(ctx context.Context) error {
	podName, err := t.FindPodName(ctx, t.Selector, t.Namespace)
	if err != nil {
		t.Logger.Debug("release: pod lookup failed, skipping key cleanup", "error", err)

		return nil
	}

	runner := &execRunner{clientset: t.Clientset, config: t.Config, pod: podName, namespace: t.Namespace, logger: t.Logger}
	remoteFS := fs.NewRemote(runner, t.Logger)

	for _, path := range []string{"/tmp/.gpg.pub", "/tmp/.gpg.key"} {
		if err := remoteFS.Delete(ctx, path); err != nil {
			t.Logger.Error("release: failed to delete key material", "path", path, "error", err)
		}
	}

	return nil
}

func init() {
	transport.Add("k8s-pod-exec", New)
}

var _ transport.Transport = (*Transport)(nil)
