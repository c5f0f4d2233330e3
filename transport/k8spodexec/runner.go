package k8spodexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/client-go/util/exec"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// execRunner adapts a pod name into fs.Runner and an ExecStream method,
// grounded on bahub/transports/kubernetes.py's pod_exec +
// ExecResult.has_exited_with_success, which parses the SPDY error channel's
// yaml payload for an `ExitCode` cause.
type execRunner struct {
	clientset kubernetes.Interface
	config    *rest.Config
	pod       string
	namespace string
	logger    *slog.Logger
}

func (r *execRunner) newExecutor(argv []string, opts corev1.PodExecOptions) (remotecommand.Executor, error) {
	opts.Command = argv

	req := r.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(r.pod).
		Namespace(r.namespace).
		SubResource("exec").
		VersionedParams(&opts, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(r.config, "POST", req.URL())
	if err != nil {
		return nil, fmt.Errorf("creating pod exec executor: %w", err)
	}

	return executor, nil
}

func (r *execRunner) Run(ctx context.Context, argv []string) (string, bool, error) {
	executor, err := r.newExecutor(argv, corev1.PodExecOptions{Stdout: true, Stderr: true})
	if err != nil {
		return "", false, err
	}

	var output strings.Builder

	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &output,
		Stderr: &output,
	})

	return output.String(), channelSucceeded(err), nil
}

func (r *execRunner) CopyIn(ctx context.Context, src io.Reader, dst string) error {
	executor, err := r.newExecutor([]string{"/bin/sh", "-c", "cat - > " + dst}, corev1.PodExecOptions{
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return err
	}

	var output strings.Builder

	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  src,
		Stdout: &output,
		Stderr: &output,
	})
	if !channelSucceeded(err) {
		return fmt.Errorf("pod exec copy in failed: %s: %w", output.String(), err)
	}

	return nil
}

// ExecStream runs argv in the pod and returns a streaming ExecSession whose
// WaitFunc replicates ExecResult.has_exited_with_success: any error-channel
// cause with reason "ExitCode" and a message > 0 is a failure, as is any
// cause lacking a reason entirely.
func (r *execRunner) ExecStream(ctx context.Context, argv []string) (transport.ExecSession, error) {
	executor, err := r.newExecutor(argv, corev1.PodExecOptions{Stdout: true, Stderr: true})
	if err != nil {
		return nil, err
	}

	stdoutRead, stdoutWrite := io.Pipe()
	stderrRead, stderrWrite := io.Pipe()

	streamDone := make(chan error, 1)

	go func() {
		streamErr := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
			Stdout: stdoutWrite,
			Stderr: stderrWrite,
		})
		stdoutWrite.Close()
		stderrWrite.Close()
		streamDone <- streamErr
	}()

	wait := func() transport.Result {
		streamErr := <-streamDone

		return transport.Result{
			Succeeded: channelSucceeded(streamErr),
			Err:       streamErr,
		}
	}

	return transport.NewStreamSession(stdoutRead, stderrRead, wait, r.logger), nil
}

// channelSucceeded classifies a remotecommand stream error the way the
// Python ExecResult.has_exited_with_success does: a nil error is success; a
// client-go exec.CodeExitError with a non-zero code is failure; anything
// else is conservatively treated as failure too, since the error channel's
// cause could not be classified as a clean exit.
func channelSucceeded(err error) bool {
	if err == nil {
		return true
	}

	var codeErr exec.CodeExitError
	if errors.As(err, &codeErr) {
		return codeErr.Code == 0
	}

	return false
}

var _ fs.Runner = (*execRunner)(nil)
