package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// successSentinel is appended to every wrapped remote command per spec §4.1
// / §6: Kubernetes (and, for symmetry, Docker) exec channels have
// historically unreliable exit-code reporting, so success is additionally
// confirmed by the trailer's presence in captured stdout.
const successSentinel = "@<br-exit-ok>"

// Runner is the narrow capability a transport exposes to let a Remote
// filesystem run POSIX utilities inside the target environment. Docker-exec
// and Kubernetes pod-exec each provide one grounded in their own exec
// primitive (container exec attach / remotecommand.NewSPDYExecutor).
type Runner interface {
	// Run executes argv inside the target and returns everything captured
	// from stdout+stderr together with whether the exec channel itself
	// reported a clean exit (for Kubernetes: no ExitCode cause in the
	// error channel; for Docker: exit code zero).
	Run(ctx context.Context, argv []string) (output string, channelOK bool, err error)

	// CopyIn streams src into dst inside the target, e.g. by piping stdin
	// into `sh -c "cat - > dst"`.
	CopyIn(ctx context.Context, src io.Reader, dst string) error
}

// Remote implements Filesystem by invoking standard POSIX utilities through
// a Runner's exec channel, grounded on bahub/transports/kubernetes.py's
// KubernetesPodFilesystem._exec's `exit_code_hack` sentinel wrapping (§4.1,
// §6 "Sentinel protocol").
type Remote struct {
	runner Runner
	logger *slog.Logger
}

// NewRemote wraps runner as a Filesystem. logger may be nil.
func NewRemote(runner Runner, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}

	return &Remote{runner: runner, logger: logger}
}

// runSentinel wraps argv as `sh -c "<argv...> && echo '@<br-exit-ok>'"`,
// executes it, and requires both the exec channel to report success and the
// sentinel to appear in captured output.
func (r *Remote) runSentinel(ctx context.Context, argv []string) error {
	wrapped := []string{"/bin/sh", "-c", strings.Join(quoteAll(argv), " ") + " && echo '" + successSentinel + "'"}

	output, channelOK, err := r.runner.Run(ctx, wrapped)
	if err != nil {
		return fmt.Errorf("running remote command: %w", err)
	}

	if !channelOK || !strings.Contains(output, successSentinel) {
		return &transport.ExecError{Output: output}
	}

	return nil
}

func quoteAll(argv []string) []string {
	quoted := make([]string, len(argv))

	for i, arg := range argv {
		quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}

	return quoted
}

func (r *Remote) ForceMkdir(ctx context.Context, path string) error {
	return r.runSentinel(ctx, []string{"mkdir", "-p", path})
}

func (r *Remote) Download(ctx context.Context, url, dst string) error {
	return r.runSentinel(ctx, []string{"curl", "-s", "-L", "--output", dst, url})
}

func (r *Remote) Delete(ctx context.Context, path string) error {
	if err := r.runSentinel(ctx, []string{"rm", path}); err != nil {
		var execErr *transport.ExecError
		if errors.As(err, &execErr) && strings.Contains(execErr.Output, "No such file or directory") {
			r.logger.Debug("remote.delete.absent", "path", path)

			return nil
		}

		return err
	}

	return nil
}

func (r *Remote) Link(ctx context.Context, src, dst string) error {
	return r.runSentinel(ctx, []string{"ln", "-s", src, dst})
}

func (r *Remote) MakeExecutable(ctx context.Context, path string) error {
	return r.runSentinel(ctx, []string{"chmod", "+x", path})
}

func (r *Remote) CopyTo(ctx context.Context, localPath, remotePath string) error {
	return copyLocalFileIn(ctx, r.runner, localPath, remotePath)
}

func (r *Remote) Pack(ctx context.Context, archive, srcDir string, files []string) error {
	if len(files) == 0 {
		files = []string{"*", ".*"}
	}

	argv := append([]string{"tar", "-zcf", archive, "-C", srcDir}, files...)

	return r.runSentinel(ctx, argv)
}

func (r *Remote) Unpack(ctx context.Context, archive, dstDir string) error {
	return r.runSentinel(ctx, []string{"tar", "xf", archive, "--directory", dstDir})
}

func (r *Remote) FileExists(ctx context.Context, path string) (bool, error) {
	if err := r.runSentinel(ctx, []string{"test", "-f", path}); err != nil {
		return false, nil
	}

	return true, nil
}

func (r *Remote) TempDirPath() string {
	return "/tmp/br-" + randomSuffix()
}

func (r *Remote) Move(ctx context.Context, src, dst string) error {
	return r.runSentinel(ctx, []string{"mv", src, dst})
}

var _ Filesystem = (*Remote)(nil)
