package dockerexec

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// execRunner adapts a docker client + container id into fs.Runner, so the
// Remote filesystem's sentinel-wrapped POSIX operations (§4.1) can run
// through `docker exec` the same way the transport's own Schedule does.
type execRunner struct {
	client    *client.Client
	container string
	shell     string
}

func (r *execRunner) Run(ctx context.Context, argv []string) (string, bool, error) {
	created, err := r.client.ContainerExecCreate(ctx, r.container, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", false, fmt.Errorf("docker exec create: %w", err)
	}

	attached, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", false, fmt.Errorf("docker exec attach: %w", err)
	}
	defer attached.Close()

	var output writerCollector

	_, err = stdcopy.StdCopy(&output, &output, attached.Reader)
	if err != nil && err != io.EOF {
		return output.String(), false, fmt.Errorf("docker exec stream: %w", err)
	}

	inspection, err := r.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return output.String(), false, fmt.Errorf("docker exec inspect: %w", err)
	}

	return output.String(), inspection.ExitCode == 0, nil
}

func (r *execRunner) CopyIn(ctx context.Context, src io.Reader, dst string) error {
	created, err := r.client.ContainerExecCreate(ctx, r.container, container.ExecOptions{
		Cmd:          []string{r.shell, "-c", "cat - > " + dst},
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("docker exec create (copy in): %w", err)
	}

	attached, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("docker exec attach (copy in): %w", err)
	}
	defer attached.Close()

	if _, err := io.CopyBuffer(attached.Conn, src, make([]byte, 1024*1024)); err != nil {
		return fmt.Errorf("docker exec copy in: %w", err)
	}

	if err := attached.CloseWrite(); err != nil {
		return fmt.Errorf("docker exec copy in: %w", err)
	}

	var drain writerCollector
	_, _ = stdcopy.StdCopy(&drain, &drain, attached.Reader)

	inspection, err := r.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("docker exec inspect (copy in): %w", err)
	}

	if inspection.ExitCode != 0 {
		return fmt.Errorf("docker exec copy in: non-zero exit code %d: %s", inspection.ExitCode, drain.String())
	}

	return nil
}

// writerCollector is an io.Writer that also reports its accumulated
// content, used to capture demuxed stdout+stderr together for the sentinel
// check (§4.1).
type writerCollector struct {
	data []byte
}

func (w *writerCollector) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)

	return len(p), nil
}

func (w *writerCollector) String() string {
	return string(w.data)
}

var _ fs.Runner = (*execRunner)(nil)
