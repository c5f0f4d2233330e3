package dockersidecar

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// sidecarRunner adapts the (lazily-assigned, post-PrepareEnvironment)
// sidecar container id into fs.Runner and exposes Exec for Transport.Schedule
// — the same exec/attach/inspect sequence dockerexec uses, written out again
// here rather than shared through a common type.
type sidecarRunner struct {
	client    *client.Client
	container string
	shell     string
	logger    *slog.Logger
}

func (r *sidecarRunner) Run(ctx context.Context, argv []string) (string, bool, error) {
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

	var output collector

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

func (r *sidecarRunner) CopyIn(ctx context.Context, src io.Reader, dst string) error {
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

	var drain collector
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

// Exec runs argv inside the sidecar container and returns a streaming
// ExecSession, mirroring dockerexec.execStream.
func (r *sidecarRunner) Exec(ctx context.Context, argv []string) (transport.ExecSession, error) {
	created, err := r.client.ContainerExecCreate(ctx, r.container, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker exec create: %w", err)
	}

	attached, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker exec attach: %w", err)
	}

	stdoutRead, stdoutWrite := io.Pipe()
	stderrRead, stderrWrite := io.Pipe()

	demuxDone := make(chan error, 1)

	go func() {
		_, copyErr := stdcopy.StdCopy(stdoutWrite, stderrWrite, attached.Reader)
		stdoutWrite.Close()
		stderrWrite.Close()
		demuxDone <- copyErr
	}()

	wait := func() transport.Result {
		copyErr := <-demuxDone

		inspection, inspectErr := r.client.ContainerExecInspect(ctx, created.ID)
		attached.Close()

		if inspectErr != nil {
			return transport.Result{Succeeded: false, Err: inspectErr}
		}

		if copyErr != nil && copyErr != io.EOF {
			return transport.Result{Succeeded: false, Err: copyErr}
		}

		return transport.Result{Succeeded: inspection.ExitCode == 0}
	}

	return transport.NewStreamSession(stdoutRead, stderrRead, wait, r.logger), nil
}

type collector struct {
	data []byte
}

func (c *collector) Write(p []byte) (int, error) {
	c.data = append(c.data, p...)

	return len(p), nil
}

func (c *collector) String() string {
	return string(c.data)
}

var _ fs.Runner = (*sidecarRunner)(nil)
