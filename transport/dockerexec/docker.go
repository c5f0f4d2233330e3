// Package dockerexec implements the Docker Exec Transport (C5): runs the
// backup command inside an already-running container via `docker exec`,
// grounded on orchestra/docker.Docker's client construction (SSH
// connhelper, API version negotiation) and on
// bahub/transports/kubernetes.py's sentinel-wrapped remote-filesystem
// pattern, carried over to Docker for the same exec-channel reliability
// reasons.
package dockerexec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/cli/cli/connhelper"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/binarycache"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

const (
	targetBinPath      = "/opt/br/bin"
	targetVersionsPath = targetBinPath + "/.versions"
	localCachePath     = "/var/cache/br-backup-controller/bin"
)

// Options is the decoded TransportSpec for docker-exec: §6 lists
// {container, shell}.
type Options struct {
	Container string `validate:"required"`
	Shell     string `validate:"required"`
}

// Transport execs into an existing, already-running container.
type Transport struct {
	logger    *slog.Logger
	client    *client.Client
	container string
	shell     string
	cache     *binarycache.Cache
	remoteFS  *fs.Remote
}

// New constructs the docker-exec transport, negotiating an API client the
// same way orchestra/docker.NewDocker does (SSH connhelper when DOCKER_HOST
// is an ssh:// URL, plain client.FromEnv otherwise).
func New(spec transport.Spec, logger *slog.Logger) (transport.Transport, error) {
	options := Options{
		Container: spec.Get("container", ""),
		Shell:     spec.Get("shell", "/bin/sh"),
	}

	if err := transport.ValidateOptions(options); err != nil {
		return nil, err
	}

	cli, err := newClient()
	if err != nil {
		return nil, err
	}

	transportLogger := logger.With("transport", "docker-exec", "container", options.Container)

	runner := &execRunner{client: cli, container: options.Container, shell: options.Shell}
	remoteFS := fs.NewRemote(runner, transportLogger)

	return &Transport{
		logger:    transportLogger,
		client:    cli,
		container: options.Container,
		shell:     options.Shell,
		cache:     binarycache.New(fs.NewLocal(transportLogger), localCachePath, localCachePath+"/.versions"),
		remoteFS:  remoteFS,
	}, nil
}

func newClient() (*client.Client, error) {
	var opts []client.Opt

	dockerHost := os.Getenv("DOCKER_HOST")
	if strings.HasPrefix(dockerHost, "ssh://") {
		helper, err := connhelper.GetConnectionHelper(dockerHost)
		if err != nil {
			return nil, fmt.Errorf("failed to get connection helper: %w", err)
		}

		httpClient := &http.Client{
			Transport: &http.Transport{DialContext: helper.Dialer},
		}

		opts = append(opts,
			client.WithHTTPClient(httpClient),
			client.WithHost(helper.Host),
			client.WithDialContext(helper.Dialer),
			client.WithAPIVersionNegotiation(),
		)
	} else {
		opts = append(opts, client.FromEnv, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return cli, nil
}

func (t *Transport) Name() string { return "docker-exec" }

// PrepareEnvironment confirms the container exists and is running (§4.5),
// then stages encryption keys and required binaries into it.
func (t *Transport) PrepareEnvironment(ctx context.Context, binaries []transport.RequiredBinary, definition transport.BackupDefinition) error {
	inspection, err := t.client.ContainerInspect(ctx, t.container)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return transport.ErrContainerNotFound
		}

		return fmt.Errorf("inspecting container %q: %w", t.container, err)
	}

	if inspection.State == nil || !inspection.State.Running {
		status := "unknown"
		if inspection.State != nil {
			status = inspection.State.Status
		}

		return &transport.ContainerNotRunningError{Status: status}
	}

	if err := t.cache.DownloadRequiredTools(ctx, binaries); err != nil {
		return err
	}

	local := fs.NewLocal(t.logger)

	if enc := definition.Encryption(); enc != nil {
		if err := binarycache.CopyEncryptionKeys(ctx, local, t.remoteFS, enc.PublicKeyPath(), enc.PrivateKeyPath()); err != nil {
			return err
		}
	}

	return t.cache.TransferToTarget(ctx, t.remoteFS, targetBinPath, targetVersionsPath, binaries)
}

// Schedule runs the assembled argv inside the container via `docker exec`.
func (t *Transport) Schedule(
	ctx context.Context, command string, definition transport.BackupDefinition, isBackup bool, version string,
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

	argv := transport.AssembleCommand(command, definition, isBackup, version, targetBinPath, publicKey, privateKey)

	return execStream(ctx, t.client, t.container, argv, t.logger)
}

// Release is a no-op: the target container is long-lived and owned by
// whatever created it (§4.5).
func (t *Transport) Release(_ context.Context) error {
	return nil
}

func init() {
	transport.Add("docker-exec", New)
}

var _ transport.Transport = (*Transport)(nil)

// execStream launches argv inside containerID and returns a StreamSession
// whose WaitFunc inspects the exec's exit code once both streams are
// drained.
func execStream(
	ctx context.Context, cli *client.Client, containerID string, argv []string, logger *slog.Logger,
) (transport.ExecSession, error) {
	created, err := cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker exec create: %w", err)
	}

	attached, err := cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
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

		inspection, inspectErr := cli.ContainerExecInspect(ctx, created.ID)
		attached.Close()

		if inspectErr != nil {
			return transport.Result{Succeeded: false, Err: inspectErr}
		}

		if copyErr != nil && copyErr != io.EOF {
			return transport.Result{Succeeded: false, Err: copyErr}
		}

		return transport.Result{Succeeded: inspection.ExitCode == 0}
	}

	return transport.NewStreamSession(stdoutRead, stderrRead, wait, logger), nil
}
