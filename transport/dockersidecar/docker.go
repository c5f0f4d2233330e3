// Package dockersidecar implements the Docker Sidecar Transport (C6):
// launches a temporary container sharing volumes with an original
// container, runs the command, tears it down. Grounded on
// orchestra/docker's ContainerCreate/ContainerStart pattern (§4.6) and on
// dockerexec's exec/runner plumbing, which this package implements again in
// its own sidecarRunner rather than sharing code with dockerexec.
package dockersidecar

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
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/binarycache"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

const (
	targetBinPath      = "/opt/br/bin"
	targetVersionsPath = targetBinPath + "/.versions"
	localCachePath     = "/var/cache/br-backup-controller/bin"
)

// Options is the decoded TransportSpec for docker-sidecar: §6 lists
// {orig_container, temp_container_image, shell}.
type Options struct {
	OrigContainer      string `validate:"required"`
	TempContainerImage string `validate:"required"`
	Shell              string `validate:"required"`
}

// Transport launches a fresh container sharing the original container's
// volumes, runs the command inside it, and force-removes it on release.
type Transport struct {
	logger        *slog.Logger
	client        *client.Client
	origContainer string
	image         string
	shell         string
	cache         *binarycache.Cache
	remoteFS      *fs.Remote
	runner        *sidecarRunner

	sidecarID string
}

func New(spec transport.Spec, logger *slog.Logger) (transport.Transport, error) {
	options := Options{
		OrigContainer:      spec.Get("orig_container", ""),
		TempContainerImage: spec.Get("temp_container_image", ""),
		Shell:              spec.Get("shell", "/bin/sh"),
	}

	if err := transport.ValidateOptions(options); err != nil {
		return nil, err
	}

	cli, err := newClient()
	if err != nil {
		return nil, err
	}

	transportLogger := logger.With("transport", "docker-sidecar", "origContainer", options.OrigContainer)

	runner := &sidecarRunner{client: cli, shell: options.Shell, logger: transportLogger}

	return &Transport{
		logger:        transportLogger,
		client:        cli,
		origContainer: options.OrigContainer,
		image:         options.TempContainerImage,
		shell:         options.Shell,
		cache:         binarycache.New(fs.NewLocal(transportLogger), localCachePath, localCachePath+"/.versions"),
		remoteFS:      fs.NewRemote(runner, transportLogger),
		runner:        runner,
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

		httpClient := &http.Client{Transport: &http.Transport{DialContext: helper.Dialer}}

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

func (t *Transport) Name() string { return "docker-sidecar" }

// PrepareEnvironment launches the temporary sidecar container with
// `--volumes-from <orig_container>`, then stages keys and binaries into it
// (§4.6).
func (t *Transport) PrepareEnvironment(ctx context.Context, binaries []transport.RequiredBinary, definition transport.BackupDefinition) error {
	reader, err := t.client.ImagePull(ctx, t.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling sidecar image %q: %w", t.image, err)
	}

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pulling sidecar image %q: %w", t.image, err)
	}

	reader.Close()

	name := "br-sidecar-" + t.origContainer

	created, err := t.client.ContainerCreate(
		ctx,
		&container.Config{
			Image:      t.image,
			Entrypoint: []string{t.shell},
			Cmd:        []string{"-c", "sleep infinity"},
		},
		&container.HostConfig{
			VolumesFrom: []string{t.origContainer},
		},
		nil, nil, name,
	)
	if err != nil {
		if errdefs.IsConflict(err) {
			return &transport.ContainerCreationConflictError{Name: name}
		}

		return fmt.Errorf("creating sidecar container: %w", err)
	}

	if err := t.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting sidecar container: %w", err)
	}

	t.sidecarID = created.ID
	t.runner.container = created.ID

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

	return t.runner.Exec(ctx, argv)
}

// Release force-removes the sidecar container; this must run on every exit
// path (§4.6).
func (t *Transport) Release(ctx context.Context) error {
	if t.sidecarID == "" {
		return nil
	}

	err := t.client.ContainerRemove(ctx, t.sidecarID, container.RemoveOptions{Force: true})
	if err != nil {
		return fmt.Errorf("removing sidecar container: %w", err)
	}

	t.sidecarID = ""

	return nil
}

func init() {
	transport.Add("docker-sidecar", New)
}

var _ transport.Transport = (*Transport)(nil)
