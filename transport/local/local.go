// Package local implements the Local Shell Transport (C4): runs the backup
// command as a subprocess on the controller host, grounded on the teacher's
// orchestra/native driver (os/exec.CommandContext + a goroutine feeding an
// error channel).
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/binarycache"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// defaultCachePath is the fixed local cache path referenced by spec §4.4
// ("binaries live under a fixed local cache path").
const defaultCachePath = "/var/cache/br-backup-controller/bin"

// Options is the decoded TransportSpec for the shell transport: §6 lists
// only {shell}.
type Options struct {
	Shell string `validate:"required"`
}

// Transport runs the backup-maker as a local subprocess using the
// configured shell.
type Transport struct {
	logger  *slog.Logger
	shell   string
	fs      *fs.Local
	cache   *binarycache.Cache
	binPath string
}

// New constructs the local shell transport from a decoded TransportSpec.
func New(spec transport.Spec, logger *slog.Logger) (transport.Transport, error) {
	shell := spec.Get("shell", "/bin/sh")

	if err := transport.ValidateOptions(Options{Shell: shell}); err != nil {
		return nil, err
	}

	local := fs.NewLocal(logger)
	binPath := defaultCachePath
	versionsPath := filepath.Join(binPath, ".versions")

	return &Transport{
		logger:  logger.With("transport", "local"),
		shell:   shell,
		fs:      local,
		cache:   binarycache.New(local, binPath, versionsPath),
		binPath: binPath,
	}, nil
}

func (t *Transport) Name() string { return "local" }

// PrepareEnvironment runs C2's local-cache staging and points each
// <binPath>/<filename> symlink at its versioned cache slot, which is where
// the assembled argv looks for the binary. A local transport runs directly
// against the controller host, so no key or binary transfer step is needed
// (§4.4).
func (t *Transport) PrepareEnvironment(ctx context.Context, binaries []transport.RequiredBinary, _ transport.BackupDefinition) error {
	if err := t.cache.DownloadRequiredTools(ctx, binaries); err != nil {
		return err
	}

	for _, binary := range binaries {
		link := filepath.Join(t.binPath, binary.Filename)

		if err := t.fs.Delete(ctx, link); err != nil {
			return err
		}

		if err := t.fs.Link(ctx, filepath.Join(t.binPath, ".versions", binary.CacheKey()), link); err != nil {
			return err
		}
	}

	return nil
}

// Schedule spawns the assembled argv as a local subprocess through the
// configured shell.
func (t *Transport) Schedule(
	ctx context.Context, command string, definition transport.BackupDefinition, isBackup bool, version string,
) (transport.ExecSession, error) {
	publicKey, privateKey := "", ""

	if enc := definition.Encryption(); enc != nil {
		publicKey = enc.PublicKeyPath()
		privateKey = enc.PrivateKeyPath()
	}

	argv := transport.AssembleCommand(command, definition, isBackup, version, t.binPath, publicKey, privateKey)

	//nolint:gosec
	cmd := exec.CommandContext(ctx, t.shell, "-c", shellJoin(argv))
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("local schedule: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("local schedule: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("local schedule: %w", err)
	}

	wait := func() transport.Result {
		err := cmd.Wait()

		return transport.Result{
			Succeeded: err == nil && cmd.ProcessState.Success(),
			Err:       err,
		}
	}

	return transport.NewStreamSession(stdout, stderr, wait, t.logger), nil
}

// Release is a no-op: a local subprocess owns no cluster/daemon-side
// resources to tear down.
func (t *Transport) Release(_ context.Context) error {
	return nil
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}

	return strings.Join(quoted, " ")
}

func init() {
	transport.Add("local", New)
}

var _ transport.Transport = (*Transport)(nil)
