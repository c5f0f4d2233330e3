package transport

import "context"

// Transport is the capability contract every target execution environment
// implements (§9 design note: composition over inheritance, not a class
// hierarchy). A caller opens one session per Transport instance and drives
// it through the strictly sequential flow required by §5:
// PrepareEnvironment, then Schedule, then the returned ExecSession's Watch
// (or Read) to completion, then Release. Release must run on every exit
// path, including a propagated error or a recovered panic.
type Transport interface {
	// Name identifies the transport kind, e.g. "docker-exec".
	Name() string

	// PrepareEnvironment stages binaries and the definition's encryption
	// keys into the target environment. It strictly precedes Schedule
	// (§5).
	PrepareEnvironment(ctx context.Context, binaries []RequiredBinary, definition BackupDefinition) error

	// Schedule assembles the concrete argv for the logical backup-maker
	// command (C9) and launches it inside the target environment. version
	// is only meaningful when isBackup is false (restore mode) and may be
	// empty to mean "latest".
	Schedule(ctx context.Context, command string, definition BackupDefinition, isBackup bool, version string) (ExecSession, error)

	// Release performs guaranteed cleanup: removing any sidecar
	// container/pod, restoring any scaled-down controller, etc. It must
	// have an internal try/finally chain so that one failed release step
	// never prevents the others from running (§5, §9), and it must be
	// idempotent — safe to call even if PrepareEnvironment or Schedule
	// never completed.
	Release(ctx context.Context) error
}

// Scoped runs fn with a Transport that has already had PrepareEnvironment
// called, guaranteeing Release runs exactly once on every exit path —
// including a failed PrepareEnvironment (fn is then skipped and the
// preparation error is returned) and a panic, which it recovers, releases
// under, and then re-raises. This is the Go rendition of the source's
// `__enter__`/`__exit__` scoped-resource pattern (§9).
func Scoped(
	ctx context.Context,
	transport Transport,
	binaries []RequiredBinary,
	definition BackupDefinition,
	fn func(Transport) error,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = transport.Release(ctx) // best-effort: never mask the panic being re-raised

			panic(r)
		}

		if releaseErr := transport.Release(ctx); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	if prepErr := transport.PrepareEnvironment(ctx, binaries, definition); prepErr != nil {
		return prepErr
	}

	return fn(transport)
}
