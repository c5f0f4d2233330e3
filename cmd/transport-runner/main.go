// Command transport-runner is a minimal CLI wiring the transport package to
// a command line, the way bahub/bin.py dispatched a transport by name and
// ran one backup/restore invocation end-to-end. It is ambient scaffolding
// (§4 SUPPLEMENTED FEATURES), not a reimplementation of the excluded CLI
// task system.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/binarycache"
	_ "github.com/riotkit-org/br-backup-controller/transport/dockerexec"
	_ "github.com/riotkit-org/br-backup-controller/transport/dockersidecar"
	_ "github.com/riotkit-org/br-backup-controller/transport/k8spodexec"
	_ "github.com/riotkit-org/br-backup-controller/transport/k8ssidecar"
	_ "github.com/riotkit-org/br-backup-controller/transport/local"
)

type CLI struct {
	Run Run `cmd:"" help:"Run a backup or restore through a transport"`

	LogLevel  slog.Level `default:"info" env:"BR_LOG_LEVEL"  help:"Set the log level (debug, info, warn, error)"`
	AddSource bool       `env:"BR_ADD_SOURCE"                help:"Add source code location to log messages"`
	LogFormat string     `default:"text" env:"BR_LOG_FORMAT" enum:"text,json" help:"Set the log format (text, json)"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli)

	if cli.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	}

	err := ctx.Run(slog.Default())
	ctx.FatalIfErrorf(err)
}

// Run executes one backup or restore through a named, registered transport.
type Run struct {
	Transport  string `arg:""                                            help:"Transport DSN, e.g. 'docker-exec://?container=db&shell=/bin/sh'"`
	Definition string `help:"Path to a yaml backup definition file" required:"" type:"existingfile"`
	Restore    bool   `help:"Run a restore instead of a backup"`
	Version    string `help:"Version to restore (restore mode only, empty means latest)"`
	Command    string `default:"backup-maker" help:"Logical backup-maker command name threaded into assembly (C9)"`
}

func (r *Run) Run(logger *slog.Logger) error {
	name, spec, err := parseTransportDSN(r.Transport)
	if err != nil {
		return err
	}

	newTransport, ok := transport.Get(name)
	if !ok {
		return &unknownTransportError{Name: name}
	}

	definition, err := loadDefinition(r.Definition)
	if err != nil {
		return err
	}

	target, err := newTransport(spec, logger)
	if err != nil {
		return err
	}

	ctx := contextForRun()

	return transport.Scoped(ctx, target, binarycache.StandardBinaries(), definition, func(scoped transport.Transport) error {
		session, err := scoped.Schedule(ctx, r.Command, definition, !r.Restore, r.Version)
		if err != nil {
			return err
		}

		watchErr := session.Watch(ctx, func(line transport.Line) {
			logger.Debug("output", "stream", line.Stream, "text", line.Text)
		})
		if watchErr != nil {
			return watchErr
		}

		if !session.Succeeded() {
			return &runFailedError{Transport: name}
		}

		return nil
	})
}

type unknownTransportError struct{ Name string }

func (e *unknownTransportError) Error() string {
	return "unknown transport: " + e.Name
}

type runFailedError struct{ Transport string }

func (e *runFailedError) Error() string {
	return "backup command reported failure (transport: " + e.Transport + ")"
}
