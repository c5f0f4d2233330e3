package transport

import "sort"

// AssembleCommand builds the concrete argv for the logical backup-maker
// command (C9). It is a package-level function var — not a plain func — so
// tests can substitute it wholesale, mirroring the source's
// createBackupMakerCommand mock-patch point (§4.9).
var AssembleCommand = DefaultAssembleCommand

// DefaultAssembleCommand produces:
//
//	<binPath>/br-backup-maker <command> {backup|restore [--version=<version>]} --collection-id=<id> [--public-key=<path>] [--private-key=<path>] [--meta=<key>=<value> ...]
//
// --meta flags are emitted in ascending key order.
//
// command is threaded through as the first positional argument so a caller
// can still distinguish "which logical operation" ran when watching output;
// the binary itself only consumes the flags. publicKeyPath/privateKeyPath
// are the key paths as they will be visible to the target environment at
// run time — for the local transport that's the definition's own paths; for
// every remote transport it's the fixed post-staging location the binary
// cache manager copies keys to (§4.2, §6). Either may be "" to mean "this
// key is not configured".
func DefaultAssembleCommand(
	command string, definition BackupDefinition, isBackup bool, version string,
	binPath, publicKeyPath, privateKeyPath string,
) []string {
	argv := []string{binPath + "/br-backup-maker", command}

	if isBackup {
		argv = append(argv, "backup")
	} else {
		argv = append(argv, "restore")

		if version != "" {
			argv = append(argv, "--version="+version)
		}
	}

	argv = append(argv, "--collection-id="+definition.CollectionID())

	if publicKeyPath != "" {
		argv = append(argv, "--public-key="+publicKeyPath)
	}

	if privateKeyPath != "" {
		argv = append(argv, "--private-key="+privateKeyPath)
	}

	meta := definition.Metadata()
	keys := make([]string, 0, len(meta))

	for key := range meta {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		argv = append(argv, "--meta="+key+"="+meta[key])
	}

	return argv
}
