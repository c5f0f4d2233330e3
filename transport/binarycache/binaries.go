package binarycache

import "github.com/riotkit-org/br-backup-controller/transport"

// Pinned helper binary versions, grounded on bahub/versions.py's
// BACKUP_MAKER_BIN_VERSION / TRACEXIT_BIN_VERSION constants (referenced by
// bin.py but not itself part of the retrieved source).
const (
	BackupMakerVersion = "0.0.4"
	TracexitVersion    = "1.0.0"
)

// githubRelease builds the RequiredBinary for a GoReleaser-style GitHub
// release archive, mirroring
// RequiredBinaryFromGithubReleasePackedInArchive's URL convention
// (spec §6 "Binary URL convention").
func githubRelease(project, version, binaryName, archiveName string) transport.RequiredBinary {
	return transport.RequiredBinary{
		URL:      "https://github.com/" + project + "/releases/download/" + version + "/" + archiveName,
		Filename: binaryName,
		Version:  version,
	}
}

// StandardBinaries returns the fixed set of helper binaries every transport
// stages before running the backup-maker, mirroring bin.py's
// get_backup_maker_binaries.
func StandardBinaries() []transport.RequiredBinary {
	return []transport.RequiredBinary{
		githubRelease(
			"riotkit-org/br-backup-maker",
			BackupMakerVersion,
			"br-backup-maker",
			"br-backup-maker_"+BackupMakerVersion+"_linux_amd64.tar.gz",
		),
		githubRelease(
			"riotkit-org/tracexit",
			TracexitVersion,
			"tracexit",
			"tracexit_"+TracexitVersion+"_linux_amd64.tar.gz",
		),
	}
}
