// Package fs implements the filesystem abstraction (C1): a uniform set of
// operations over local and remote (docker, kubernetes) targets, grounded on
// bahub/transports/kubernetes.py's KubernetesPodFilesystem and the sibling
// LocalFilesystem referenced by the Python sources.
package fs

import "context"

// Filesystem is the capability set every target execution environment
// exposes uniformly, per spec §4.1.
type Filesystem interface {
	// ForceMkdir creates path and all parents; idempotent.
	ForceMkdir(ctx context.Context, path string) error
	// Download fetches url to dst.
	Download(ctx context.Context, url, dst string) error
	// Delete removes path. Non-existence is tolerated.
	Delete(ctx context.Context, path string) error
	// Link creates a symbolic link at dst pointing to src. The caller is
	// responsible for removing any pre-existing dst first.
	Link(ctx context.Context, src, dst string) error
	// MakeExecutable grants execute permission on path.
	MakeExecutable(ctx context.Context, path string) error
	// CopyTo streams the local file at localPath to remotePath on this
	// filesystem.
	CopyTo(ctx context.Context, localPath, remotePath string) error
	// Pack creates a gzipped tar at archive whose members are files rooted
	// at srcDir. An empty files list packs "*" and ".*" of srcDir.
	Pack(ctx context.Context, archive, srcDir string, files []string) error
	// Unpack is the inverse of Pack.
	Unpack(ctx context.Context, archive, dstDir string) error
	// FileExists reports whether path exists.
	FileExists(ctx context.Context, path string) (bool, error)
	// TempDirPath returns a unique path; creating it is the caller's
	// responsibility.
	TempDirPath() string
	// Move renames/relocates src to dst.
	Move(ctx context.Context, src, dst string) error
}
