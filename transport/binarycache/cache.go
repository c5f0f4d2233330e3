// Package binarycache implements the Binary Cache Manager (C2), grounded
// directly on bahub/bin.py's download_required_tools,
// copy_required_tools_from_controller_cache_to_target_env, and
// copy_encryption_keys_from_controller_to_target_env.
package binarycache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// Cache manages a local directory of versioned helper binaries, mirroring
// bin.py's module-level functions as methods over a fixed binPath/versionsPath
// pair.
type Cache struct {
	local        fs.Filesystem
	binPath      string
	versionsPath string
}

// New constructs a Cache rooted at binPath, with versioned slots stored
// under versionsPath (conventionally binPath+"/.versions").
func New(local fs.Filesystem, binPath, versionsPath string) *Cache {
	return &Cache{local: local, binPath: binPath, versionsPath: versionsPath}
}

// versionSlot returns the cache path for binary's CacheKey.
func (c *Cache) versionSlot(binary transport.RequiredBinary) string {
	return filepath.Join(c.versionsPath, binary.CacheKey())
}

// DownloadRequiredTools stages every binary into the local cache that isn't
// already present there (bin.py: download_required_tools). Re-invocation for
// an already-present cache-key performs no download (§8 invariant).
func (c *Cache) DownloadRequiredTools(ctx context.Context, binaries []transport.RequiredBinary) error {
	if err := c.local.ForceMkdir(ctx, filepath.Dir(c.binPath)); err != nil {
		return err
	}

	if err := c.local.ForceMkdir(ctx, c.binPath); err != nil {
		return err
	}

	if err := c.local.ForceMkdir(ctx, c.versionsPath); err != nil {
		return err
	}

	for _, binary := range binaries {
		slot := c.versionSlot(binary)

		exists, err := c.local.FileExists(ctx, slot)
		if err != nil {
			return fmt.Errorf("checking cache slot %q: %w", slot, err)
		}

		if exists {
			continue
		}

		if binary.IsArchive() {
			if err := c.downloadArchived(ctx, binary, slot); err != nil {
				return err
			}

			continue
		}

		if err := c.local.Download(ctx, binary.URL, slot); err != nil {
			return err
		}

		if err := c.local.MakeExecutable(ctx, slot); err != nil {
			return err
		}
	}

	return nil
}

func (c *Cache) downloadArchived(ctx context.Context, binary transport.RequiredBinary, slot string) error {
	tmpDir := c.local.TempDirPath()

	if err := c.local.ForceMkdir(ctx, tmpDir); err != nil {
		return err
	}

	archivePath := filepath.Join(tmpDir, "archive.tar.gz")

	if err := c.local.Download(ctx, binary.URL, archivePath); err != nil {
		return err
	}

	if err := c.local.Unpack(ctx, archivePath, tmpDir); err != nil {
		return err
	}

	if err := c.local.Move(ctx, filepath.Join(tmpDir, binary.Filename), slot); err != nil {
		return err
	}

	return c.local.MakeExecutable(ctx, slot)
}
