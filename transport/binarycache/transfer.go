package binarycache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// scratchArchivePath is the fixed staging path for the bundled tar of
// missing binaries, per spec §6 persisted-state layout.
const scratchArchivePath = "/tmp/.backup-tools.tar.gz"

// TransferToTarget copies every cache-key missing from dst into it as a
// single gzipped tar, then re-points dst's PATH symlinks, grounded on
// bin.py's copy_required_tools_from_controller_cache_to_target_env.
func (c *Cache) TransferToTarget(ctx context.Context, dst fs.Filesystem, targetBinPath, targetVersionsPath string, binaries []transport.RequiredBinary) error {
	missing := make([]transport.RequiredBinary, 0, len(binaries))

	for _, binary := range binaries {
		targetSlot := filepath.Join(targetVersionsPath, binary.CacheKey())

		exists, err := dst.FileExists(ctx, targetSlot)
		if err != nil {
			return fmt.Errorf("checking target slot %q: %w", targetSlot, err)
		}

		if !exists {
			missing = append(missing, binary)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	members := make([]string, 0, len(missing))
	for _, binary := range missing {
		members = append(members, binary.CacheKey())
	}

	archivePath := filepath.Join(c.local.TempDirPath(), "bundle.tar.gz")
	if err := c.local.ForceMkdir(ctx, filepath.Dir(archivePath)); err != nil {
		return err
	}

	if err := c.local.Pack(ctx, archivePath, c.versionsPath, members); err != nil {
		return err
	}

	if err := dst.CopyTo(ctx, archivePath, scratchArchivePath); err != nil {
		return err
	}

	if err := dst.ForceMkdir(ctx, targetBinPath); err != nil {
		return err
	}

	if err := dst.ForceMkdir(ctx, targetVersionsPath); err != nil {
		return err
	}

	if err := dst.Unpack(ctx, scratchArchivePath, targetVersionsPath); err != nil {
		return err
	}

	for _, binary := range binaries {
		targetBin := filepath.Join(targetBinPath, binary.Filename)
		versionPath := filepath.Join(targetVersionsPath, binary.CacheKey())

		if err := dst.Delete(ctx, targetBin); err != nil {
			return err
		}

		if err := dst.Link(ctx, versionPath, targetBin); err != nil {
			return err
		}

		if err := dst.MakeExecutable(ctx, versionPath); err != nil {
			return err
		}
	}

	return nil
}
