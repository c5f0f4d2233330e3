package binarycache

import (
	"context"

	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

// publicKeyTarget and privateKeyTarget are the fixed destinations from
// spec §4.2/§6; the Python original names these `/tmp/.gpg.pub` and
// `/tmp/.gpg.key` respectively.
const (
	publicKeyTarget  = "/tmp/.gpg.pub"
	privateKeyTarget = "/tmp/.gpg.key"
)

// CopyEncryptionKeys stages whichever of the public/private key paths are
// configured and present on src into dst's fixed well-known locations.
// Absent keys are silently skipped — a definition may legitimately
// configure only public-key encryption (bin.py:
// copy_encryption_keys_from_controller_to_target_env).
func CopyEncryptionKeys(ctx context.Context, src, dst fs.Filesystem, publicKeyPath, privateKeyPath string) error {
	pairs := []struct {
		path   string
		target string
	}{
		{privateKeyPath, privateKeyTarget},
		{publicKeyPath, publicKeyTarget},
	}

	for _, pair := range pairs {
		if pair.path == "" {
			continue
		}

		exists, err := src.FileExists(ctx, pair.path)
		if err != nil {
			return err
		}

		if !exists {
			continue
		}

		if err := dst.CopyTo(ctx, pair.path, pair.target); err != nil {
			return err
		}
	}

	return nil
}
