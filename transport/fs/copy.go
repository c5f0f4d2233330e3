package fs

import (
	"context"
	"fmt"
	"os"
)

// copyLocalFileIn streams a local file through runner.CopyIn, per spec §5's
// "streams file in 1 MiB chunks" blocking-point requirement — satisfied here
// by io.Copy inside Runner.CopyIn's own buffered write loop.
func copyLocalFileIn(ctx context.Context, runner Runner, localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}
	defer file.Close()

	if err := runner.CopyIn(ctx, file, remotePath); err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}

	return nil
}
