package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"

	"archive/tar"
)

// Local implements Filesystem directly against the controller host, grounded
// on the teacher's runtime package's use of plain os/io calls for local
// staging and on LocalFilesystem as referenced (but not retrieved) by
// bahub/transports/sh.py and kubernetes_podexec.py.
type Local struct {
	logger *slog.Logger
	http   *resty.Client
}

// NewLocal constructs a Local filesystem. logger may be nil.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}

	return &Local{logger: logger, http: resty.New()}
}

func (l *Local) ForceMkdir(_ context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("force mkdir %q: %w", path, err)
	}

	return nil
}

func (l *Local) Download(ctx context.Context, url, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("download %q to %q: %w", url, dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("download %q to %q: %w", url, dst, err)
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(-1, "downloading "+filepath.Base(dst))

	response, err := l.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("download %q: %w", url, err)
	}

	body := response.RawBody()
	defer body.Close()

	if response.StatusCode() < 200 || response.StatusCode() >= 300 {
		return fmt.Errorf("download %q: unexpected status %d", url, response.StatusCode())
	}

	if _, err := io.Copy(io.MultiWriter(out, bar), body); err != nil {
		return fmt.Errorf("download %q to %q: %w", url, dst, err)
	}

	return nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("local.delete.absent", "path", path)

			return nil
		}

		return fmt.Errorf("delete %q: %w", path, err)
	}

	return nil
}

func (l *Local) Link(_ context.Context, src, dst string) error {
	if err := os.Symlink(src, dst); err != nil {
		return fmt.Errorf("link %q -> %q: %w", dst, src, err)
	}

	return nil
}

func (l *Local) MakeExecutable(_ context.Context, path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("make executable %q: %w", path, err)
	}

	return nil
}

func (l *Local) CopyTo(_ context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}

	dst, err := os.Create(remotePath)
	if err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}
	defer dst.Close()

	if _, err := io.CopyBuffer(dst, src, make([]byte, 1024*1024)); err != nil {
		return fmt.Errorf("copy %q to %q: %w", localPath, remotePath, err)
	}

	return nil
}

func (l *Local) Pack(_ context.Context, archive, srcDir string, files []string) error {
	if len(files) == 0 {
		files = []string{"*", ".*"}
	}

	out, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("pack %q: %w", archive, err)
	}
	defer out.Close()

	gzipWriter := gzip.NewWriter(out)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	matches := lo.FlatMap(files, func(pattern string, _ int) []string {
		found, _ := filepath.Glob(filepath.Join(srcDir, pattern))

		return found
	})

	for _, match := range matches {
		if err := addToTar(tarWriter, srcDir, match); err != nil {
			return fmt.Errorf("pack %q: %w", archive, err)
		}
	}

	return nil
}

func addToTar(tarWriter *tar.Writer, srcDir, path string) error {
	return filepath.Walk(path, func(walked string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, walked)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		file, err := os.Open(walked)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tarWriter, file)

		return err
	})
}

func (l *Local) Unpack(_ context.Context, archive, dstDir string) error {
	in, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("unpack %q: %w", archive, err)
	}
	defer in.Close()

	gzipReader, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("unpack %q: %w", archive, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("unpack %q: %w", archive, err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("unpack %q: %w", archive, err)
		}

		target := filepath.Join(dstDir, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("unpack %q: %w", archive, err)
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("unpack %q: %w", archive, err)
			}

			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("unpack %q: %w", archive, err)
			}

			_, err = io.Copy(out, tarReader)
			out.Close()

			if err != nil {
				return fmt.Errorf("unpack %q: %w", archive, err)
			}
		}
	}

	return nil
}

func (l *Local) FileExists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("file exists %q: %w", path, err)
}

func (l *Local) TempDirPath() string {
	return filepath.Join(os.TempDir(), "br-"+randomSuffix())
}

func (l *Local) Move(_ context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("move %q to %q: %w", src, dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %q to %q: %w", src, dst, err)
	}

	return nil
}

var _ Filesystem = (*Local)(nil)
