package smbclient

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/smbclient-go/smbclient/internal/logger"
)

// UploadLocal copies a local file or directory tree to remotePath.
// Remote directories are created as needed. progress, when not nil, is
// called while each file is sent and once more when it is complete, with
// the number of files finished so far.
func (c *Client) UploadLocal(ctx context.Context, localPath, remotePath string, progress func(completedFiles int, file string, bytesSent int64)) (err error) {
	ctx, end := c.startSpan(ctx, "upload_local", attribute.String(attrPath, remotePath))
	defer end(&err)

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		name := filepath.Base(localPath)
		if err := c.uploadLocalFile(ctx, localPath, remotePath, name, info.Size(), 0, progress); err != nil {
			return err
		}
		if progress != nil {
			progress(1, name, info.Size())
		}
		return nil
	}

	root := normPath(remotePath)
	completed := 0

	err = filepath.WalkDir(localPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return &ContextError{Err: err}
		}

		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		target := join(root, normPath(rel))

		if d.IsDir() {
			return c.ensureDirectory(ctx, target)
		}

		if !d.Type().IsRegular() {
			logger.DebugCtx(ctx, "skipping non-regular file", logger.KeyPath, path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if err := c.uploadLocalFile(ctx, path, target, rel, info.Size(), completed, progress); err != nil {
			return err
		}

		completed++
		if progress != nil {
			progress(completed, rel, info.Size())
		}

		return nil
	})

	logger.DebugCtx(ctx, "uploaded tree", logger.KeyPath, remotePath, logger.KeyFiles, completed)

	return err
}

func (c *Client) ensureDirectory(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := c.CreateDirectory(ctx, path); err != nil && !IsExist(err) {
		return err
	}
	return nil
}

func (c *Client) uploadLocalFile(ctx context.Context, local, remote, name string, size int64, completed int, progress func(int, string, int64)) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	var report func(float64)
	if progress != nil && size > 0 {
		report = func(frac float64) {
			progress(completed, name, int64(frac*float64(size)))
		}
	}

	w := c.FileWriter(remote)

	_, err = w.UploadFrom(ctx, f, size, report)
	return multiError(err, w.Close())
}
