package smbclient

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"
)

// FileWriter writes a remote file. The first use creates the file or
// truncates an existing one.
type FileWriter struct {
	c    *Client
	path string
	ctx  context.Context

	mu     sync.Mutex
	f      *RemoteFile
	closed bool
}

func (w *FileWriter) open(ctx context.Context) (*RemoteFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, os.ErrClosed
	}
	if w.f != nil {
		return w.f, nil
	}

	tc, err := w.c.tree()
	if err != nil {
		return nil, err
	}

	name := normPath(w.path)
	if name == "" || isInvalidPath(name) {
		return nil, os.ErrInvalid
	}

	req := openRequest(
		smb2.FILE_WRITE_DATA|smb2.FILE_APPEND_DATA|smb2.FILE_WRITE_ATTRIBUTES|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE,
		smb2.FILE_OVERWRITE_IF,
		smb2.FILE_NON_DIRECTORY_FILE,
	)

	f, err := openFile(ctx, tc, name, req)
	if err != nil {
		return nil, err
	}

	w.f = f

	return f, nil
}

func (w *FileWriter) Write(p []byte) (int, error) {
	f, err := w.open(w.ctx)
	if err != nil {
		return 0, &os.PathError{Op: "write", Path: w.path, Err: err}
	}

	n, err := f.write(w.ctx, p)
	if err != nil {
		return n, &os.PathError{Op: "write", Path: w.path, Err: err}
	}
	return n, nil
}

func (w *FileWriter) WriteAt(p []byte, off int64) (int, error) {
	f, err := w.open(w.ctx)
	if err != nil {
		return 0, &os.PathError{Op: "write", Path: w.path, Err: err}
	}

	n, err := f.writeAt(w.ctx, p, off)
	if err != nil {
		return n, &os.PathError{Op: "write", Path: w.path, Err: err}
	}
	return n, nil
}

// Upload writes data from offset 0. Each WRITE carries as much as the
// credits at hand cover, bounded by the negotiated MaxWriteSize. progress
// receives the completed fraction after every chunk.
func (w *FileWriter) Upload(ctx context.Context, data []byte, progress func(float64)) error {
	f, err := w.open(ctx)
	if err != nil {
		return &os.PathError{Op: "upload", Path: w.path, Err: err}
	}

	f.m.Lock()
	defer f.m.Unlock()

	var off int
	for off < len(data) {
		n, err := f.writeAtChunk(ctx, data[off:], int64(off))
		if err != nil {
			return &os.PathError{Op: "upload", Path: w.path, Err: err}
		}
		if n == 0 {
			return &os.PathError{Op: "upload", Path: w.path, Err: io.ErrShortWrite}
		}

		off += n

		if progress != nil {
			progress(float64(off) / float64(len(data)))
		}
	}

	if len(data) == 0 && progress != nil {
		progress(1)
	}

	f.offset = int64(off)

	logger.DebugCtx(ctx, "uploaded", logger.KeyPath, w.path, logger.KeyBytes, off)

	return nil
}

// UploadFrom copies r to the file. size is the expected length; a source
// that ends early fails with io.ErrUnexpectedEOF. When size <= 0 the
// length is unknown, r is read to EOF and progress only reports 1 at the
// end.
func (w *FileWriter) UploadFrom(ctx context.Context, r io.Reader, size int64, progress func(float64)) (int64, error) {
	f, err := w.open(ctx)
	if err != nil {
		return 0, &os.PathError{Op: "upload", Path: w.path, Err: err}
	}

	f.m.Lock()
	defer f.m.Unlock()

	buf := make([]byte, f.tc.maxWriteSize)

	var sent int64
	for size <= 0 || sent < size {
		chunk := buf
		if size > 0 && int64(len(chunk)) > size-sent {
			chunk = chunk[:size-sent]
		}

		n, rerr := io.ReadFull(r, chunk)
		if n > 0 {
			m, err := f.writeAt(ctx, chunk[:n], sent)
			sent += int64(m)
			if err != nil {
				return sent, &os.PathError{Op: "upload", Path: w.path, Err: err}
			}
			if progress != nil && size > 0 {
				progress(float64(sent) / float64(size))
			}
		}

		switch rerr {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			if size > 0 && sent < size {
				return sent, &os.PathError{Op: "upload", Path: w.path, Err: io.ErrUnexpectedEOF}
			}
		default:
			return sent, &os.PathError{Op: "upload", Path: w.path, Err: rerr}
		}
		break
	}

	if progress != nil && size <= 0 {
		progress(1)
	}

	f.offset = sent

	logger.DebugCtx(ctx, "uploaded", logger.KeyPath, w.path, logger.KeyBytes, sent)

	return sent, nil
}

// Sync flushes the server's buffers for the file.
func (w *FileWriter) Sync(ctx context.Context) error {
	f, err := w.open(ctx)
	if err != nil {
		return &os.PathError{Op: "sync", Path: w.path, Err: err}
	}

	if err := f.flush(ctx); err != nil {
		return &os.PathError{Op: "sync", Path: w.path, Err: err}
	}
	return nil
}

// Close closes the remote handle. Closing a writer that was never used
// is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.f == nil {
		return nil
	}

	err := w.f.close(w.ctx)
	w.f = nil
	if err != nil {
		return &os.PathError{Op: "close", Path: w.path, Err: err}
	}
	return nil
}
