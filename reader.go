package smbclient

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"
)

// FileReader reads a remote file. The file is opened by the first Read,
// ReadAt or Download and stays open until Close.
type FileReader struct {
	c    *Client
	path string
	ctx  context.Context

	mu     sync.Mutex
	f      *RemoteFile
	closed bool
}

func (r *FileReader) open(ctx context.Context) (*RemoteFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, os.ErrClosed
	}
	if r.f != nil {
		return r.f, nil
	}

	tc, err := r.c.tree()
	if err != nil {
		return nil, err
	}

	name := normPath(r.path)
	if isInvalidPath(name) {
		return nil, os.ErrInvalid
	}

	req := openRequest(smb2.FILE_READ_DATA|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_NON_DIRECTORY_FILE)

	f, err := openFile(ctx, tc, name, req)
	if err != nil {
		return nil, err
	}

	r.f = f

	return f, nil
}

func (r *FileReader) Read(p []byte) (int, error) {
	f, err := r.open(r.ctx)
	if err != nil {
		return 0, &os.PathError{Op: "read", Path: r.path, Err: err}
	}

	n, err := f.read(r.ctx, p)
	if err != nil && err != io.EOF {
		return n, &os.PathError{Op: "read", Path: r.path, Err: err}
	}
	return n, err
}

func (r *FileReader) ReadAt(p []byte, off int64) (int, error) {
	f, err := r.open(r.ctx)
	if err != nil {
		return 0, &os.PathError{Op: "read", Path: r.path, Err: err}
	}

	n, err := f.readAt(r.ctx, p, off)
	if err != nil && err != io.EOF {
		return n, &os.PathError{Op: "read", Path: r.path, Err: err}
	}
	return n, err
}

// Download reads from offset 0 until STATUS_END_OF_FILE or a short read.
// Each request asks for as much as the credits at hand cover, bounded by
// the negotiated MaxReadSize.
func (r *FileReader) Download(ctx context.Context) ([]byte, error) {
	f, err := r.open(ctx)
	if err != nil {
		return nil, &os.PathError{Op: "download", Path: r.path, Err: err}
	}

	f.m.Lock()
	defer f.m.Unlock()

	var data []byte
	if size := f.stat.EndOfFile; size > 0 && size <= clientMaxTransferSize*16 {
		data = make([]byte, 0, size)
	}

	for {
		bs, isEOF, err := f.readAtChunk(ctx, int(f.tc.maxReadSize), int64(len(data)))
		if err != nil {
			return nil, &os.PathError{Op: "download", Path: r.path, Err: err}
		}

		data = append(data, bs...)

		if isEOF {
			break
		}
	}

	f.offset = int64(len(data))

	logger.DebugCtx(ctx, "downloaded", logger.KeyPath, r.path, logger.KeyBytes, len(data))

	return data, nil
}

// Close closes the remote handle. Closing a reader that was never used
// is a no-op.
func (r *FileReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.f == nil {
		return nil
	}

	err := r.f.close(r.ctx)
	r.f = nil
	if err != nil {
		return &os.PathError{Op: "close", Path: r.path, Err: err}
	}
	return nil
}
