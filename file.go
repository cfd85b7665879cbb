package smbclient

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

// RemoteFile is an open handle on the connected share. It is owned by a
// single reader or writer and is invalid after close or disconnect.
type RemoteFile struct {
	tc   *treeConn
	fd   *smb2.FileId
	name string
	stat *FileStat

	m      sync.Mutex
	offset int64
}

func openFile(ctx context.Context, tc *treeConn, name string, req *smb2.CreateRequest) (*RemoteFile, error) {
	req.Name = name
	if req.ImpersonationLevel == 0 {
		req.ImpersonationLevel = smb2.Impersonation
	}

	res := new(smb2.CreateResponse)

	if _, err := tc.call(ctx, req, res); err != nil {
		return nil, err
	}

	f := &RemoteFile{
		tc:   tc,
		fd:   res.FileId,
		name: name,
		stat: statFromCreate(name, res),
	}

	logger.DebugCtx(ctx, "open", logger.KeyPath, name, "create_action", res.CreateAction)

	return f, nil
}

func openRequest(access uint32, disposition uint32, options uint32) *smb2.CreateRequest {
	return &smb2.CreateRequest{
		RequestedOplockLevel: smb2.SMB2_OPLOCK_LEVEL_NONE,
		ImpersonationLevel:   smb2.Impersonation,
		DesiredAccess:        access,
		FileAttributes:       smb2.FILE_ATTRIBUTE_NORMAL,
		ShareAccess:          smb2.FILE_SHARE_READ | smb2.FILE_SHARE_WRITE | smb2.FILE_SHARE_DELETE,
		CreateDisposition:    disposition,
		CreateOptions:        options,
	}
}

func (f *RemoteFile) Name() string {
	return f.name
}

// Stat returns the attributes reported when the file was opened.
func (f *RemoteFile) Stat() *FileStat {
	return f.stat
}

// close is best effort: it survives a canceled ctx.
func (f *RemoteFile) close(ctx context.Context) error {
	if f == nil || f.fd == nil {
		return os.ErrInvalid
	}

	req := &smb2.CloseRequest{
		FileId: f.fd,
	}
	res := new(smb2.CloseResponse)

	f.fd = nil

	if err := f.tc.conn.disconnected(); err != nil {
		return err
	}

	_, err := f.tc.call(context.WithoutCancel(ctx), req, res)
	return err
}

func (f *RemoteFile) readAtChunk(ctx context.Context, n int, off int64) (bs []byte, isEOF bool, err error) {
	if max := int(f.tc.maxReadSize); n > max {
		n = max
	}

	creditCharge, m, err := f.tc.loanCredit(ctx, n)
	if err != nil {
		return nil, false, err
	}

	req := &smb2.ReadRequest{
		Length:       uint32(m),
		Offset:       uint64(off),
		FileId:       f.fd,
		MinimumCount: 1, // for returning EOF
		Channel:      smb2.SMB2_CHANNEL_NONE,
	}
	res := new(smb2.ReadResponse)

	_, err = f.tc.transfer(ctx, req, res, creditCharge)
	if err != nil {
		if hasStatus(err, STATUS_END_OF_FILE) {
			return nil, true, nil
		}
		return nil, false, err
	}

	f.tc.metrics.addBytes("read", len(res.Data))

	return res.Data, len(res.Data) < m, nil
}

// readAt fills b from off. It returns io.EOF when the file ends first.
func (f *RemoteFile) readAt(ctx context.Context, b []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, os.ErrInvalid
	}

	for n < len(b) {
		bs, isEOF, err := f.readAtChunk(ctx, len(b)-n, off+int64(n))
		if err != nil {
			return n, err
		}

		n += copy(b[n:], bs)

		if isEOF {
			if n < len(b) {
				return n, io.EOF
			}
			return n, nil
		}
	}

	return n, nil
}

// read reads at the current offset and advances it.
func (f *RemoteFile) read(ctx context.Context, b []byte) (n int, err error) {
	f.m.Lock()
	defer f.m.Unlock()

	n, err = f.readAt(ctx, b, f.offset)
	f.offset += int64(n)
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

func (f *RemoteFile) write(ctx context.Context, b []byte) (n int, err error) {
	f.m.Lock()
	defer f.m.Unlock()

	n, err = f.writeAt(ctx, b, f.offset)
	f.offset += int64(n)
	return n, err
}

// writeAtChunk allows partial write
func (f *RemoteFile) writeAtChunk(ctx context.Context, b []byte, off int64) (n int, err error) {
	if max := int(f.tc.maxWriteSize); len(b) > max {
		b = b[:max]
	}

	creditCharge, m, err := f.tc.loanCredit(ctx, len(b))
	if err != nil {
		return 0, err
	}

	req := &smb2.WriteRequest{
		Offset:  uint64(off),
		FileId:  f.fd,
		Channel: smb2.SMB2_CHANNEL_NONE,
		Data:    b[:m],
	}
	res := new(smb2.WriteResponse)

	if _, err := f.tc.transfer(ctx, req, res, creditCharge); err != nil {
		return 0, err
	}

	f.tc.metrics.addBytes("write", int(res.Count))

	return int(res.Count), nil
}

func (f *RemoteFile) writeAt(ctx context.Context, b []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, os.ErrInvalid
	}

	for n < len(b) {
		m, err := f.writeAtChunk(ctx, b[n:], off+int64(n))
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrShortWrite
		}

		n += m
	}

	return n, nil
}

func (f *RemoteFile) flush(ctx context.Context) error {
	req := &smb2.FlushRequest{
		FileId: f.fd,
	}
	res := new(smb2.FlushResponse)

	_, err := f.tc.call(ctx, req, res)
	return err
}

func (f *RemoteFile) queryInfo(ctx context.Context, class smb2.FileInformationClass) ([]byte, error) {
	req := &smb2.QueryInfoRequest{
		InfoType:           smb2.SMB2_0_INFO_FILE,
		FileInfoClass:      class,
		OutputBufferLength: clientQueryInfoBuffer,
		FileId:             f.fd,
	}
	res := new(smb2.QueryInfoResponse)

	if _, err := f.tc.call(ctx, req, res); err != nil {
		return nil, err
	}

	return res.OutputBuffer, nil
}

func (f *RemoteFile) setInfo(ctx context.Context, info smb2.InfoEncoder) error {
	req := smb2.NewSetInfoRequest(f.fd, info)
	res := new(smb2.SetInfoResponse)

	_, err := f.tc.call(ctx, req, res)
	return err
}

func (f *RemoteFile) remove(ctx context.Context) error {
	return f.setInfo(ctx, &smb2.FileDispositionInfo{DeletePending: true})
}

func (f *RemoteFile) rename(ctx context.Context, newpath string) error {
	return f.setInfo(ctx, &smb2.FileRenameInfo{FileName: newpath})
}

// readdir collects every entry matching pattern. "." and ".." are returned
// as the server sends them.
func (f *RemoteFile) readdir(ctx context.Context, pattern string) ([]File, error) {
	var files []File

	flags := smb2.SMB2_RESTART_SCANS

	for {
		creditCharge, m, err := f.tc.loanCredit(ctx, clientDirectoryBuffer)
		if err != nil {
			return nil, err
		}

		req := &smb2.QueryDirectoryRequest{
			FileInformationClass: smb2.FileIdBothDirectoryInformation,
			Flags:                flags,
			FileId:               f.fd,
			OutputBufferLength:   uint32(m),
			FileName:             pattern,
		}
		res := new(smb2.QueryDirectoryResponse)

		_, err = f.tc.transfer(ctx, req, res, creditCharge)
		if err != nil {
			if hasStatus(err, STATUS_NO_MORE_FILES) {
				return files, nil
			}
			if len(files) == 0 && hasStatus(err, STATUS_NO_SUCH_FILE) {
				return files, nil
			}
			return nil, err
		}

		it := res.Entries()
		for info := it.Next(); info != nil; info = it.Next() {
			files = append(files, newFile(info))
		}
		if err := it.Err(); err != nil {
			return nil, &InvalidResponseError{Message: err.Error(), Err: err}
		}

		flags = 0
	}
}

// transceive writes input to a named pipe and reads the reply. A reply
// larger than the output buffer comes back with STATUS_BUFFER_OVERFLOW;
// the rest is left in the pipe.
func (f *RemoteFile) transceive(ctx context.Context, input []byte) ([]byte, bool, error) {
	req := &smb2.IoctlRequest{
		CtlCode:           smb2.FSCTL_PIPE_TRANSCEIVE,
		FileId:            f.fd,
		MaxOutputResponse: clientPipeBuffer,
		Flags:             smb2.SMB2_0_IOCTL_IS_FSCTL,
		Input:             input,
	}
	res := new(smb2.IoctlResponse)

	status, err := f.tc.call(ctx, req, res, STATUS_BUFFER_OVERFLOW)
	if err != nil {
		return nil, false, err
	}

	return res.Output, status == STATUS_BUFFER_OVERFLOW, nil
}

// readPipe reads one message chunk from a named pipe.
func (f *RemoteFile) readPipe(ctx context.Context) ([]byte, bool, error) {
	creditCharge, m, err := f.tc.loanCredit(ctx, clientPipeBuffer)
	if err != nil {
		return nil, false, err
	}

	req := &smb2.ReadRequest{
		Length: uint32(m),
		FileId: f.fd,
	}
	res := new(smb2.ReadResponse)

	status, err := f.tc.transfer(ctx, req, res, creditCharge, STATUS_BUFFER_OVERFLOW)
	if err != nil {
		return nil, false, err
	}

	return res.Data, status == STATUS_BUFFER_OVERFLOW, nil
}
